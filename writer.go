package gowebm

import (
	"io"
	"runtime"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/bluenviron/gowebm/internal/mkvmuxer"
)

// ownedWriterPtr releases a native writer exactly once.
// It keeps the callback state reachable until the handle is released.
type ownedWriterPtr struct {
	p    mkvmuxer.WriterPtr
	data unsafe.Pointer
}

func newOwnedWriterPtr(p mkvmuxer.WriterPtr, data unsafe.Pointer) *ownedWriterPtr {
	o := &ownedWriterPtr{p: p, data: data}
	runtime.SetFinalizer(o, (*ownedWriterPtr).release)
	return o
}

func (o *ownedWriterPtr) ptr() mkvmuxer.WriterPtr {
	return o.p
}

func (o *ownedWriterPtr) release() {
	if o.p == 0 {
		return
	}
	mkvmuxer.DeleteWriter(o.p)
	o.p = 0
	o.data = nil
	runtime.SetFinalizer(o, nil)
}

// writerData is the state reached by the engine callbacks.
// It is allocated once and its address is registered with the engine,
// therefore it must never be copied or replaced.
type writerData[T io.Writer] struct {
	dest T

	// used as position when the destination is not seekable.
	bytesWritten uint64

	// last destination error, reported by the next failing operation.
	err error
}

func writeFunc[T io.Writer](data unsafe.Pointer, buf []byte) bool {
	d := (*writerData[T])(data)

	n, err := d.dest.Write(buf)
	if err != nil {
		d.err = errors.Wrap(err, "destination write failed")
		return false
	}

	d.bytesWritten += uint64(n)

	// partial writes are considered failures
	if n != len(buf) {
		d.err = errors.Wrapf(io.ErrShortWrite, "destination accepted %d of %d bytes", n, len(buf))
		return false
	}

	return true
}

func getPosCounterFunc[T io.Writer](data unsafe.Pointer) uint64 {
	d := (*writerData[T])(data)
	return d.bytesWritten
}

func getPosSeekerFunc[T io.WriteSeeker](data unsafe.Pointer) uint64 {
	d := (*writerData[T])(data)

	pos, err := d.dest.Seek(0, io.SeekCurrent)
	if err != nil {
		d.err = errors.Wrap(err, "destination position query failed")
		return d.bytesWritten
	}

	return uint64(pos)
}

func setPosSeekerFunc[T io.WriteSeeker](data unsafe.Pointer, pos uint64) bool {
	d := (*writerData[T])(data)

	_, err := d.dest.Seek(int64(pos), io.SeekStart)
	if err != nil {
		d.err = errors.Wrap(err, "destination seek failed")
		return false
	}

	return true
}

// Writer writes the output of a Segment to a destination.
//
// A destination that implements io.Seeker (a file, a seekable buffer)
// allows the segment to write its duration and seeking information
// when it is finalized. Use NewWriter for those and NewWriterNonSeek for
// everything else.
//
// A Writer must not be used by multiple goroutines at once.
type Writer[T io.Writer] struct {
	data     *writerData[T]
	mkv      *ownedWriterPtr
	seekable bool
}

// NewWriter allocates a Writer for a seekable destination.
func NewWriter[T io.WriteSeeker](dest T) *Writer[T] {
	return newWriter(dest, getPosSeekerFunc[T], setPosSeekerFunc[T])
}

// NewWriterNonSeek allocates a Writer for a destination that does not
// support seeking. The position reported to the engine is the number of
// bytes written so far.
func NewWriterNonSeek[T io.Writer](dest T) *Writer[T] {
	return newWriter(dest, getPosCounterFunc[T], nil)
}

func newWriter[T io.Writer](
	dest T,
	getPos mkvmuxer.GetPosFunc,
	setPos mkvmuxer.SetPosFunc,
) *Writer[T] {
	data := &writerData[T]{
		dest: dest,
	}

	// the engine must know the address of data before any callback can be invoked.
	p := mkvmuxer.NewWriter(writeFunc[T], getPos, setPos, unsafe.Pointer(data))
	if p == 0 {
		panic("unable to allocate a native writer")
	}

	return &Writer[T]{
		data:     data,
		mkv:      newOwnedWriterPtr(p, unsafe.Pointer(data)),
		seekable: setPos != nil,
	}
}

// Seekable returns whether the destination can be repositioned.
func (w *Writer[T]) Seekable() bool {
	return w.seekable
}

// BytesWritten returns the number of bytes accepted by the destination.
// Bytes rewritten after seeking are counted again.
func (w *Writer[T]) BytesWritten() uint64 {
	return w.data.bytesWritten
}

// IntoInner releases the Writer and returns the destination.
func (w *Writer[T]) IntoInner() T {
	w.mkv.release()
	return w.data.dest
}

// Close releases the Writer.
// It does not close the destination.
func (w *Writer[T]) Close() {
	w.mkv.release()
}

func (w *Writer[T]) mkvWriter() mkvmuxer.WriterPtr {
	return w.mkv.ptr()
}

// resetErr drops errors recorded by callbacks that did not fail.
func (w *Writer[T]) resetErr() {
	if w == nil {
		return
	}
	w.data.err = nil
}

// takeErr returns and clears the last destination error.
func (w *Writer[T]) takeErr() error {
	if w == nil {
		return nil
	}
	err := w.data.err
	w.data.err = nil
	return err
}
