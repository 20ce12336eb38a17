// Package mkvmuxer is a WebM muxing engine.
//
// The engine is driven through opaque handles and writes its output through
// three callbacks registered together with a caller-owned context pointer.
// Handles must be released with DeleteWriter and DeleteSegment.
package mkvmuxer

import (
	"sync"
	"unsafe"
)

// Result is the status returned by fallible engine calls.
type Result int32

// results.
const (
	ResultOK              Result = 0
	ResultInvalidArgument Result = -1
	ResultInvalidState    Result = -2
	ResultWriteFailed     Result = -3
	ResultInvalidHandle   Result = -4
)

// video codec identifiers.
const (
	VP8CodecID uint32 = 0
	VP9CodecID uint32 = 1
	AV1CodecID uint32 = 2
)

// audio codec identifiers.
const (
	OpusCodecID   uint32 = 0
	VorbisCodecID uint32 = 1
)

// MaxTrackNumber is the highest track number the engine accepts.
const MaxTrackNumber = 126

// WriterPtr is an opaque writer handle. Zero is the null handle.
type WriterPtr uintptr

// SegmentPtr is an opaque segment handle. Zero is the null handle.
type SegmentPtr uintptr

// WriteFunc writes buf entirely. It returns false when the write failed
// or was partial.
type WriteFunc func(data unsafe.Pointer, buf []byte) bool

// GetPosFunc returns the current byte offset of the output.
type GetPosFunc func(data unsafe.Pointer) uint64

// SetPosFunc moves the output to an absolute byte offset.
type SetPosFunc func(data unsafe.Pointer, pos uint64) bool

var (
	handlesMutex sync.Mutex
	lastHandle   uintptr
	writers      = make(map[WriterPtr]*writer)
	segments     = make(map[SegmentPtr]*segment)
)

func allocHandle() uintptr {
	lastHandle++
	return lastHandle
}

func lookupWriter(p WriterPtr) *writer {
	handlesMutex.Lock()
	defer handlesMutex.Unlock()
	return writers[p]
}

func lookupSegment(p SegmentPtr) *segment {
	handlesMutex.Lock()
	defer handlesMutex.Unlock()
	return segments[p]
}

// LiveHandles returns the number of writer and segment handles that have
// not been deleted yet.
func LiveHandles() int {
	handlesMutex.Lock()
	defer handlesMutex.Unlock()
	return len(writers) + len(segments)
}

// NewWriter allocates a writer. write and getPos are mandatory, setPos is
// optional; without it the output is treated as non-seekable.
// data is passed back untouched to every callback and must stay valid
// until DeleteWriter is called.
// It returns the null handle when the writer cannot be allocated.
func NewWriter(write WriteFunc, getPos GetPosFunc, setPos SetPosFunc, data unsafe.Pointer) WriterPtr {
	if write == nil || getPos == nil {
		return 0
	}

	handlesMutex.Lock()
	defer handlesMutex.Unlock()

	p := WriterPtr(allocHandle())
	writers[p] = &writer{
		write:  write,
		getPos: getPos,
		setPos: setPos,
		data:   data,
	}
	return p
}

// DeleteWriter releases a writer. Deleting an unknown handle panics.
func DeleteWriter(p WriterPtr) {
	handlesMutex.Lock()
	defer handlesMutex.Unlock()

	if _, ok := writers[p]; !ok {
		panic("mkvmuxer: DeleteWriter called with an invalid handle")
	}
	delete(writers, p)
}

// NewSegment allocates a segment.
func NewSegment() SegmentPtr {
	handlesMutex.Lock()
	defer handlesMutex.Unlock()

	p := SegmentPtr(allocHandle())
	segments[p] = newSegment()
	return p
}

// DeleteSegment releases a segment. It never writes.
// Deleting an unknown handle panics.
func DeleteSegment(p SegmentPtr) {
	handlesMutex.Lock()
	defer handlesMutex.Unlock()

	if _, ok := segments[p]; !ok {
		panic("mkvmuxer: DeleteSegment called with an invalid handle")
	}
	delete(segments, p)
}

// InitializeSegment binds a segment to a writer.
func InitializeSegment(sp SegmentPtr, wp WriterPtr) Result {
	s := lookupSegment(sp)
	w := lookupWriter(wp)
	if s == nil || w == nil {
		return ResultInvalidHandle
	}
	return s.initialize(w)
}

// SegmentSetMaxClusterDuration sets the maximum duration of clusters of
// segments without video tracks, in nanoseconds.
func SegmentSetMaxClusterDuration(sp SegmentPtr, ns uint64) Result {
	s := lookupSegment(sp)
	if s == nil {
		return ResultInvalidHandle
	}
	if ns == 0 {
		return ResultInvalidArgument
	}
	s.maxClusterDuration = ns
	return ResultOK
}

// SegmentAddVideoTrack adds a video track.
// number is the requested track number, or 0 to let the engine choose one.
func SegmentAddVideoTrack(sp SegmentPtr, width int32, height int32, number int32, codecID uint32) (uint64, Result) {
	s := lookupSegment(sp)
	if s == nil {
		return 0, ResultInvalidHandle
	}
	return s.addVideoTrack(width, height, number, codecID)
}

// SegmentAddAudioTrack adds an audio track.
// number is the requested track number, or 0 to let the engine choose one.
func SegmentAddAudioTrack(sp SegmentPtr, sampleRate int32, channels int32, number int32, codecID uint32) (uint64, Result) {
	s := lookupSegment(sp)
	if s == nil {
		return 0, ResultInvalidHandle
	}
	return s.addAudioTrack(sampleRate, channels, number, codecID)
}

// SegmentSetCodecPrivate sets the CodecPrivate of a track.
func SegmentSetCodecPrivate(sp SegmentPtr, number uint64, data []byte) Result {
	s := lookupSegment(sp)
	if s == nil {
		return ResultInvalidHandle
	}
	return s.setCodecPrivate(number, data)
}

// SetColor sets the colour metadata of a video track.
// Subsampling and range flags are 0 or 1.
func SetColor(sp SegmentPtr, number uint64, bitDepth int32, samplingHorz int32, samplingVert int32, fullRange int32) Result {
	s := lookupSegment(sp)
	if s == nil {
		return ResultInvalidHandle
	}
	return s.setColor(number, bitDepth, samplingHorz, samplingVert, fullRange)
}

// SetWritingApp sets the WritingApp element.
// It has no effect once the first frame has been written.
func SetWritingApp(sp SegmentPtr, name string) {
	s := lookupSegment(sp)
	if s == nil {
		return
	}
	s.setWritingApp(name)
}

// SegmentAddFrame appends a frame to a track.
func SegmentAddFrame(sp SegmentPtr, number uint64, data []byte, timestampNS uint64, keyframe bool) Result {
	s := lookupSegment(sp)
	if s == nil {
		return ResultInvalidHandle
	}
	return s.addFrame(number, data, timestampNS, keyframe)
}

// FinalizeSegment writes pending data and, if the writer is seekable,
// rewrites the segment size, the seek head and the duration.
// durationNS is an explicit duration, or 0 to use the last timestamp.
// The segment must still be released with DeleteSegment.
func FinalizeSegment(sp SegmentPtr, durationNS uint64) Result {
	s := lookupSegment(sp)
	if s == nil {
		return ResultInvalidHandle
	}
	return s.finalize(durationNS)
}
