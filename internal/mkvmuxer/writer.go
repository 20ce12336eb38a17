package mkvmuxer

import (
	"unsafe"
)

type writer struct {
	write  WriteFunc
	getPos GetPosFunc
	setPos SetPosFunc
	data   unsafe.Pointer
}

func (w *writer) seekable() bool {
	return w.setPos != nil
}

func (w *writer) position() uint64 {
	return w.getPos(w.data)
}

func (w *writer) writeBytes(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	return w.write(w.data, buf)
}

func (w *writer) setPosition(pos uint64) bool {
	if w.setPos == nil {
		return false
	}
	return w.setPos(w.data, pos)
}

// writeAt writes buf at pos, leaving the output at pos+len(buf).
func (w *writer) writeAt(pos uint64, buf []byte) bool {
	if !w.setPosition(pos) {
		return false
	}
	return w.writeBytes(buf)
}
