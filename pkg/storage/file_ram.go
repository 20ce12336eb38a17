package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
)

type fileRAM struct {
	finalized bool
	buffer    seekablebuffer.Buffer
}

func newFileRAM() File {
	return &fileRAM{}
}

// Writer implements File.
func (s *fileRAM) Writer() io.WriteSeeker {
	return &s.buffer
}

// Finalize implements File.
func (s *fileRAM) Finalize() {
	s.finalized = true
}

// Remove implements File.
func (s *fileRAM) Remove() {
	s.buffer.Reset()
}

// Reader implements File.
func (s *fileRAM) Reader() (io.ReadCloser, error) {
	if !s.finalized {
		return nil, fmt.Errorf("file has not been finalized yet")
	}

	return io.NopCloser(bytes.NewReader(s.buffer.Bytes())), nil
}

// Size implements File.
func (s *fileRAM) Size() uint64 {
	return uint64(len(s.buffer.Bytes()))
}
