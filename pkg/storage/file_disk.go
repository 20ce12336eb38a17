package storage

import (
	"fmt"
	"io"
	"os"
)

type fileDisk struct {
	fpath     string
	f         *os.File
	finalSize uint64
}

func newFileDisk(fpath string) (File, error) {
	f, err := os.Create(fpath)
	if err != nil {
		return nil, err
	}

	return &fileDisk{
		fpath: fpath,
		f:     f,
	}, nil
}

// Writer implements File.
func (s *fileDisk) Writer() io.WriteSeeker {
	return s.f
}

// Finalize implements File.
func (s *fileDisk) Finalize() {
	if s.f == nil {
		return
	}

	if fi, err := s.f.Stat(); err == nil {
		s.finalSize = uint64(fi.Size())
	}

	s.f.Close()
	s.f = nil
}

// Remove implements File.
func (s *fileDisk) Remove() {
	os.Remove(s.fpath)
}

// Reader implements File.
func (s *fileDisk) Reader() (io.ReadCloser, error) {
	if s.f != nil {
		return nil, fmt.Errorf("file has not been finalized yet")
	}

	return os.Open(s.fpath)
}

// Size implements File.
func (s *fileDisk) Size() uint64 {
	if s.f != nil {
		if fi, err := s.f.Stat(); err == nil {
			return uint64(fi.Size())
		}
	}
	return s.finalSize
}
