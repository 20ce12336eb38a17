package storage

import (
	"io"
)

// File is the underlying storage of a file.
type File interface {
	// Writer returns a WriteSeeker to write the file.
	Writer() io.WriteSeeker

	// Finalize finalizes the file, making it read-only.
	// It must always be called to avoid a leak.
	Finalize()

	// Remove removes the file from disk.
	Remove()

	// Reader returns a ReadCloser to read the file.
	// Close() must always be called to avoid a memory leak.
	Reader() (io.ReadCloser, error)

	// Size returns the size of the file.
	Size() uint64
}
