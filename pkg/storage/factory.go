// Package storage contains destinations of muxed files.
package storage

// Factory allows to allocate the storage of files.
type Factory interface {
	NewFile(fileName string) (File, error)
}
