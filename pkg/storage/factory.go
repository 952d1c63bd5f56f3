// Package storage contains the storage mechanism of segments and playlists.
package storage

import (
	"io"
)

// Factory allows to allocate the storage of segments and playlists.
type Factory interface {
	// NewFile creates a file, replacing any existing file with the same name.
	NewFile(fileName string) (File, error)

	// Rename renames a file, replacing the destination atomically.
	Rename(oldName string, newName string) error

	// Remove removes a file.
	Remove(fileName string) error

	// Reader returns a ReadCloser to read a finalized file.
	// Close() must always be called to avoid a memory leak.
	Reader(fileName string) (io.ReadCloser, error)
}
