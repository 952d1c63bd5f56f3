package storage

import (
	"io"
)

// File is the underlying storage of a file that is being written.
type File interface {
	io.Writer

	// Finalize finalizes the file, making it read-only.
	// It must always be called to avoid a leak.
	Finalize() error

	// Size returns the size of the file.
	Size() uint64
}
