package storage

import (
	"bytes"
	"fmt"
)

type fileRAM struct {
	s         *factoryRAM
	buf       bytes.Buffer
	finalized bool
}

// Write implements File.
func (f *fileRAM) Write(p []byte) (int, error) {
	f.s.mutex.Lock()
	defer f.s.mutex.Unlock()

	if f.finalized {
		return 0, fmt.Errorf("file has been finalized")
	}

	return f.buf.Write(p)
}

// Finalize implements File.
func (f *fileRAM) Finalize() error {
	f.s.mutex.Lock()
	defer f.s.mutex.Unlock()

	f.finalized = true
	return nil
}

// Size implements File.
func (f *fileRAM) Size() uint64 {
	f.s.mutex.Lock()
	defer f.s.mutex.Unlock()

	return uint64(f.buf.Len())
}
