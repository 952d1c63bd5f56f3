package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

type factoryRAM struct {
	mutex sync.Mutex
	files map[string]*fileRAM
}

// NewFactoryRAM allocates a RAM-backed factory.
func NewFactoryRAM() Factory {
	return &factoryRAM{
		files: make(map[string]*fileRAM),
	}
}

// IsRAM checks whether a factory keeps files in RAM.
func IsRAM(f Factory) bool {
	_, ok := f.(*factoryRAM)
	return ok
}

// NewFile implements Factory.
func (s *factoryRAM) NewFile(fileName string) (File, error) {
	f := &fileRAM{s: s}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.files[fileName] = f

	return f, nil
}

// Rename implements Factory.
func (s *factoryRAM) Rename(oldName string, newName string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, ok := s.files[oldName]
	if !ok {
		return fmt.Errorf("rename %s: %w", oldName, os.ErrNotExist)
	}

	delete(s.files, oldName)
	s.files[newName] = f

	return nil
}

// Remove implements Factory.
func (s *factoryRAM) Remove(fileName string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.files[fileName]; !ok {
		return fmt.Errorf("remove %s: %w", fileName, os.ErrNotExist)
	}

	delete(s.files, fileName)

	return nil
}

// Reader implements Factory.
func (s *factoryRAM) Reader(fileName string) (io.ReadCloser, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, ok := s.files[fileName]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", fileName, os.ErrNotExist)
	}

	if !f.finalized {
		return nil, fmt.Errorf("file has not been finalized yet")
	}

	return io.NopCloser(bytes.NewReader(f.buf.Bytes())), nil
}
