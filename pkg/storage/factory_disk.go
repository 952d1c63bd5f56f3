package storage

import (
	"io"
	"os"
	"path/filepath"
)

type factoryDisk struct {
	dirPath string
}

// NewFactoryDisk allocates a disk-backed factory.
func NewFactoryDisk(dirPath string) Factory {
	return &factoryDisk{
		dirPath: dirPath,
	}
}

// NewFile implements Factory.
func (s *factoryDisk) NewFile(fileName string) (File, error) {
	return newFileDisk(filepath.Join(s.dirPath, fileName))
}

// Rename implements Factory.
func (s *factoryDisk) Rename(oldName string, newName string) error {
	return os.Rename(filepath.Join(s.dirPath, oldName), filepath.Join(s.dirPath, newName))
}

// Remove implements Factory.
func (s *factoryDisk) Remove(fileName string) error {
	return os.Remove(filepath.Join(s.dirPath, fileName))
}

// Reader implements Factory.
func (s *factoryDisk) Reader(fileName string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.dirPath, filepath.Base(fileName)))
}
