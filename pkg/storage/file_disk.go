package storage

import (
	"os"
)

// segments and playlists are readable and writable by everyone,
// since they are usually served by a separate web server.
const fileMode = 0o666

type fileDisk struct {
	f    *os.File
	size uint64
}

func newFileDisk(fpath string) (File, error) {
	f, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return nil, err
	}

	// umask does not apply to Chmod
	err = f.Chmod(fileMode)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &fileDisk{
		f: f,
	}, nil
}

// Write implements File.
func (s *fileDisk) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	s.size += uint64(n)
	return n, err
}

// Finalize implements File.
func (s *fileDisk) Finalize() error {
	return s.f.Close()
}

// Size implements File.
func (s *fileDisk) Size() uint64 {
	return s.size
}
