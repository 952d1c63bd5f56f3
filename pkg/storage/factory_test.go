package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	for _, ca := range []string{
		"ram",
		"disk",
	} {
		t.Run(ca, func(t *testing.T) {
			var s Factory
			var dir string
			if ca == "ram" {
				s = NewFactoryRAM()
			} else {
				dir = t.TempDir()
				s = NewFactoryDisk(dir)
			}
			require.Equal(t, ca == "ram", IsRAM(s))

			f, err := s.NewFile("index.m3u8.bak")
			require.NoError(t, err)

			_, err = f.Write([]byte{1, 2, 3, 4})
			require.NoError(t, err)

			_, err = f.Write([]byte{5, 6, 7, 8})
			require.NoError(t, err)
			require.Equal(t, uint64(8), f.Size())

			err = f.Finalize()
			require.NoError(t, err)

			err = s.Rename("index.m3u8.bak", "index.m3u8")
			require.NoError(t, err)

			_, err = s.Reader("index.m3u8.bak")
			require.True(t, errors.Is(err, os.ErrNotExist))

			r, err := s.Reader("index.m3u8")
			require.NoError(t, err)

			buf, err := io.ReadAll(r)
			require.NoError(t, err)
			require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf)
			r.Close()

			if ca == "disk" {
				buf, err = os.ReadFile(filepath.Join(dir, "index.m3u8"))
				require.NoError(t, err)
				require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf)

				fi, err := os.Stat(filepath.Join(dir, "index.m3u8"))
				require.NoError(t, err)
				require.Equal(t, os.FileMode(0o666), fi.Mode().Perm())
			}

			// a new file replaces the previous one
			f, err = s.NewFile("index.m3u8")
			require.NoError(t, err)
			_, err = f.Write([]byte{9})
			require.NoError(t, err)
			err = f.Finalize()
			require.NoError(t, err)

			r, err = s.Reader("index.m3u8")
			require.NoError(t, err)
			buf, err = io.ReadAll(r)
			require.NoError(t, err)
			require.Equal(t, []byte{9}, buf)
			r.Close()

			err = s.Remove("index.m3u8")
			require.NoError(t, err)

			_, err = s.Reader("index.m3u8")
			require.True(t, errors.Is(err, os.ErrNotExist))

			err = s.Remove("index.m3u8")
			require.Error(t, err)
		})
	}
}

func TestStorageRAMNotFinalized(t *testing.T) {
	s := NewFactoryRAM()

	_, err := s.NewFile("0.ts")
	require.NoError(t, err)

	_, err = s.Reader("0.ts")
	require.EqualError(t, err, "file has not been finalized yet")
}
