//go:build !unix

package hvp

import (
	"io"
	"os"
)

// mmapping is unused on non-unix platforms; mmapFile falls back to a plain
// read, since golang.org/x/sys/unix has no mapping there.
type mmapping struct{}

func (m *mmapping) unmap() error { return nil }

func mmapFile(f *os.File) ([]byte, *mmapping, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return data, &mmapping{}, nil
}
