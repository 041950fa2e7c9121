//go:build unix

package hvp

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapping tracks the bytes returned by unix.Mmap so Close can give them
// back cleanly.
type mmapping struct {
	data []byte
}

func (m *mmapping) unmap() error {
	if m == nil || m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// mmapFile maps f's entire contents read-only. The caller retains
// ownership of f; mmapping.unmap releases only the mapping, not the
// descriptor.
func mmapFile(f *os.File) ([]byte, *mmapping, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil, os.ErrInvalid
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, &mmapping{data: data}, nil
}
