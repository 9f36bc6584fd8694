package dataset

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Memory is an anonymous private mapping viewed as little-endian words.
type Memory struct {
	buf []byte
}

// Allocate maps size bytes of zeroed memory. size must be a multiple of 8.
func Allocate(size int) (*Memory, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	// transparent huge pages are a hint; ignore kernels without them
	_ = unix.Madvise(buf, unix.MADV_HUGEPAGE)
	return &Memory{buf: buf}, nil
}

func (m *Memory) Bytes() []byte { return m.buf }

// Words views the mapping as uint64s. Byte order is the host's, which is
// little-endian on every platform this package builds for.
func (m *Memory) Words() []uint64 {
	if len(m.buf) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&m.buf[0])), len(m.buf)/8)
}

func (m *Memory) Close() error {
	if m.buf == nil {
		return nil
	}
	err := unix.Munmap(m.buf)
	m.buf = nil
	return err
}
