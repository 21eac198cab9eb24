package clone3

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// AllocStack maps an anonymous stack for a CLONE_VM child. The memory is
// not managed by the Go runtime so it never moves, and it must be released
// with ReleaseStack after the child has stopped using it.
func AllocStack(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("clone3: invalid stack size %d", size)
	}
	pageSize := unix.Getpagesize()
	size = (size + pageSize - 1) &^ (pageSize - 1)
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_STACK)
	if err != nil {
		return nil, fmt.Errorf("clone3: mmap stack: %w", err)
	}
	return b, nil
}

// ReleaseStack unmaps a stack created by AllocStack
func ReleaseStack(b []byte) error {
	return unix.Munmap(b)
}
