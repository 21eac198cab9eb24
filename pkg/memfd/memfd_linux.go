// Package memfd snapshots executables into sealed memory files so the
// child can execveat them while the original is being replaced.
package memfd

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

const (
	createFlag = unix.MFD_CLOEXEC | unix.MFD_ALLOW_SEALING
	roSeal     = unix.F_SEAL_SEAL | unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_WRITE
)

// New creates an empty memfd, caller needs to close the file
func New(name string) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, createFlag)
	if err != nil {
		return nil, fmt.Errorf("memfd: memfd_create %s: %w", name, err)
	}
	return os.NewFile(uintptr(fd), name), nil
}

// Seal copies reader into a read-only memfd and rewinds it
func Seal(name string, reader io.Reader) (*os.File, error) {
	file, err := New(name)
	if err != nil {
		return nil, err
	}
	if _, err = file.ReadFrom(reader); err != nil {
		file.Close()
		return nil, fmt.Errorf("memfd: copy %s: %w", name, err)
	}
	if _, err = unix.FcntlInt(file.Fd(), unix.F_ADD_SEALS, roSeal); err != nil {
		file.Close()
		return nil, fmt.Errorf("memfd: seal %s: %w", name, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("memfd: seek %s: %w", name, err)
	}
	return file, nil
}

// Seals returns the seals applied to f
func Seals(f *os.File) (int, error) {
	return unix.FcntlInt(f.Fd(), unix.F_GET_SEALS, 0)
}

// OpenExecutable looks up prog in PATH and snapshots it with its mode
// preserved, so it can be passed as the exec file of a Runner
func OpenExecutable(prog string) (*os.File, error) {
	p, err := exec.LookPath(prog)
	if err != nil {
		return nil, err
	}
	in, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return nil, err
	}
	if st.Mode()&0o111 == 0 {
		return nil, &os.PathError{Op: "exec", Path: p, Err: unix.EACCES}
	}

	f, err := New(p)
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(st.Mode().Perm()); err != nil {
		f.Close()
		return nil, err
	}
	if _, err = f.ReadFrom(in); err != nil {
		f.Close()
		return nil, fmt.Errorf("memfd: copy %s: %w", p, err)
	}
	if _, err = unix.FcntlInt(f.Fd(), unix.F_ADD_SEALS, roSeal); err != nil {
		f.Close()
		return nil, fmt.Errorf("memfd: seal %s: %w", p, err)
	}
	return f, nil
}
