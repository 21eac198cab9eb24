package clone3

import (
	"errors"
	"runtime"
	"syscall"
	"unsafe"
)

// Trap performs the clone3 system call on the record with the given size.
// It returns like syscall.RawSyscall: the raw result and the errno when
// the system call failed.
type Trap func(args *Args, size uintptr) (uintptr, syscall.Errno)

// ErrConsumed is returned when a builder is called more than once
var ErrConsumed = errors.New("clone3: builder has already been used")

// Call validates the builder and performs the system call.
//
// On success it returns twice. In the new child the Result is zero and only
// raw system calls are allowed until execve or exit, since the Go runtime
// is not usable there. In the caller the Result holds the child pid and the
// borrowed slots are filled.
//
// Configuration errors are *ConfigError values (possibly combined) and no
// system call is made. A failed system call returns its syscall.Errno.
// Call panics if the kernel returns a value that is not a valid pid.
//
//go:norace
func (c *Clone3) Call() (Result, error) {
	if c.consumed {
		return Result{}, ErrConsumed
	}
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	r1, errno := c.call()
	if r1 == 0 && errno == 0 {
		// In child process
		return Result{}, nil
	}
	return interpret(r1, errno)
}

// CallUnchecked performs the system call without validation and forwards
// the raw result. The builder is consumed as with Call.
//
//go:norace
func (c *Clone3) CallUnchecked() (uintptr, syscall.Errno) {
	if c.consumed {
		return ^uintptr(0), syscall.EINVAL
	}
	return c.call()
}

//go:norace
func (c *Clone3) call() (r1 uintptr, errno syscall.Errno) {
	c.consumed = true

	// keep borrowed memory alive and in place while the kernel has its address
	var pinner runtime.Pinner
	c.pin(&pinner)
	args := c.Args()
	trap := c.trap
	if trap == nil {
		trap = RawClone3
	}

	r1, errno = trap(&args, c.revision.Size())
	if r1 == 0 && errno == 0 {
		// no Go runtime call in child
		return
	}
	pinner.Unpin()
	runtime.KeepAlive(c.cgroup)
	return
}

func (c *Clone3) pin(p *runtime.Pinner) {
	for _, s := range []*int32{c.pidFD, c.childTID, c.parentTID} {
		if s != nil {
			p.Pin(s)
		}
	}
	if len(c.stack) > 0 {
		p.Pin(unsafe.Pointer(&c.stack[0]))
	}
	if len(c.setTID) > 0 {
		p.Pin(&c.setTID[0])
	}
}
