package clone3

import (
	"fmt"
	"math"
	"syscall"
)

// Result is the outcome of a successful clone3 call. The call returns
// twice: once in the new child with a zero Result and once in the calling
// process with the pid of the child.
type Result struct {
	pid int
}

// IsChild reports whether the caller is running in the new child
func (r Result) IsChild() bool {
	return r.pid == 0
}

// PID returns the pid (or tid) of the child, 0 in the child itself
func (r Result) PID() int {
	return r.pid
}

func (r Result) String() string {
	if r.IsChild() {
		return "child"
	}
	return fmt.Sprintf("parent(child=%d)", r.pid)
}

// interpret classifies the raw return of the system call. A value that
// does not fit pid_t means the assumptions about the kernel interface are
// broken and it panics instead of returning an error.
func interpret(r1 uintptr, errno syscall.Errno) (Result, error) {
	if errno != 0 {
		return Result{}, errno
	}
	if uint64(r1) > math.MaxInt32 {
		panic(fmt.Sprintf("clone3: could not convert successful system call result %d to pid_t", r1))
	}
	return Result{pid: int(r1)}, nil
}
