package clone3

import (
	"syscall"
	"unsafe" // required for go:linkname.

	"golang.org/x/sys/unix"
)

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()

// RawClone3 is the default Trap. It performs clone3 under syscall.ForkLock
// with the runtime prepared for fork, the same way as the syscall package.
//
// The child returns on the stack it was forked on, so it is only suitable
// without CLONE_VM (or with CLONE_VM|CLONE_VFORK on the caller's stack).
// A child running on a separate stack needs a Trap written in assembly,
// such records are rejected with EINVAL before anything is created.
//
//go:norace
func RawClone3(args *Args, size uintptr) (r1 uintptr, err1 syscall.Errno) {
	if Flags(args.Flags).Contains(VM) && args.Stack != 0 {
		return ^uintptr(0), syscall.EINVAL
	}

	// Acquire the fork lock so that no other threads
	// create new fds that are not yet close-on-exec
	// before we fork.
	syscall.ForkLock.Lock()

	// About to call fork.
	// No more allocation or calls of non-assembly functions.
	beforeFork()

	r1, _, err1 = syscall.RawSyscall(unix.SYS_CLONE3, uintptr(unsafe.Pointer(args)), size, 0)
	if err1 == 0 && r1 == 0 {
		// In child process
		afterForkInChild()
		return
	}

	// restore all signals
	afterFork()
	syscall.ForkLock.Unlock()
	return
}
