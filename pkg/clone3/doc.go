// Package clone3 provides a builder for the Linux clone3 system call.
//
// clone3 takes a single clone_args record instead of positional arguments.
// The Clone3 builder collects flags together with the output slots and input
// buffers they govern, rejects inconsistent combinations before the kernel
// sees them, marshals the record and performs the call.
//
//	var pidfd int32 = -1
//	res, err := clone3.New().WithPidFD(&pidfd).ExitSignal(syscall.SIGCHLD).Call()
//	if err != nil {
//		return err
//	}
//	if res.IsChild() {
//		// only raw system calls until execve or exit
//	}
//
// clone3 requires Linux >= 5.3, set_tid and CLONE_CLEAR_SIGHAND require
// Linux >= 5.5, CLONE_INTO_CGROUP requires Linux >= 5.7.
package clone3
