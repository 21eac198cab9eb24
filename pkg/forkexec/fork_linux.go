package forkexec

import (
	"errors"
	"syscall"
	"unsafe"

	"github.com/criyle/go-clone3/pkg/clone3"
	"golang.org/x/sys/unix"
)

// Start will clone3, apply limits and seccomp and execve
// Return the started process and potential error
//
// Configuration errors of the clone3 flags are returned as
// *clone3.ConfigError before anything is created. Failures of the child
// before execve are returned as ChildError.
func (r *Runner) Start() (Process, error) {
	argv0, argv, env, err := prepareExec(r.Args, r.Env)
	if err != nil {
		return Process{PidFD: -1}, err
	}

	// prepare work dir
	workdir, err := syscallStringFromString(r.WorkDir)
	if err != nil {
		return Process{PidFD: -1}, err
	}

	// prepare hostname
	hostname, err := syscallStringFromString(r.HostName)
	if err != nil {
		return Process{PidFD: -1}, err
	}

	// prepare domainname
	domainname, err := syscallStringFromString(r.DomainName)
	if err != nil {
		return Process{PidFD: -1}, err
	}

	// socketpair p used to notify child the uid / gid mapping have been setup
	// socketpair p is also used to sync with parent before final execve
	// p[0] is used by parent and p[1] is used by child
	p, err := syscall.Socketpair(syscall.AF_LOCAL, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return Process{PidFD: -1}, err
	}

	// clone3 in child
	pid, pidfd, err := forkAndExecInChild(r, r.cloneBuilder(), argv0, argv, env, workdir, hostname, domainname, p)
	return syncWithChild(r, p, pid, pidfd, err)
}

// cloneBuilder maps the runner onto clone3 flags
func (r *Runner) cloneBuilder() *clone3.Clone3 {
	c := clone3.New().
		AddFlags(r.CloneFlags & clone3.Namespaces).
		ExitSignal(syscall.SIGCHLD)
	if r.Revision != 0 {
		c.Revision(r.Revision)
	}
	if r.Cgroup != nil {
		c.WithIntoCgroup(r.Cgroup)
	}
	return c
}

func syncWithChild(r *Runner, p [2]int, pid, pidfd int, err error) (Process, error) {
	var (
		r1          uintptr
		err1        syscall.Errno
		err2        syscall.Errno
		childErr    ChildError
		proc        = Process{Pid: pid, PidFD: pidfd}
		unshareUser = r.CloneFlags.Contains(clone3.NewUser)
	)

	// sync with child
	unix.Close(p[1])

	// clone3 failed
	if err != nil {
		unix.Close(p[0])
		return Process{PidFD: -1}, err
	}

	// synchronize with child for uid / gid map
	if unshareUser {
		if err = writeIDMaps(r, pid); err != nil {
			err2 = syscall.EPERM
			errors.As(err, &err2)
		}
		syscall.RawSyscall(syscall.SYS_WRITE, uintptr(p[0]), uintptr(unsafe.Pointer(&err2)), uintptr(unsafe.Sizeof(err2)))
		if err != nil {
			goto fail
		}
	}

	r1, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(p[0]), uintptr(unsafe.Pointer(&childErr)), uintptr(unsafe.Sizeof(childErr)))
	// child returned error code
	if r1 != unsafe.Sizeof(childErr) || childErr.Err != 0 || err1 != 0 {
		err = handlePipeError(r1, err1, childErr)
		goto fail
	}

	// if syncfunc return error, then fail child immediately
	if r.SyncFunc != nil {
		if err = r.SyncFunc(pid); err != nil {
			goto fail
		}
	}
	// otherwise, ack child (err1 == 0)
	syscall.RawSyscall(syscall.SYS_WRITE, uintptr(p[0]), uintptr(unsafe.Pointer(&err1)), uintptr(unsafe.Sizeof(err1)))

	// if read anything mean child failed after sync (close_on_exec so it should not block)
	r1, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(p[0]), uintptr(unsafe.Pointer(&childErr)), uintptr(unsafe.Sizeof(childErr)))
	unix.Close(p[0])
	if r1 != 0 || err1 != 0 {
		err = handlePipeError(r1, err1, childErr)
		goto failAfterClose
	}
	return proc, nil

fail:
	unix.Close(p[0])

failAfterClose:
	handleChildFailed(&proc)
	return Process{PidFD: -1}, err
}

// check pipe error
func handlePipeError(r1 uintptr, errno syscall.Errno, childErr ChildError) error {
	if r1 == unsafe.Sizeof(childErr) {
		return childErr
	}
	if errno != 0 {
		return errno
	}
	return syscall.EPIPE
}

func handleChildFailed(p *Process) {
	// make sure not blocked
	p.Signal(syscall.SIGKILL)
	// child failed; wait for it to exit, to make sure the zombies don't accumulate
	p.Wait()
	p.Release()
}
