package forkexec

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// siginfo_t keeps si_signo, si_errno, si_code then a pointer aligned union,
// the sigchld member is {pid, uid, status}
const (
	sigchldOffset = (3*4 + unsafe.Sizeof(uintptr(0)) - 1) &^ (unsafe.Sizeof(uintptr(0)) - 1)
	statusOffset  = sigchldOffset + 8
)

// Status is how the child terminated
type Status struct {
	Exited     bool
	ExitCode   int
	Signal     syscall.Signal
	CoreDumped bool
}

// Success reports whether the child exited with code 0
func (s Status) Success() bool {
	return s.Exited && s.ExitCode == 0
}

func (s Status) String() string {
	switch {
	case s.Exited:
		return fmt.Sprintf("exited(%d)", s.ExitCode)
	case s.CoreDumped:
		return fmt.Sprintf("signaled(%v, core dumped)", s.Signal)
	default:
		return fmt.Sprintf("signaled(%v)", s.Signal)
	}
}

// Wait waits for the child to terminate and reaps it. The pidfd is used
// when present so the wait can not target a recycled pid.
func (p *Process) Wait() (Status, error) {
	if p.PidFD < 0 {
		var ws syscall.WaitStatus
		_, err := syscall.Wait4(p.Pid, &ws, 0, nil)
		for err == syscall.EINTR {
			_, err = syscall.Wait4(p.Pid, &ws, 0, nil)
		}
		if err != nil {
			return Status{}, fmt.Errorf("wait4: %w", err)
		}
		return Status{
			Exited:     ws.Exited(),
			ExitCode:   ws.ExitStatus(),
			Signal:     ws.Signal(),
			CoreDumped: ws.CoreDump(),
		}, nil
	}

	var info unix.Siginfo
	err := unix.Waitid(unix.P_PIDFD, p.PidFD, &info, unix.WEXITED, nil)
	for err == unix.EINTR {
		err = unix.Waitid(unix.P_PIDFD, p.PidFD, &info, unix.WEXITED, nil)
	}
	if err != nil {
		return Status{}, fmt.Errorf("waitid: %w", err)
	}
	return statusFromSiginfo(&info), nil
}

func statusFromSiginfo(info *unix.Siginfo) Status {
	status := int(*(*int32)(unsafe.Add(unsafe.Pointer(info), statusOffset)))
	switch info.Code {
	case _CLD_EXITED:
		return Status{Exited: true, ExitCode: status}
	case _CLD_DUMPED:
		return Status{Signal: syscall.Signal(status), CoreDumped: true}
	default:
		return Status{Signal: syscall.Signal(status)}
	}
}

// Signal sends sig to the child, through the pidfd if present
func (p *Process) Signal(sig syscall.Signal) error {
	if p.PidFD >= 0 {
		return unix.PidfdSendSignal(p.PidFD, sig, nil, 0)
	}
	return syscall.Kill(p.Pid, sig)
}

// Release closes the pidfd
func (p *Process) Release() error {
	if p.PidFD < 0 {
		return nil
	}
	err := unix.Close(p.PidFD)
	p.PidFD = -1
	return err
}
