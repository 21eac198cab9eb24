package forkexec

import (
	"fmt"
	"syscall"
)

// ErrorLocation defines the location where child process failed to exec
type ErrorLocation int

// ChildError defines the specific error and location where it failed
type ChildError struct {
	Err      syscall.Errno
	Location ErrorLocation
	Index    int
}

// Location constants
const (
	LocClone ErrorLocation = iota + 1
	LocCloseWrite
	LocUnshareUserRead
	LocDup3
	LocFcntl
	LocSetSid
	LocSetHostName
	LocSetDomainName
	LocChdir
	LocSetRlimit
	LocSetNoNewPrivs
	LocSyncWrite
	LocSyncRead
	LocSeccomp
	LocExecve
)

var locToString = []string{
	"unknown",
	"clone3",
	"close_write",
	"unshare_user_read",
	"dup3",
	"fcntl",
	"setsid",
	"sethostname",
	"setdomainname",
	"chdir",
	"setrlimit",
	"set_no_new_privs",
	"sync_write",
	"sync_read",
	"seccomp",
	"execve",
}

func (e ErrorLocation) String() string {
	if e >= LocClone && e <= LocExecve {
		return locToString[e]
	}
	return "unknown"
}

func (e ChildError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s(%d): %s", e.Location.String(), e.Index, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Location.String(), e.Err.Error())
}

// Unwrap returns the errno so errors.Is works on the child failure
func (e ChildError) Unwrap() error {
	return e.Err
}
