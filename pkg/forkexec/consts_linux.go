package forkexec

import (
	"golang.org/x/sys/unix"
)

// defines missing consts from syscall package
const (
	SECCOMP_SET_MODE_STRICT   = 0
	SECCOMP_SET_MODE_FILTER   = 1
	SECCOMP_FILTER_FLAG_TSYNC = 1

	// si_code of SIGCHLD
	_CLD_EXITED = 1
	_CLD_DUMPED = 3

	// attempts of execve while the executable is being written
	etxtbsyRetry = 50
)

var (
	// used by execveat with AT_EMPTY_PATH
	empty = [...]byte{0}

	// written to /proc/[pid]/setgroups
	setGIDAllow = []byte("allow")
	setGIDDeny  = []byte("deny")

	etxtbsyRetryInterval = unix.Timespec{
		Nsec: 20 * 1000 * 1000, // 20ms
	}
)
