package forkexec

import (
	"os"
	"syscall"

	"github.com/criyle/go-clone3/pkg/clone3"
	"github.com/criyle/go-clone3/pkg/rlimit"
)

// Runner is the configuration including the exec path, argv
// and resource limits. The child is created by clone3 so it can be placed
// in new namespaces and directly in a cgroup.
type Runner struct {
	// argv and env for execve syscall for the child process
	Args []string
	Env  []string

	// if exec_fd is defined, then at the end, fd_execve is called
	ExecFile uintptr

	// POSIX Resource limit set by prlimit
	RLimits []rlimit.RLimit

	// file descriptors map for new process, from 0 to len - 1
	Files []uintptr

	// work path set by chdir(dir) (current working directory for child)
	WorkDir string

	// seccomp syscall filter applied to child right before execve
	Seccomp *syscall.SockFprog

	// namespace flags passed to clone3, other flags are ignored
	CloneFlags clone3.Flags

	// Revision of clone_args, zero means the latest
	Revision clone3.Revision

	// Cgroup is a cgroup v2 directory the child is created in
	// (CLONE_INTO_CGROUP), before it runs any instruction
	Cgroup *os.File

	// PidFD requests a pid file descriptor referring to the child
	PidFD bool

	// HostName and DomainName to be set after unshare UTS & user (CAP_SYS_ADMIN)
	HostName, DomainName string

	// UidMappings / GidMappings for unshared user namespaces, maps the
	// current euid / egid to 0 if mapping is null
	UIDMappings []syscall.SysProcIDMap
	GIDMappings []syscall.SysProcIDMap

	// GidMappingsEnableSetgroups allows / disallows setgroups syscall.
	// deny if GIDMappings is nil
	GIDMappingsEnableSetgroups bool

	// no_new_privs calls prctl(PR_SET_NO_NEW_PRIVS) to disable calls to
	// setuid processes. It is automatically enabled when seccomp filter is provided
	NoNewPrivs bool

	// Parent and child process with sync status through a socket pair.
	// SyncFunc will invoke with the child pid. If SyncFunc return some error,
	// parent will kill the child and report the error
	// SyncFunc is called right before execve, thus it could track cpu more accurately
	SyncFunc func(int) error
}

// Process is a started child
type Process struct {
	Pid int
	// PidFD is the pid file descriptor, -1 if not requested
	PidFD int
}
