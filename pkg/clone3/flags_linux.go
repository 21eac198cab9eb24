package clone3

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Flags is the flags bit mask of clone_args as defined in linux/sched.h
type Flags uint64

// Clone flags
const (
	ChildClearTID Flags = unix.CLONE_CHILD_CLEARTID
	ChildSetTID   Flags = unix.CLONE_CHILD_SETTID
	ClearSighand  Flags = unix.CLONE_CLEAR_SIGHAND // since Linux 5.5
	Files         Flags = unix.CLONE_FILES
	FS            Flags = unix.CLONE_FS
	IntoCgroup    Flags = unix.CLONE_INTO_CGROUP // since Linux 5.7
	IO            Flags = unix.CLONE_IO
	NewCgroup     Flags = unix.CLONE_NEWCGROUP
	NewIPC        Flags = unix.CLONE_NEWIPC
	NewNet        Flags = unix.CLONE_NEWNET
	NewNS         Flags = unix.CLONE_NEWNS
	NewPID        Flags = unix.CLONE_NEWPID
	NewTime       Flags = unix.CLONE_NEWTIME
	NewUser       Flags = unix.CLONE_NEWUSER
	NewUTS        Flags = unix.CLONE_NEWUTS
	Parent        Flags = unix.CLONE_PARENT
	ParentSetTID  Flags = unix.CLONE_PARENT_SETTID
	PidFD         Flags = unix.CLONE_PIDFD
	Ptrace        Flags = unix.CLONE_PTRACE
	SetTLS        Flags = unix.CLONE_SETTLS
	Sighand       Flags = unix.CLONE_SIGHAND
	SysVSem       Flags = unix.CLONE_SYSVSEM
	Thread        Flags = unix.CLONE_THREAD
	Untraced      Flags = unix.CLONE_UNTRACED
	VFork         Flags = unix.CLONE_VFORK
	VM            Flags = unix.CLONE_VM

	// Namespaces is the set of flags that create new namespaces
	Namespaces = NewCgroup | NewIPC | NewNet | NewNS | NewPID | NewTime | NewUser | NewUTS
)

// flagNames is ordered by bit value so String output is stable
var flagNames = []struct {
	flag Flags
	name string
}{
	{NewTime, "CLONE_NEWTIME"},
	{VM, "CLONE_VM"},
	{FS, "CLONE_FS"},
	{Files, "CLONE_FILES"},
	{Sighand, "CLONE_SIGHAND"},
	{PidFD, "CLONE_PIDFD"},
	{Ptrace, "CLONE_PTRACE"},
	{VFork, "CLONE_VFORK"},
	{Parent, "CLONE_PARENT"},
	{Thread, "CLONE_THREAD"},
	{NewNS, "CLONE_NEWNS"},
	{SysVSem, "CLONE_SYSVSEM"},
	{SetTLS, "CLONE_SETTLS"},
	{ParentSetTID, "CLONE_PARENT_SETTID"},
	{ChildClearTID, "CLONE_CHILD_CLEARTID"},
	{Untraced, "CLONE_UNTRACED"},
	{ChildSetTID, "CLONE_CHILD_SETTID"},
	{NewCgroup, "CLONE_NEWCGROUP"},
	{NewUTS, "CLONE_NEWUTS"},
	{NewIPC, "CLONE_NEWIPC"},
	{NewUser, "CLONE_NEWUSER"},
	{NewPID, "CLONE_NEWPID"},
	{NewNet, "CLONE_NEWNET"},
	{IO, "CLONE_IO"},
	{ClearSighand, "CLONE_CLEAR_SIGHAND"},
	{IntoCgroup, "CLONE_INTO_CGROUP"},
}

// Union returns the flags set in either f or o
func (f Flags) Union(o Flags) Flags {
	return f | o
}

// Contains reports whether all flags of o are set in f
func (f Flags) Contains(o Flags) bool {
	return f&o == o
}

// Intersects reports whether any flag of o is set in f
func (f Flags) Intersects(o Flags) bool {
	return f&o != 0
}

// String formats flags as CLONE_A|CLONE_B, unknown bits are appended in hex
func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	var sb strings.Builder
	rest := f
	for _, n := range flagNames {
		if rest&n.flag == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(n.name)
		rest &^= n.flag
	}
	if rest != 0 {
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString("0x" + strconv.FormatUint(uint64(rest), 16))
	}
	return sb.String()
}

// ParseFlags parses flag names such as "CLONE_NEWPID" or "newpid"
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, s := range names {
		n, ok := lookupFlag(s)
		if !ok {
			return 0, fmt.Errorf("clone3: unknown flag %q", s)
		}
		f |= n
	}
	return f, nil
}

func lookupFlag(s string) (Flags, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	if !strings.HasPrefix(s, "CLONE_") {
		s = "CLONE_" + s
	}
	for _, n := range flagNames {
		if n.name == s {
			return n.flag, true
		}
	}
	return 0, false
}
