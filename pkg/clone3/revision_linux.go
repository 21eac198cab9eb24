package clone3

import (
	"golang.org/x/sys/unix"
)

// Revision is the version of clone_args understood by the target kernel.
// Newer revisions append fields to the record and add flags, older
// revisions simply do not know them.
type Revision int

// Revisions of clone_args
const (
	RevisionVer0 Revision = iota + 1 // Linux 5.3
	RevisionVer1                     // Linux 5.5: set_tid, CLONE_CLEAR_SIGHAND
	RevisionVer2                     // Linux 5.7: cgroup, CLONE_INTO_CGROUP

	Latest = RevisionVer2
)

// baseFlags are the flags of the first clone3 kernel. CLONE_NEWTIME (5.6)
// is a flag value rather than a record field, so it is left to the running
// kernel to reject instead of being tied to a revision.
const baseFlags = ChildClearTID | ChildSetTID | Files | FS | IO | NewCgroup |
	NewIPC | NewNet | NewNS | NewPID | NewTime | NewUser | NewUTS | Parent |
	ParentSetTID | PidFD | Ptrace | SetTLS | Sighand | SysVSem | Thread |
	Untraced | VFork | VM

// Size returns the size of clone_args passed to the kernel for the revision
func (r Revision) Size() uintptr {
	switch r {
	case RevisionVer0:
		return unix.CLONE_ARGS_SIZE_VER0
	case RevisionVer1:
		return unix.CLONE_ARGS_SIZE_VER1
	case RevisionVer2:
		return unix.CLONE_ARGS_SIZE_VER2
	default:
		return 0
	}
}

// Flags returns all flags known to the revision
func (r Revision) Flags() Flags {
	switch r {
	case RevisionVer0:
		return baseFlags
	case RevisionVer1:
		return baseFlags | ClearSighand
	case RevisionVer2:
		return baseFlags | ClearSighand | IntoCgroup
	default:
		return 0
	}
}

// HasSetTID reports whether the revision carries set_tid / set_tid_size
func (r Revision) HasSetTID() bool {
	return r >= RevisionVer1 && r <= RevisionVer2
}

// HasCgroup reports whether the revision carries the cgroup field
func (r Revision) HasCgroup() bool {
	return r == RevisionVer2
}

// Valid reports whether r is a known revision
func (r Revision) Valid() bool {
	return r >= RevisionVer0 && r <= RevisionVer2
}

func (r Revision) String() string {
	switch r {
	case RevisionVer0:
		return "ver0(linux 5.3)"
	case RevisionVer1:
		return "ver1(linux 5.5)"
	case RevisionVer2:
		return "ver2(linux 5.7)"
	default:
		return "invalid"
	}
}

// ParseRevision parses ver0, ver1, ver2 or latest
func ParseRevision(s string) (Revision, bool) {
	switch s {
	case "ver0", "5.3":
		return RevisionVer0, true
	case "ver1", "5.5":
		return RevisionVer1, true
	case "ver2", "5.7", "latest", "":
		return RevisionVer2, true
	default:
		return 0, false
	}
}
