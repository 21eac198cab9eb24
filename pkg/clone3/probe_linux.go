package clone3

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sys/unix"
)

// ErrNotSupported is returned when the running kernel cannot serve clone3
var ErrNotSupported = errors.New("clone3: not supported by the running kernel")

var revisionSince = []struct {
	rev   Revision
	since *semver.Version
}{
	{RevisionVer2, semver.New(5, 7, 0, "", "")},
	{RevisionVer1, semver.New(5, 5, 0, "", "")},
	{RevisionVer0, semver.New(5, 3, 0, "", "")},
}

// DetectRevision returns the newest clone_args revision supported by the
// running kernel according to its release
func DetectRevision() (Revision, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return 0, fmt.Errorf("clone3: uname: %w", err)
	}
	return RevisionForRelease(unix.ByteSliceToString(uts.Release[:]))
}

// RevisionForRelease maps a kernel release such as "5.15.0-91-generic" to
// the newest clone_args revision it supports
func RevisionForRelease(release string) (Revision, error) {
	v, err := ParseRelease(release)
	if err != nil {
		return 0, err
	}
	for _, r := range revisionSince {
		if !v.LessThan(r.since) {
			return r.rev, nil
		}
	}
	return 0, ErrNotSupported
}

// ParseRelease parses the numeric part of a kernel release, distribution
// suffixes and components after major.minor.patch are dropped
func ParseRelease(release string) (*semver.Version, error) {
	end, dots := 0, 0
	for ; end < len(release); end++ {
		c := release[end]
		if c == '.' {
			if dots++; dots == 3 {
				break
			}
		} else if c < '0' || c > '9' {
			break
		}
	}
	v, err := semver.NewVersion(release[:end])
	if err != nil {
		return nil, fmt.Errorf("clone3: invalid kernel release %q: %w", release, err)
	}
	return semver.New(v.Major(), v.Minor(), v.Patch(), "", ""), nil
}

// Probe checks whether clone3 can be called. It issues clone3 with an empty
// record which the kernel rejects with EINVAL before creating anything.
// ENOSYS (old kernel) and EPERM (seccomp policy of a container runtime)
// result in ErrNotSupported.
func Probe() error {
	_, _, errno := syscall.RawSyscall(unix.SYS_CLONE3, 0, 0, 0)
	switch errno {
	case syscall.EINVAL, syscall.E2BIG, syscall.EFAULT:
		return nil
	case syscall.ENOSYS, syscall.EPERM:
		return ErrNotSupported
	case 0:
		// unreachable: the kernel never accepts a zero sized record
		return fmt.Errorf("clone3: probe unexpectedly succeeded")
	default:
		return fmt.Errorf("clone3: probe: %w", errno)
	}
}
