package cgroup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"
)

// ErrNotMounted is returned when no cgroup2 file system is mounted
var ErrNotMounted = errors.New("cgroup: cgroup2 is not mounted")

// DetectType detects current mounted cgroup type in systemd default path
func DetectType() CgroupType {
	// if /sys/fs/cgroup is mounted as CGROUPV2 or TMPFS (V1)
	var st unix.Statfs_t
	if err := unix.Statfs(basePath, &st); err != nil {
		// ignore errors, defaulting to CgroupV1
		return CgroupTypeV1
	}
	if st.Type == unix.CGROUP2_SUPER_MAGIC {
		return CgroupTypeV2
	}
	return CgroupTypeV1
}

// MountPoint finds where the cgroup2 file system is mounted, the systemd
// default path is preferred
func MountPoint() (string, error) {
	mounts, err := mountinfo.GetMounts(mountinfo.FSTypeFilter("cgroup2"))
	if err != nil {
		return "", fmt.Errorf("cgroup: mountinfo: %w", err)
	}
	if len(mounts) == 0 {
		return "", ErrNotMounted
	}
	for _, m := range mounts {
		if m.Mountpoint == basePath {
			return basePath, nil
		}
	}
	return mounts[0].Mountpoint, nil
}

// Current returns the cgroup v2 path of the calling process relative to
// the mount point
func Current() (string, error) {
	f, err := os.Open(procSelfCgroup)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return parseProcCgroup(f)
}

// parseProcCgroup finds the unified hierarchy entry "0::/path"
func parseProcCgroup(r io.Reader) (string, error) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		if p, ok := strings.CutPrefix(s.Text(), "0::"); ok {
			return p, nil
		}
	}
	if err := s.Err(); err != nil {
		return "", err
	}
	return "", ErrNotMounted
}

func remove(name string) error {
	if name != "" {
		return os.Remove(name)
	}
	return nil
}

func readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	for err != nil && errors.Is(err, syscall.EINTR) {
		data, err = os.ReadFile(p)
	}
	return data, err
}

func writeFile(p string, content []byte) error {
	err := os.WriteFile(p, content, filePerm)
	for err != nil && errors.Is(err, syscall.EINTR) {
		err = os.WriteFile(p, content, filePerm)
	}
	return err
}
