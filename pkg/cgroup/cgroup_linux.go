package cgroup

import (
	"bufio"
	"bytes"
	"os"
	"path"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Cgroup is a cgroup v2 directory
type Cgroup struct {
	path string
}

// Open returns a cgroup at an existing path
func Open(p string) (*Cgroup, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, &os.PathError{Op: "open", Path: p, Err: unix.ENOTDIR}
	}
	return &Cgroup{path: p}, nil
}

// Path returns the directory of the cgroup
func (c *Cgroup) Path() string {
	return c.path
}

func (c *Cgroup) String() string {
	return "cgroup(" + c.path + ")"
}

// OpenFD opens the cgroup directory for CLONE_INTO_CGROUP
func (c *Cgroup) OpenFD() (*os.File, error) {
	fd, err := unix.Open(c.path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: c.path, Err: err}
	}
	return os.NewFile(uintptr(fd), c.path), nil
}

// AddProc add a process into the cgroup
func (c *Cgroup) AddProc(pids ...int) error {
	for _, pid := range pids {
		if err := c.WriteUint(cgroupProcs, uint64(pid)); err != nil {
			return err
		}
	}
	return nil
}

// Processes lists all existing process pid from the cgroup
func (c *Cgroup) Processes() ([]int, error) {
	b, err := c.ReadFile(cgroupProcs)
	if err != nil {
		return nil, err
	}
	var ret []int
	for _, f := range strings.Fields(string(b)) {
		pid, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		ret = append(ret, pid)
	}
	return ret, nil
}

// Kill kills all processes of the cgroup (since Linux 5.14)
func (c *Cgroup) Kill() error {
	return c.WriteFile(cgroupKill, []byte("1"))
}

// Destroy deletes the cgroup, it must not contain any process
func (c *Cgroup) Destroy() error {
	return remove(c.path)
}

// CPUUsage reads cpu.stat usage_usec in ns
func (c *Cgroup) CPUUsage() (uint64, error) {
	b, err := c.ReadFile("cpu.stat")
	if err != nil {
		return 0, err
	}
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		parts := strings.Fields(s.Text())
		if len(parts) == 2 && parts[0] == "usage_usec" {
			v, err := strconv.ParseUint(parts[1], 10, 64)
			if err != nil {
				return 0, err
			}
			return v * 1000, nil // to ns
		}
	}
	return 0, os.ErrNotExist
}

// MemoryUsage reads memory.current
func (c *Cgroup) MemoryUsage() (uint64, error) {
	return c.ReadUint("memory.current")
}

// MemoryMaxUsage reads memory.peak (since Linux 5.19)
func (c *Cgroup) MemoryMaxUsage() (uint64, error) {
	return c.ReadUint("memory.peak")
}

// SetCPUBandwidth set cpu.max quota period in us
func (c *Cgroup) SetCPUBandwidth(quota, period uint64) error {
	content := strconv.FormatUint(quota, 10) + " " + strconv.FormatUint(period, 10)
	return c.WriteFile("cpu.max", []byte(content))
}

// SetCPUSet sets cpuset.cpus
func (c *Cgroup) SetCPUSet(content []byte) error {
	return c.WriteFile("cpuset.cpus", content)
}

// SetMemoryLimit memory.max
func (c *Cgroup) SetMemoryLimit(l uint64) error {
	return c.WriteUint("memory.max", l)
}

// SetProcLimit pids.max
func (c *Cgroup) SetProcLimit(l uint64) error {
	return c.WriteUint("pids.max", l)
}

// WriteUint writes uint64 into given file
func (c *Cgroup) WriteUint(filename string, i uint64) error {
	return c.WriteFile(filename, []byte(strconv.FormatUint(i, 10)))
}

// ReadUint read uint64 from given file
func (c *Cgroup) ReadUint(filename string) (uint64, error) {
	b, err := c.ReadFile(filename)
	if err != nil {
		return 0, err
	}
	s, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, err
	}
	return s, nil
}

// WriteFile writes cgroup file and handles potential EINTR error while writes to
// the slow device (cgroup)
func (c *Cgroup) WriteFile(name string, content []byte) error {
	p := path.Join(c.path, name)
	return writeFile(p, content)
}

// ReadFile reads cgroup file and handles potential EINTR error while read to
// the slow device (cgroup)
func (c *Cgroup) ReadFile(name string) ([]byte, error) {
	p := path.Join(c.path, name)
	return readFile(p)
}
