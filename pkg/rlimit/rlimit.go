// Package rlimit provides data structure for resource limits applied by
// prlimit to the child before execve.
package rlimit

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
)

// RLimits defines the rlimit applied to the child process
type RLimits struct {
	CPU          uint64 // in s
	CPUHard      uint64 // in s
	Data         uint64 // in bytes
	FileSize     uint64 // in bytes
	Stack        uint64 // in bytes
	AddressSpace uint64 // in bytes
	OpenFile     uint64 // number of fds
	DisableCore  bool   // set core to 0
}

// RLimit is the resource limits defined by Linux setrlimit
type RLimit struct {
	// Res is the resource type (e.g. syscall.RLIMIT_CPU)
	Res int
	// Rlim is the limit applied to that resource
	Rlim syscall.Rlimit
}

func getRlimit(cur, max uint64) syscall.Rlimit {
	return syscall.Rlimit{Cur: cur, Max: max}
}

// PrepareRLimit creates rlimit structures for the child, zero values are
// left unlimited
func (r *RLimits) PrepareRLimit() []RLimit {
	var ret []RLimit
	if r.CPU > 0 {
		cpuHard := max(r.CPUHard, r.CPU)
		ret = append(ret, RLimit{
			Res:  syscall.RLIMIT_CPU,
			Rlim: getRlimit(r.CPU, cpuHard),
		})
	}
	for _, l := range []struct {
		res int
		v   uint64
	}{
		{syscall.RLIMIT_DATA, r.Data},
		{syscall.RLIMIT_FSIZE, r.FileSize},
		{syscall.RLIMIT_STACK, r.Stack},
		{syscall.RLIMIT_AS, r.AddressSpace},
		{syscall.RLIMIT_NOFILE, r.OpenFile},
	} {
		if l.v > 0 {
			ret = append(ret, RLimit{Res: l.res, Rlim: getRlimit(l.v, l.v)})
		}
	}
	if r.DisableCore {
		ret = append(ret, RLimit{
			Res:  syscall.RLIMIT_CORE,
			Rlim: getRlimit(0, 0),
		})
	}
	return ret
}

func (r RLimit) String() string {
	switch r.Res {
	case syscall.RLIMIT_CPU:
		return fmt.Sprintf("CPU[%d s:%d s]", r.Rlim.Cur, r.Rlim.Max)
	case syscall.RLIMIT_NOFILE:
		return fmt.Sprintf("OpenFile[%d:%d]", r.Rlim.Cur, r.Rlim.Max)
	}
	t := ""
	switch r.Res {
	case syscall.RLIMIT_DATA:
		t = "Data"
	case syscall.RLIMIT_FSIZE:
		t = "File"
	case syscall.RLIMIT_STACK:
		t = "Stack"
	case syscall.RLIMIT_AS:
		t = "AddressSpace"
	case syscall.RLIMIT_CORE:
		t = "Core"
	default:
		t = fmt.Sprintf("Resource(%d)", r.Res)
	}
	return fmt.Sprintf("%s[%s:%s]", t, humanize.IBytes(r.Rlim.Cur), humanize.IBytes(r.Rlim.Max))
}

func (r RLimits) String() string {
	var sb strings.Builder
	sb.WriteString("RLimits[")
	for i, rl := range r.PrepareRLimit() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(rl.String())
	}
	sb.WriteString("]")
	return sb.String()
}
