// Package config defines the TOML profile of clone3run
package config

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Config is a run profile
type Config struct {
	// Revision of clone_args: ver0, ver1, ver2 or latest
	Revision string `toml:"revision"`
	// Flags are namespace flag names, e.g. "newpid" or "CLONE_NEWNS"
	Flags []string `toml:"flags"`
	// PidFD requests a pidfd to wait for the child, default true
	PidFD *bool `toml:"pidfd"`

	WorkDir    string   `toml:"workdir"`
	HostName   string   `toml:"hostname"`
	DomainName string   `toml:"domainname"`
	Env        []string `toml:"env"`

	Cgroup  CgroupConfig  `toml:"cgroup"`
	RLimit  RLimitConfig  `toml:"rlimit"`
	Seccomp SeccompConfig `toml:"seccomp"`
}

// CgroupConfig creates a transient cgroup v2 the child is cloned into
type CgroupConfig struct {
	Enable bool   `toml:"enable"`
	Prefix string `toml:"prefix"`

	Memory ByteSize `toml:"memory"`
	Pids   uint64   `toml:"pids"`
	// CPU bandwidth in percent of one cpu, 0 means unlimited
	CPU uint64 `toml:"cpu"`
}

// RLimitConfig is applied by prlimit in the child
type RLimitConfig struct {
	CPU          uint64   `toml:"cpu"`
	CPUHard      uint64   `toml:"cpu_hard"`
	Data         ByteSize `toml:"data"`
	FileSize     ByteSize `toml:"file_size"`
	Stack        ByteSize `toml:"stack"`
	AddressSpace ByteSize `toml:"address_space"`
	OpenFile     uint64   `toml:"open_file"`
	DisableCore  bool     `toml:"disable_core"`
}

// SeccompConfig builds a seccomp filter loaded right before execve
type SeccompConfig struct {
	Default string   `toml:"default"`
	Allow   []string `toml:"allow"`
	Trace   []string `toml:"trace"`
	Deny    []string `toml:"deny"`
}

// ByteSize is a size written either as a number of bytes or as a human
// readable string such as "256MiB"
type ByteSize uint64

// UnmarshalText implements encoding.TextUnmarshaler
func (s *ByteSize) UnmarshalText(b []byte) error {
	v, err := humanize.ParseBytes(string(b))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", b, err)
	}
	*s = ByteSize(v)
	return nil
}

// UnmarshalTOML accepts integers as well as strings
func (s *ByteSize) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case int64:
		if v < 0 {
			return fmt.Errorf("invalid size %d", v)
		}
		*s = ByteSize(v)
		return nil
	case string:
		return s.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("invalid size %v", v)
	}
}

func (s ByteSize) String() string {
	return humanize.IBytes(uint64(s))
}

// Set implements pflag.Value
func (s *ByteSize) Set(v string) error {
	return s.UnmarshalText([]byte(v))
}

// Type implements pflag.Value
func (s *ByteSize) Type() string {
	return "size"
}
