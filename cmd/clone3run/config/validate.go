package config

import (
	"fmt"

	"github.com/criyle/go-clone3/pkg/clone3"
	"github.com/criyle/go-clone3/pkg/rlimit"
	"github.com/criyle/go-clone3/pkg/seccomp"
	"github.com/criyle/go-clone3/pkg/seccomp/libseccomp"
)

// Validate checks a profile with defaults applied and returns all errors
func Validate(cfg *Config) []error {
	var errs []error

	if _, ok := clone3.ParseRevision(cfg.Revision); !ok {
		errs = append(errs, fmt.Errorf("revision: unknown clone_args revision %q", cfg.Revision))
	}
	flags, err := clone3.ParseFlags(cfg.Flags)
	if err != nil {
		errs = append(errs, fmt.Errorf("flags: %w", err))
	} else if other := flags &^ clone3.Namespaces; other != 0 {
		errs = append(errs, fmt.Errorf("flags: %v are not namespace flags", other))
	}
	if (cfg.HostName != "" || cfg.DomainName != "") && !flags.Contains(clone3.NewUTS) {
		errs = append(errs, fmt.Errorf("hostname: requires the newuts flag"))
	}
	if _, ok := seccomp.ParseAction(cfg.Seccomp.Default); !ok {
		errs = append(errs, fmt.Errorf("seccomp.default: unknown action %q", cfg.Seccomp.Default))
	}
	if (cfg.Cgroup.Memory > 0 || cfg.Cgroup.Pids > 0 || cfg.Cgroup.CPU > 0) && !cfg.Cgroup.Enable {
		errs = append(errs, fmt.Errorf("cgroup: limits require cgroup.enable"))
	}
	if cfg.RLimit.CPUHard > 0 && cfg.RLimit.CPUHard < cfg.RLimit.CPU {
		errs = append(errs, fmt.Errorf("rlimit.cpu_hard: %d is below rlimit.cpu %d", cfg.RLimit.CPUHard, cfg.RLimit.CPU))
	}
	return errs
}

// CloneRevision returns the clone_args revision of a validated profile
func (c *Config) CloneRevision() clone3.Revision {
	r, _ := clone3.ParseRevision(c.Revision)
	return r
}

// CloneFlags returns the namespace flags of a validated profile
func (c *Config) CloneFlags() clone3.Flags {
	f, _ := clone3.ParseFlags(c.Flags)
	return f & clone3.Namespaces
}

// RLimits converts the profile limits
func (c *Config) RLimits() rlimit.RLimits {
	return rlimit.RLimits{
		CPU:          c.RLimit.CPU,
		CPUHard:      c.RLimit.CPUHard,
		Data:         uint64(c.RLimit.Data),
		FileSize:     uint64(c.RLimit.FileSize),
		Stack:        uint64(c.RLimit.Stack),
		AddressSpace: uint64(c.RLimit.AddressSpace),
		OpenFile:     c.RLimit.OpenFile,
		DisableCore:  c.RLimit.DisableCore,
	}
}

// SeccompBuilder returns nil when the profile does not need a filter
func (c *Config) SeccompBuilder() *libseccomp.Builder {
	def, _ := seccomp.ParseAction(c.Seccomp.Default)
	if def == seccomp.ActionAllow && len(c.Seccomp.Trace) == 0 && len(c.Seccomp.Deny) == 0 {
		return nil
	}
	return &libseccomp.Builder{
		Allow:   c.Seccomp.Allow,
		Trace:   c.Seccomp.Trace,
		Deny:    c.Seccomp.Deny,
		Default: def,
	}
}
