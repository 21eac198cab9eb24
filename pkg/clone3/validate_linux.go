package clone3

import (
	"fmt"

	"go.uber.org/multierr"
)

// maxSetTID is MAX_PID_NS_LEVEL, the deepest pid namespace nesting
const maxSetTID = 32

// ConflictKind classifies a configuration error
type ConflictKind int

// Kinds of configuration errors
const (
	KindExclusive       ConflictKind = iota + 1 // two flags must not be set together
	KindRequires                                // a flag is set without the flag it requires
	KindMissingField                            // a flag is set without the field it governs
	KindUnexpectedField                         // a field is set without the flag governing it
	KindUnsupported                             // the target revision does not know the flag / field
	KindInvalidField                            // a field holds a value the kernel rejects
)

var kindToString = []string{
	"unknown",
	"exclusive",
	"requires",
	"missing_field",
	"unexpected_field",
	"unsupported",
	"invalid_field",
}

func (k ConflictKind) String() string {
	if k >= KindExclusive && k <= KindInvalidField {
		return kindToString[k]
	}
	return "unknown"
}

// ConfigError describes one inconsistency found before the system call
type ConfigError struct {
	Kind  ConflictKind
	Flag  Flags  // the flag the rule is about
	Other Flags  // the conflicting or required flags
	Field string // the clone_args field involved, if any
	Info  string
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case KindExclusive:
		return fmt.Sprintf("clone3: %v and any of %v are set", e.Flag, e.Other)
	case KindRequires:
		return fmt.Sprintf("clone3: %v is set without %v", e.Flag, e.Other)
	case KindMissingField:
		return fmt.Sprintf("clone3: %v is set without %s", e.Flag, e.Field)
	case KindUnexpectedField:
		return fmt.Sprintf("clone3: %s is set without any of %v", e.Field, e.Flag)
	case KindUnsupported:
		if e.Field != "" {
			return fmt.Sprintf("clone3: %s is not supported by clone_args %s", e.Field, e.Info)
		}
		return fmt.Sprintf("clone3: %v is not supported by clone_args %s", e.Flag, e.Info)
	default:
		return fmt.Sprintf("clone3: invalid %s: %s", e.Field, e.Info)
	}
}

var exclusiveFlags = []struct {
	flag, others Flags
}{
	{ChildClearTID, ChildSetTID},
	{ClearSighand, Sighand},
	{IntoCgroup, NewCgroup},
	{NewIPC, SysVSem},
	{FS, NewNS},
	{Thread, PidFD},
	{NewPID, Parent | Thread},
	{NewUser, FS | Parent | Thread},
}

// SIGHAND without VM and THREAD without SIGHAND are rejected instead of
// being set implicitly
var requiredFlags = []struct {
	flag, requires Flags
}{
	{Sighand, VM},
	{Thread, Sighand},
}

// Validate checks the flags against each other and against the fields that
// are populated. All violations are reported, each as a *ConfigError.
func (c *Clone3) Validate() error {
	var errs []error

	if !c.revision.Valid() {
		return &ConfigError{Kind: KindUnsupported, Field: "revision", Info: c.revision.String()}
	}
	if unknown := c.flags &^ c.revision.Flags(); unknown != 0 {
		errs = append(errs, &ConfigError{Kind: KindUnsupported, Flag: unknown, Info: c.revision.String()})
	}

	for _, r := range exclusiveFlags {
		if c.flags.Contains(r.flag) && c.flags.Intersects(r.others) {
			errs = append(errs, &ConfigError{Kind: KindExclusive, Flag: r.flag, Other: r.others})
		}
	}
	for _, r := range requiredFlags {
		if c.flags.Contains(r.flag) && !c.flags.Contains(r.requires) {
			errs = append(errs, &ConfigError{Kind: KindRequires, Flag: r.flag, Other: r.requires})
		}
	}

	// field is populated if and only if its flag is set
	for _, f := range []struct {
		name    string
		present bool
		flags   Flags
	}{
		{"pidfd", c.pidFD != nil, PidFD},
		{"child_tid", c.childTID != nil, ChildClearTID | ChildSetTID},
		{"parent_tid", c.parentTID != nil, ParentSetTID},
		{"tls", c.hasTLS, SetTLS},
		{"cgroup", c.cgroup != nil, IntoCgroup},
	} {
		set := c.flags.Intersects(f.flags)
		switch {
		case set && !f.present:
			errs = append(errs, &ConfigError{Kind: KindMissingField, Flag: c.flags & f.flags, Field: f.name})
		case !set && f.present:
			errs = append(errs, &ConfigError{Kind: KindUnexpectedField, Flag: f.flags, Field: f.name})
		}
	}
	if c.flags.Contains(VM) && len(c.stack) == 0 {
		errs = append(errs, &ConfigError{Kind: KindMissingField, Flag: VM, Field: "stack"})
	}

	if len(c.setTID) > 0 {
		if !c.revision.HasSetTID() {
			errs = append(errs, &ConfigError{Kind: KindUnsupported, Field: "set_tid", Info: c.revision.String()})
		}
		if len(c.setTID) > maxSetTID {
			errs = append(errs, &ConfigError{Kind: KindInvalidField, Field: "set_tid",
				Info: fmt.Sprintf("%d entries, at most %d", len(c.setTID), maxSetTID)})
		}
	}
	if c.cgroup != nil && c.cgroup.Fd() == ^uintptr(0) {
		errs = append(errs, &ConfigError{Kind: KindInvalidField, Field: "cgroup", Info: "invalid file descriptor"})
	}
	return multierr.Combine(errs...)
}
