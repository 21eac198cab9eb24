package clone3

import (
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

// configErrors flattens the combined validation error
func configErrors(t *testing.T, err error) []*ConfigError {
	t.Helper()
	var ret []*ConfigError
	for _, e := range multierr.Errors(err) {
		var ce *ConfigError
		require.True(t, errors.As(e, &ce), "unexpected error %v", e)
		ret = append(ret, ce)
	}
	return ret
}

func hasConfigError(errs []*ConfigError, kind ConflictKind, flag, other Flags) bool {
	for _, e := range errs {
		if e.Kind == kind && e.Flag == flag && e.Other == other {
			return true
		}
	}
	return false
}

// trapCounter fails the test when the system call is reached
func trapCounter(calls *int) Trap {
	return func(*Args, uintptr) (uintptr, syscall.Errno) {
		*calls++
		return 1, 0
	}
}

// sufficient returns a builder that satisfies the field and implication
// rules for flags, so that only flag conflicts remain
func sufficient(flags Flags) *Clone3 {
	var tid, ptid, pidfd int32
	c := New().AddFlags(flags)
	if flags.Intersects(ChildClearTID | ChildSetTID) {
		c.childTID = &tid
	}
	if flags.Contains(ParentSetTID) {
		c.parentTID = &ptid
	}
	if flags.Contains(PidFD) {
		c.pidFD = &pidfd
	}
	if flags.Contains(Thread) {
		c.AddFlags(Sighand)
	}
	if c.flags.Contains(Sighand) {
		c.AddFlags(VM)
	}
	if c.flags.Contains(VM) {
		c.stack = make([]byte, 64)
	}
	if flags.Contains(IntoCgroup) {
		c.cgroup = os.Stdin
	}
	return c
}

func TestValidate_Exclusive(t *testing.T) {
	tests := []struct {
		name         string
		flag, others Flags
		set          Flags
	}{
		{"cleartid/settid", ChildClearTID, ChildSetTID, ChildClearTID | ChildSetTID},
		{"clear_sighand/sighand", ClearSighand, Sighand, ClearSighand | Sighand},
		{"into_cgroup/newcgroup", IntoCgroup, NewCgroup, IntoCgroup | NewCgroup},
		{"newipc/sysvsem", NewIPC, SysVSem, NewIPC | SysVSem},
		{"fs/newns", FS, NewNS, FS | NewNS},
		{"thread/pidfd", Thread, PidFD, Thread | PidFD},
		{"newpid/parent", NewPID, Parent | Thread, NewPID | Parent},
		{"newpid/thread", NewPID, Parent | Thread, NewPID | Thread},
		{"newuser/fs", NewUser, FS | Parent | Thread, NewUser | FS},
		{"newuser/parent", NewUser, FS | Parent | Thread, NewUser | Parent},
		{"newuser/thread", NewUser, FS | Parent | Thread, NewUser | Thread},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int
			c := sufficient(tc.set).WithTrap(trapCounter(&calls))
			_, err := c.Call()
			require.Error(t, err)
			assert.True(t, hasConfigError(configErrors(t, err), KindExclusive, tc.flag, tc.others), "%v", err)
			assert.Zero(t, calls)
		})
	}
}

func TestValidate_Requires(t *testing.T) {
	var calls int
	_, err := New().WithSighand().WithTrap(trapCounter(&calls)).Call()
	errs := configErrors(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, KindRequires, errs[0].Kind)
	assert.Equal(t, Sighand, errs[0].Flag)
	assert.Equal(t, VM, errs[0].Other)
	assert.Equal(t, "clone3: CLONE_SIGHAND is set without CLONE_VM", errs[0].Error())

	// THREAD requires SIGHAND which would also require VM
	_, err = New().WithThread().WithTrap(trapCounter(&calls)).Call()
	errs = configErrors(t, err)
	assert.True(t, hasConfigError(errs, KindRequires, Thread, Sighand))

	// satisfied chain passes
	stack := make([]byte, 64)
	assert.NoError(t, New().WithVM(stack).WithSighand().WithThread().Validate())
	assert.Zero(t, calls)
}

func TestValidate_FieldPresence(t *testing.T) {
	var slot int32
	tests := []struct {
		name  string
		c     *Clone3
		kind  ConflictKind
		field string
	}{
		{"pidfd flag only", New().AddFlags(PidFD), KindMissingField, "pidfd"},
		{"pidfd slot only", &Clone3{revision: Latest, pidFD: &slot}, KindUnexpectedField, "pidfd"},
		{"cleartid flag only", New().AddFlags(ChildClearTID), KindMissingField, "child_tid"},
		{"settid flag only", New().AddFlags(ChildSetTID), KindMissingField, "child_tid"},
		{"child tid slot only", &Clone3{revision: Latest, childTID: &slot}, KindUnexpectedField, "child_tid"},
		{"parent settid flag only", New().AddFlags(ParentSetTID), KindMissingField, "parent_tid"},
		{"parent tid slot only", &Clone3{revision: Latest, parentTID: &slot}, KindUnexpectedField, "parent_tid"},
		{"settls flag only", New().AddFlags(SetTLS), KindMissingField, "tls"},
		{"tls only", &Clone3{revision: Latest, hasTLS: true}, KindUnexpectedField, "tls"},
		{"into cgroup flag only", New().AddFlags(IntoCgroup), KindMissingField, "cgroup"},
		{"cgroup only", &Clone3{revision: Latest, cgroup: os.Stdin}, KindUnexpectedField, "cgroup"},
		{"vm without stack", New().AddFlags(VM), KindMissingField, "stack"},
		{"vm with empty stack", New().WithVM([]byte{}), KindMissingField, "stack"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := configErrors(t, tc.c.Validate())
			require.Len(t, errs, 1)
			assert.Equal(t, tc.kind, errs[0].Kind)
			assert.Equal(t, tc.field, errs[0].Field)
		})
	}
}

func TestValidate_StackWithoutVM(t *testing.T) {
	assert.NoError(t, New().Stack(make([]byte, 64)).Validate())
}

func TestValidate_Revision(t *testing.T) {
	errs := configErrors(t, New().Revision(RevisionVer0).WithClearSighand().Validate())
	require.Len(t, errs, 1)
	assert.Equal(t, KindUnsupported, errs[0].Kind)
	assert.Equal(t, ClearSighand, errs[0].Flag)

	errs = configErrors(t, New().Revision(RevisionVer1).WithIntoCgroup(os.Stdin).Validate())
	require.Len(t, errs, 1)
	assert.Equal(t, IntoCgroup, errs[0].Flag)

	errs = configErrors(t, New().Revision(RevisionVer0).SetTID([]int32{1}).Validate())
	require.Len(t, errs, 1)
	assert.Equal(t, "set_tid", errs[0].Field)

	assert.NoError(t, New().Revision(RevisionVer1).SetTID([]int32{1}).WithClearSighand().Validate())

	errs = configErrors(t, New().AddFlags(1<<40).Validate())
	require.Len(t, errs, 1)
	assert.Equal(t, KindUnsupported, errs[0].Kind)

	errs = configErrors(t, New().Revision(Revision(7)).Validate())
	require.Len(t, errs, 1)
	assert.Equal(t, "revision", errs[0].Field)
}

func TestValidate_InvalidFields(t *testing.T) {
	errs := configErrors(t, New().SetTID(make([]int32, maxSetTID+1)).Validate())
	require.Len(t, errs, 1)
	assert.Equal(t, KindInvalidField, errs[0].Kind)

	var closed *os.File
	errs = configErrors(t, New().WithIntoCgroup(closed).Validate())
	require.Len(t, errs, 1)
	assert.Equal(t, "cgroup", errs[0].Field)
}

func TestValidate_ReportsAll(t *testing.T) {
	errs := configErrors(t, New().AddFlags(NewUser|FS|PidFD|Thread).Validate())
	assert.True(t, hasConfigError(errs, KindExclusive, NewUser, FS|Parent|Thread))
	assert.True(t, hasConfigError(errs, KindExclusive, Thread, PidFD))
	assert.True(t, hasConfigError(errs, KindRequires, Thread, Sighand))
	assert.True(t, hasConfigError(errs, KindMissingField, PidFD, 0))
}

func TestConfigError_String(t *testing.T) {
	assert.Equal(t, "clone3: CLONE_NEWPID and any of CLONE_PARENT|CLONE_THREAD are set",
		(&ConfigError{Kind: KindExclusive, Flag: NewPID, Other: Parent | Thread}).Error())
	assert.Equal(t, "clone3: CLONE_PIDFD is set without pidfd",
		(&ConfigError{Kind: KindMissingField, Flag: PidFD, Field: "pidfd"}).Error())
	assert.Equal(t, "clone3: pidfd is set without any of CLONE_PIDFD",
		(&ConfigError{Kind: KindUnexpectedField, Flag: PidFD, Field: "pidfd"}).Error())
	assert.Equal(t, "requires", KindRequires.String())
	assert.Equal(t, "unknown", ConflictKind(0).String())
}
