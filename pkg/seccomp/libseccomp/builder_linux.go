// Package libseccomp generates seccomp filters from syscall name lists
package libseccomp

import (
	"fmt"
	"syscall"

	"github.com/criyle/go-clone3/pkg/seccomp"
	libseccomp "github.com/elastic/go-seccomp-bpf"
	"golang.org/x/net/bpf"
)

// Builder is used to build the filter
type Builder struct {
	Allow, Trace, Deny []string
	Default            seccomp.Action
}

var (
	actTrace = seccomp.ActionTrace.WithReturnCode(seccomp.MsgHandle)
	actDeny  = seccomp.ActionErrno.WithReturnCode(int16(syscall.EPERM))
)

// Build builds the filter
func (b *Builder) Build() (seccomp.Filter, error) {
	if b.Default.Action() < seccomp.ActionAllow || b.Default.Action() > seccomp.ActionKill {
		return nil, fmt.Errorf("seccomp: invalid default action %v", b.Default)
	}
	policy := libseccomp.Policy{
		DefaultAction: ToSeccompAction(b.Default),
	}
	for _, g := range []struct {
		names  []string
		action seccomp.Action
	}{
		{b.Allow, seccomp.ActionAllow},
		{b.Trace, actTrace},
		{b.Deny, actDeny},
	} {
		if len(g.names) == 0 {
			continue
		}
		if err := checkNames(g.names); err != nil {
			return nil, err
		}
		policy.Syscalls = append(policy.Syscalls, libseccomp.SyscallGroup{
			Names:  g.names,
			Action: ToSeccompAction(g.action),
		})
	}

	insts, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble policy: %w", err)
	}
	return ExportBPF(insts)
}

// ExportBPF convert assembled instructions to kernel readable BPF content
func ExportBPF(insts []bpf.Instruction) (seccomp.Filter, error) {
	raw, err := bpf.Assemble(insts)
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble bpf: %w", err)
	}
	f := make(seccomp.Filter, 0, len(raw))
	for _, r := range raw {
		f = append(f, syscall.SockFilter{
			Code: r.Op,
			Jt:   r.Jt,
			Jf:   r.Jf,
			K:    r.K,
		})
	}
	return f, nil
}

// checkNames makes sure every name is known on the native architecture
func checkNames(names []string) error {
	for _, n := range names {
		if _, err := ToSyscallNo(n); err != nil {
			return fmt.Errorf("seccomp: %w", err)
		}
	}
	return nil
}
