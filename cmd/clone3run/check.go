package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/criyle/go-clone3/cmd/clone3run/config"
	"github.com/criyle/go-clone3/pkg/clone3"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

const defaultCheckStack = 64 << 10

type checkOptions struct {
	flags    flagList
	revision string
	fill     bool
	stack    config.ByteSize
	setTID   []int32
	cgroupFD int
	tls      uint64
}

// fdNumber is a descriptor number that is never used for a system call
type fdNumber int

func (f fdNumber) Fd() uintptr {
	return uintptr(f)
}

func newCheckCmd() *cobra.Command {
	o := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate clone3 arguments without calling clone3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.OutOrStdout(), o)
		},
	}
	f := cmd.Flags()
	f.VarP(&o.flags, "flag", "f", "clone flag, e.g. CLONE_PIDFD or vm (repeatable)")
	f.StringVar(&o.revision, "revision", "latest", "clone_args revision (ver0, ver1, ver2, latest)")
	f.BoolVar(&o.fill, "fill", true, "provide the fields required by the flags")
	f.Var(&o.stack, "stack", "child stack size")
	f.Int32SliceVar(&o.setTID, "set-tid", nil, "pids of the child per pid namespace")
	f.IntVar(&o.cgroupFD, "cgroup-fd", 3, "cgroup descriptor number used by --fill")
	f.Uint64Var(&o.tls, "tls", 0, "tls value")
	return cmd
}

func (o *checkOptions) build() (*clone3.Clone3, error) {
	flags, err := clone3.ParseFlags(o.flags)
	if err != nil {
		return nil, err
	}
	rev, ok := clone3.ParseRevision(o.revision)
	if !ok {
		return nil, fmt.Errorf("unknown clone_args revision %q", o.revision)
	}

	c := clone3.New().Revision(rev).AddFlags(flags)
	if o.stack > 0 {
		c.Stack(make([]byte, o.stack))
	}
	if len(o.setTID) > 0 {
		c.SetTID(o.setTID)
	}
	if o.tls != 0 {
		c.WithSetTLS(o.tls)
	}
	if !o.fill {
		return c, nil
	}

	if flags.Contains(clone3.PidFD) {
		c.WithPidFD(new(int32))
	}
	if flags.Contains(clone3.ChildSetTID) {
		c.WithChildSetTID(new(int32))
	}
	if flags.Contains(clone3.ChildClearTID) {
		c.WithChildClearTID(new(int32))
	}
	if flags.Contains(clone3.ParentSetTID) {
		c.WithParentSetTID(new(int32))
	}
	if flags.Contains(clone3.SetTLS) && o.tls == 0 {
		c.WithSetTLS(1)
	}
	if flags.Contains(clone3.IntoCgroup) {
		c.WithIntoCgroup(fdNumber(o.cgroupFD))
	}
	if flags.Contains(clone3.VM) && o.stack == 0 {
		c.WithVM(make([]byte, defaultCheckStack))
	}
	return c, nil
}

func runCheck(w io.Writer, o *checkOptions) error {
	c, err := o.build()
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			var ce *clone3.ConfigError
			if errors.As(e, &ce) {
				fmt.Fprintf(w, "%s\t%v\n", ce.Kind, ce)
			} else {
				fmt.Fprintln(w, e)
			}
		}
		return &exitError{code: 1}
	}

	rev, _ := clone3.ParseRevision(o.revision)
	args := c.Args()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "revision\t%v\n", rev)
	fmt.Fprintf(tw, "size\t%d\n", rev.Size())
	fmt.Fprintf(tw, "flags\t%#x\t%v\n", args.Flags, clone3.Flags(args.Flags))
	fmt.Fprintf(tw, "pidfd\t%s\n", slot(args.PidFD))
	fmt.Fprintf(tw, "child_tid\t%s\n", slot(args.ChildTID))
	fmt.Fprintf(tw, "parent_tid\t%s\n", slot(args.ParentTID))
	fmt.Fprintf(tw, "exit_signal\t%d\n", args.ExitSignal)
	fmt.Fprintf(tw, "stack\t%s\t%d\n", slot(args.Stack), args.StackSize)
	fmt.Fprintf(tw, "tls\t%#x\n", args.TLS)
	fmt.Fprintf(tw, "set_tid\t%s\t%d\n", slot(args.SetTID), args.SetTIDSize)
	if rev.HasCgroup() {
		fmt.Fprintf(tw, "cgroup\t%d\n", args.Cgroup)
	}
	return tw.Flush()
}

// slot hides addresses which differ between runs
func slot(addr uint64) string {
	if addr == 0 {
		return "-"
	}
	return "set"
}
