package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/criyle/go-clone3/pkg/cgroup"
	"github.com/criyle/go-clone3/pkg/clone3"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report clone3 and cgroup v2 support of the running kernel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.OutOrStdout())
		},
	}
}

func runProbe(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return err
	}
	fmt.Fprintf(tw, "kernel\t%s\n", unix.ByteSliceToString(uts.Release[:]))

	if rev, err := clone3.DetectRevision(); err != nil {
		fmt.Fprintf(tw, "revision\tunknown: %v\n", err)
	} else {
		fmt.Fprintf(tw, "revision\t%v\t%d bytes\n", rev, rev.Size())
	}

	if err := clone3.Probe(); err != nil {
		fmt.Fprintf(tw, "clone3\tunavailable: %v\n", err)
	} else {
		fmt.Fprintf(tw, "clone3\tavailable\n")
	}

	fmt.Fprintf(tw, "cgroup\t%v\n", cgroup.DetectType())
	if mp, err := cgroup.MountPoint(); err != nil {
		fmt.Fprintf(tw, "cgroup2 mount\t%v\n", err)
	} else {
		fmt.Fprintf(tw, "cgroup2 mount\t%s\n", mp)
	}
	if cur, err := cgroup.Current(); err == nil {
		fmt.Fprintf(tw, "current cgroup\t%s\n", cur)
	}
	return tw.Flush()
}
