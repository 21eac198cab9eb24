package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/criyle/go-clone3/cmd/clone3run/config"
	"github.com/criyle/go-clone3/pkg/cgroup"
	"github.com/criyle/go-clone3/pkg/forkexec"
	"github.com/criyle/go-clone3/pkg/memfd"
	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// cpu.max period in us
const cpuPeriod = 100000

type runOptions struct {
	profile  string
	flags    flagList
	revision string
	cgroup   bool
	memory   config.ByteSize
	pids     uint64
	deny     flagList
	workdir  string
	hostname string
	noPidFD  bool
	memfd    bool
}

func newRunCmd() *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [flags] -- prog [args...]",
		Short: "Run a program in new namespaces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, o, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.profile, "profile", "p", "", "TOML run profile")
	f.VarP(&o.flags, "flag", "f", "namespace flag, e.g. newpid (repeatable)")
	f.StringVar(&o.revision, "revision", "", "clone_args revision (ver0, ver1, ver2, latest)")
	f.BoolVar(&o.cgroup, "cgroup", false, "clone into a transient cgroup v2")
	f.Var(&o.memory, "memory", "cgroup memory limit, e.g. 256MiB")
	f.Uint64Var(&o.pids, "pids", 0, "cgroup pids limit")
	f.Var(&o.deny, "seccomp-deny", "syscall to fail with EPERM (repeatable)")
	f.StringVar(&o.workdir, "workdir", "", "working directory of the child")
	f.StringVar(&o.hostname, "hostname", "", "hostname inside a new uts namespace")
	f.BoolVar(&o.noPidFD, "no-pidfd", false, "wait by pid instead of a pidfd")
	f.BoolVar(&o.memfd, "memfd", false, "execute a sealed in-memory copy of the program")
	return cmd
}

// loadProfile loads the profile and overlays the command line options
func (o *runOptions) loadProfile() (*config.Config, error) {
	cfg := config.Default()
	if o.profile != "" {
		c, warnings, err := config.Load(o.profile)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			log.WithField("profile", o.profile).Warn(w)
		}
		cfg = c
	}

	cfg.Flags = append(cfg.Flags, o.flags...)
	if o.revision != "" {
		cfg.Revision = o.revision
	}
	if o.cgroup || o.memory > 0 || o.pids > 0 {
		cfg.Cgroup.Enable = true
	}
	if o.memory > 0 {
		cfg.Cgroup.Memory = o.memory
	}
	if o.pids > 0 {
		cfg.Cgroup.Pids = o.pids
	}
	cfg.Seccomp.Deny = append(cfg.Seccomp.Deny, o.deny...)
	if o.workdir != "" {
		cfg.WorkDir = o.workdir
	}
	if o.hostname != "" {
		cfg.HostName = o.hostname
	}
	if o.noPidFD {
		pidfd := false
		cfg.PidFD = &pidfd
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, multierr.Combine(errs...)
	}
	return cfg, nil
}

func runProgram(cmd *cobra.Command, o *runOptions, args []string) error {
	cfg, err := o.loadProfile()
	if err != nil {
		return err
	}

	r := &forkexec.Runner{
		Args:       args,
		Env:        cfg.Env,
		Files:      []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd()},
		WorkDir:    cfg.WorkDir,
		HostName:   cfg.HostName,
		DomainName: cfg.DomainName,
		CloneFlags: cfg.CloneFlags(),
		Revision:   cfg.CloneRevision(),
		PidFD:      cfg.PidFD == nil || *cfg.PidFD,
	}
	if o.memfd {
		f, err := memfd.OpenExecutable(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r.ExecFile = f.Fd()
	}
	rl := cfg.RLimits()
	r.RLimits = rl.PrepareRLimit()

	if b := cfg.SeccompBuilder(); b != nil {
		filter, err := b.Build()
		if err != nil {
			return fmt.Errorf("seccomp: %w", err)
		}
		r.Seccomp = filter.SockFprog()
	}

	var cg *cgroup.Cgroup
	if cfg.Cgroup.Enable {
		cg, err = setupCgroup(&cfg.Cgroup)
		if err != nil {
			return err
		}
		defer destroyCgroup(cg)

		fd, err := cg.OpenFD()
		if err != nil {
			return err
		}
		defer fd.Close()
		r.Cgroup = fd
	}

	p, err := r.Start()
	if err != nil {
		if fields, ok := childErrorFields(err); ok {
			log.WithFields(fields).Debug("child failed")
		}
		return err
	}
	entry := log.WithFields(log.Fields{"pid": p.Pid, "pidfd": p.PidFD, "flags": r.CloneFlags.String()})
	entry.Debug("started")

	stop := forwardSignals(&p)
	status, err := p.Wait()
	stop()
	if rerr := p.Release(); rerr != nil {
		entry.WithError(rerr).Warn("release pidfd")
	}
	if err != nil {
		return err
	}

	fields := log.Fields{"status": status.String()}
	if cg != nil {
		if t, err := cg.CPUUsage(); err == nil {
			fields["cpu"] = fmt.Sprintf("%dms", t/1e6)
		}
		if m, err := cg.MemoryMaxUsage(); err == nil {
			fields["memory"] = humanize.IBytes(m)
		}
	}
	entry.WithFields(fields).Info("finished")

	switch {
	case status.Success():
		return nil
	case status.Exited:
		return &exitError{code: status.ExitCode}
	default:
		return &exitError{code: 128 + int(status.Signal)}
	}
}

// childErrorFields describes where the child failed before execve
func childErrorFields(err error) (log.Fields, bool) {
	var ce forkexec.ChildError
	if !errors.As(err, &ce) {
		return nil, false
	}
	return log.Fields{"location": ce.Location.String(), "index": ce.Index, "errno": ce.Err.Error()}, true
}

func setupCgroup(c *config.CgroupConfig) (*cgroup.Cgroup, error) {
	if t := cgroup.DetectType(); t != cgroup.CgroupTypeV2 {
		return nil, fmt.Errorf("cgroup: clone into cgroup requires cgroup v2, found %v", t)
	}
	root, err := cgroup.MountPoint()
	if err != nil {
		return nil, err
	}

	b := cgroup.NewBuilder(c.Prefix).WithRoot(root)
	if c.Memory > 0 {
		b.WithMemory()
	}
	if c.Pids > 0 {
		b.WithPids()
	}
	if c.CPU > 0 {
		b.WithCPU()
	}
	want := b.Controllers
	if _, err := b.FilterByEnv(); err != nil {
		return nil, err
	}
	if !b.Contains(&want) {
		log.WithFields(log.Fields{"want": want.String(), "have": b.Controllers.String()}).Warn("cgroup controllers not delegated")
	}
	log.Debug(b.String())

	cg, err := b.Build()
	if err != nil {
		return nil, err
	}
	var errs error
	if b.Memory {
		errs = multierr.Append(errs, cg.SetMemoryLimit(uint64(c.Memory)))
	}
	if b.Pids {
		errs = multierr.Append(errs, cg.SetProcLimit(c.Pids))
	}
	if b.CPU {
		errs = multierr.Append(errs, cg.SetCPUBandwidth(c.CPU*cpuPeriod/100, cpuPeriod))
	}
	if errs != nil {
		destroyCgroup(cg)
		return nil, errs
	}
	return cg, nil
}

func destroyCgroup(cg *cgroup.Cgroup) {
	// descendants may outlive the child
	if procs, err := cg.Processes(); err == nil && len(procs) > 0 {
		if err := cg.Kill(); err != nil {
			log.WithError(err).WithField("cgroup", cg.Path()).Warn("kill cgroup")
		}
	}
	if err := cg.Destroy(); err != nil {
		log.WithError(err).WithField("cgroup", cg.Path()).Warn("destroy cgroup")
	}
}

// forwardSignals relays SIGINT and SIGTERM to the child until stop is called
func forwardSignals(p *forkexec.Process) (stop func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer close(done)
		for sig := range ch {
			if err := p.Signal(sig.(syscall.Signal)); err != nil {
				log.WithError(err).WithField("signal", sig.String()).Warn("forward signal")
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
		<-done
	}
}
