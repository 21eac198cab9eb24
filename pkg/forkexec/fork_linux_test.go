package forkexec

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"testing"

	"github.com/criyle/go-clone3/pkg/clone3"
	"github.com/criyle/go-clone3/pkg/rlimit"
	"github.com/criyle/go-clone3/pkg/seccomp"
	"github.com/criyle/go-clone3/pkg/seccomp/libseccomp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireClone3(t *testing.T) {
	t.Helper()
	if err := clone3.Probe(); err != nil {
		t.Skip(err)
	}
}

func copyEcho(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, f.Chmod(0777))

	echo, err := os.Open("/bin/echo")
	require.NoError(t, err)
	defer echo.Close()

	_, err = io.Copy(f, echo)
	require.NoError(t, err)
	return f
}

// the writable copy must not leak into children of parallel tests
func TestFork_ETXTBSY(t *testing.T) {
	requireClone3(t)
	f := copyEcho(t)
	defer f.Close()

	r := Runner{
		Args:     []string{f.Name()},
		ExecFile: f.Fd(),
	}
	_, err := r.Start()
	assert.ErrorIs(t, err, syscall.ETXTBSY)

	var childErr ChildError
	require.ErrorAs(t, err, &childErr)
	assert.Equal(t, LocExecve, childErr.Location)
}

func TestFork_OK(t *testing.T) {
	requireClone3(t)
	f := copyEcho(t)
	f.Close()

	r := Runner{
		Args: []string{f.Name()},
	}
	p, err := r.Start()
	require.NoError(t, err)
	assert.Equal(t, -1, p.PidFD)

	s, err := p.Wait()
	require.NoError(t, err)
	assert.True(t, s.Success(), s.String())
}

func TestFork_PidFD(t *testing.T) {
	requireClone3(t)
	t.Parallel()

	r := Runner{
		Args:  []string{"/bin/sh", "-c", "exit 3"},
		PidFD: true,
	}
	p, err := r.Start()
	require.NoError(t, err)
	require.GreaterOrEqual(t, p.PidFD, 0)
	defer p.Release()

	s, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, Status{Exited: true, ExitCode: 3}, s)
	assert.Equal(t, "exited(3)", s.String())
}

func TestFork_Signal(t *testing.T) {
	requireClone3(t)
	t.Parallel()

	r := Runner{
		Args:  []string{"/bin/sh", "-c", "while :; do :; done"},
		PidFD: true,
	}
	p, err := r.Start()
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Signal(syscall.SIGKILL))
	s, err := p.Wait()
	require.NoError(t, err)
	assert.False(t, s.Exited)
	assert.Equal(t, syscall.SIGKILL, s.Signal)
}

func TestFork_ChildError(t *testing.T) {
	requireClone3(t)
	t.Parallel()

	r := Runner{
		Args:    []string{"/bin/echo"},
		WorkDir: "/nonexistent/forkexec",
	}
	_, err := r.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.ENOENT)

	var childErr ChildError
	require.ErrorAs(t, err, &childErr)
	assert.Equal(t, LocChdir, childErr.Location)
	assert.Equal(t, "chdir: no such file or directory", childErr.Error())
}

func TestFork_RLimit(t *testing.T) {
	requireClone3(t)
	t.Parallel()

	rl := rlimit.RLimits{OpenFile: 16}
	r := Runner{
		Args:    []string{"/bin/sh", "-c", "test $(ulimit -n) -eq 16"},
		RLimits: rl.PrepareRLimit(),
		PidFD:   true,
	}
	p, err := r.Start()
	require.NoError(t, err)
	defer p.Release()

	s, err := p.Wait()
	require.NoError(t, err)
	assert.True(t, s.Success(), s.String())
}

func TestFork_Seccomp(t *testing.T) {
	requireClone3(t)
	t.Parallel()

	deny := []string{"mkdirat"}
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "386" {
		deny = append(deny, "mkdir")
	}
	filter, err := (&libseccomp.Builder{Deny: deny, Default: seccomp.ActionAllow}).Build()
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "denied")
	r := Runner{
		Args:    []string{"/bin/mkdir", dir},
		Seccomp: filter.SockFprog(),
		PidFD:   true,
	}
	p, err := r.Start()
	require.NoError(t, err)
	defer p.Release()

	s, err := p.Wait()
	require.NoError(t, err)
	assert.True(t, s.Exited)
	assert.NotZero(t, s.ExitCode)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestFork_SyncFunc(t *testing.T) {
	requireClone3(t)
	t.Parallel()

	errSync := errors.New("sync failed")
	var pid int
	r := Runner{
		Args: []string{"/bin/echo"},
		SyncFunc: func(p int) error {
			pid = p
			return errSync
		},
	}
	_, err := r.Start()
	assert.ErrorIs(t, err, errSync)
	assert.Greater(t, pid, 0)

	// child is reaped
	assert.ErrorIs(t, syscall.Kill(pid, 0), syscall.ESRCH)
}

func TestFork_Files(t *testing.T) {
	requireClone3(t)
	t.Parallel()

	rd, wr, err := os.Pipe()
	require.NoError(t, err)
	defer rd.Close()

	r := Runner{
		Args:  []string{"/bin/echo", "hello"},
		Files: []uintptr{os.Stdin.Fd(), wr.Fd(), os.Stderr.Fd()},
		PidFD: true,
	}
	p, err := r.Start()
	wr.Close()
	require.NoError(t, err)
	defer p.Release()

	out, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	s, err := p.Wait()
	require.NoError(t, err)
	assert.True(t, s.Success())
}

func TestFork_UserNamespace(t *testing.T) {
	requireClone3(t)
	t.Parallel()

	rd, wr, err := os.Pipe()
	require.NoError(t, err)
	defer rd.Close()

	r := Runner{
		Args:       []string{"/bin/cat", "/proc/self/uid_map"},
		Files:      []uintptr{os.Stdin.Fd(), wr.Fd(), os.Stderr.Fd()},
		CloneFlags: clone3.NewUser | clone3.NewUTS,
		HostName:   "clone3",
	}
	p, err := r.Start()
	wr.Close()
	if errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.ENOSPC) {
		t.Skip("user namespace is not available:", err)
	}
	require.NoError(t, err)

	out, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", strconv.Itoa(os.Geteuid()), "1"}, strings.Fields(string(out)))

	s, err := p.Wait()
	require.NoError(t, err)
	assert.True(t, s.Success())
}

func TestFork_ConfigError(t *testing.T) {
	dir, err := os.Open(t.TempDir())
	require.NoError(t, err)
	defer dir.Close()

	// clone_args ver1 has no cgroup field
	r := Runner{
		Args:     []string{"/bin/echo"},
		Cgroup:   dir,
		Revision: clone3.RevisionVer1,
	}
	_, err = r.Start()
	var cfgErr *clone3.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, clone3.KindUnsupported, cfgErr.Kind)
	assert.Equal(t, clone3.IntoCgroup, cfgErr.Flag)
}

func TestFork_NotCgroup(t *testing.T) {
	requireClone3(t)
	if rev, err := clone3.DetectRevision(); err != nil || !rev.HasCgroup() {
		t.Skip("CLONE_INTO_CGROUP is not supported")
	}
	dir, err := os.Open(t.TempDir())
	require.NoError(t, err)
	defer dir.Close()

	r := Runner{
		Args:   []string{"/bin/echo"},
		Cgroup: dir,
	}
	_, err = r.Start()
	var errno syscall.Errno
	assert.ErrorAs(t, err, &errno)
}

func TestFork_EmptyArgs(t *testing.T) {
	_, err := (&Runner{}).Start()
	assert.ErrorIs(t, err, errNoArgs)
}

func TestChildError_String(t *testing.T) {
	assert.Equal(t, "setrlimit(2): operation not permitted",
		ChildError{Err: syscall.EPERM, Location: LocSetRlimit, Index: 2}.Error())
	assert.Equal(t, "unknown", ErrorLocation(100).String())
	assert.Equal(t, "clone3", LocClone.String())
}
