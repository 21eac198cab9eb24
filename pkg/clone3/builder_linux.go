package clone3

import (
	"syscall"
	"unsafe"
)

// FileDescriptor is anything that exposes a raw file descriptor, e.g. *os.File
type FileDescriptor interface {
	Fd() uintptr
}

// Clone3 builds the arguments for a single clone3 call.
//
// Builder methods that take a slot or a buffer also set the flag governing
// it. Slots and buffers are borrowed: the kernel (or the new child) writes
// into them, so the caller must keep them alive and must not touch them
// until the call has returned, and for the stack until the child no longer
// runs on it. A Clone3 is consumed by Call and cannot be reused.
type Clone3 struct {
	flags      Flags
	pidFD      *int32
	childTID   *int32
	parentTID  *int32
	exitSignal uint64
	stack      []byte
	tls        uint64
	hasTLS     bool
	setTID     []int32
	cgroup     FileDescriptor

	revision Revision
	trap     Trap
	consumed bool
}

// New creates a builder with no flag, no exit signal targeting the latest
// clone_args revision
func New() *Clone3 {
	return &Clone3{
		revision: Latest,
		trap:     RawClone3,
	}
}

// Flags returns the flags set so far
func (c *Clone3) Flags() Flags {
	return c.flags
}

// AddFlags sets raw flags without any slot. Flags that require a slot
// still need it to be provided to pass validation.
func (c *Clone3) AddFlags(f Flags) *Clone3 {
	c.flags |= f
	return c
}

// Revision sets the clone_args revision of the target kernel
func (c *Clone3) Revision(r Revision) *Clone3 {
	c.revision = r
	return c
}

// WithTrap replaces the primitive that performs the system call
func (c *Clone3) WithTrap(t Trap) *Clone3 {
	c.trap = t
	return c
}

// WithChildClearTID sets CLONE_CHILD_CLEARTID, the child tid is cleared
// in tid when the child exits
func (c *Clone3) WithChildClearTID(tid *int32) *Clone3 {
	c.flags |= ChildClearTID
	c.childTID = tid
	return c
}

// WithChildSetTID sets CLONE_CHILD_SETTID, the child tid is stored in tid
// in the child's memory
func (c *Clone3) WithChildSetTID(tid *int32) *Clone3 {
	c.flags |= ChildSetTID
	c.childTID = tid
	return c
}

// WithClearSighand sets CLONE_CLEAR_SIGHAND
func (c *Clone3) WithClearSighand() *Clone3 {
	c.flags |= ClearSighand
	return c
}

// WithFiles sets CLONE_FILES
func (c *Clone3) WithFiles() *Clone3 {
	c.flags |= Files
	return c
}

// WithFS sets CLONE_FS
func (c *Clone3) WithFS() *Clone3 {
	c.flags |= FS
	return c
}

// WithIntoCgroup sets CLONE_INTO_CGROUP, the child is placed in the cgroup
// referred by the directory descriptor cg
func (c *Clone3) WithIntoCgroup(cg FileDescriptor) *Clone3 {
	c.flags |= IntoCgroup
	c.cgroup = cg
	return c
}

// WithIO sets CLONE_IO
func (c *Clone3) WithIO() *Clone3 {
	c.flags |= IO
	return c
}

// WithNewCgroup sets CLONE_NEWCGROUP
func (c *Clone3) WithNewCgroup() *Clone3 {
	c.flags |= NewCgroup
	return c
}

// WithNewIPC sets CLONE_NEWIPC
func (c *Clone3) WithNewIPC() *Clone3 {
	c.flags |= NewIPC
	return c
}

// WithNewNet sets CLONE_NEWNET
func (c *Clone3) WithNewNet() *Clone3 {
	c.flags |= NewNet
	return c
}

// WithNewNS sets CLONE_NEWNS
func (c *Clone3) WithNewNS() *Clone3 {
	c.flags |= NewNS
	return c
}

// WithNewPID sets CLONE_NEWPID
func (c *Clone3) WithNewPID() *Clone3 {
	c.flags |= NewPID
	return c
}

// WithNewTime sets CLONE_NEWTIME
func (c *Clone3) WithNewTime() *Clone3 {
	c.flags |= NewTime
	return c
}

// WithNewUser sets CLONE_NEWUSER
func (c *Clone3) WithNewUser() *Clone3 {
	c.flags |= NewUser
	return c
}

// WithNewUTS sets CLONE_NEWUTS
func (c *Clone3) WithNewUTS() *Clone3 {
	c.flags |= NewUTS
	return c
}

// WithParent sets CLONE_PARENT
func (c *Clone3) WithParent() *Clone3 {
	c.flags |= Parent
	return c
}

// WithParentSetTID sets CLONE_PARENT_SETTID, the child tid is stored in tid
// in the parent's memory
func (c *Clone3) WithParentSetTID(tid *int32) *Clone3 {
	c.flags |= ParentSetTID
	c.parentTID = tid
	return c
}

// WithPidFD sets CLONE_PIDFD, a pidfd referring the child is stored in fd
func (c *Clone3) WithPidFD(fd *int32) *Clone3 {
	c.flags |= PidFD
	c.pidFD = fd
	return c
}

// WithPtrace sets CLONE_PTRACE
func (c *Clone3) WithPtrace() *Clone3 {
	c.flags |= Ptrace
	return c
}

// WithSetTLS sets CLONE_SETTLS with the new thread local storage descriptor
func (c *Clone3) WithSetTLS(tls uint64) *Clone3 {
	c.flags |= SetTLS
	c.tls = tls
	c.hasTLS = true
	return c
}

// WithSighand sets CLONE_SIGHAND
func (c *Clone3) WithSighand() *Clone3 {
	c.flags |= Sighand
	return c
}

// WithSysVSem sets CLONE_SYSVSEM
func (c *Clone3) WithSysVSem() *Clone3 {
	c.flags |= SysVSem
	return c
}

// WithThread sets CLONE_THREAD
func (c *Clone3) WithThread() *Clone3 {
	c.flags |= Thread
	return c
}

// WithUntraced sets CLONE_UNTRACED
func (c *Clone3) WithUntraced() *Clone3 {
	c.flags |= Untraced
	return c
}

// WithVFork sets CLONE_VFORK
func (c *Clone3) WithVFork() *Clone3 {
	c.flags |= VFork
	return c
}

// WithVM sets CLONE_VM and the stack the child runs on
func (c *Clone3) WithVM(stack []byte) *Clone3 {
	c.flags |= VM
	c.stack = stack
	return c
}

// ExitSignal sets the signal delivered to the parent when the child exits.
// Zero means no signal, the parent then needs __WCLONE to wait for it.
func (c *Clone3) ExitSignal(sig syscall.Signal) *Clone3 {
	c.exitSignal = uint64(sig)
	return c
}

// Stack sets the stack of the child without setting CLONE_VM
func (c *Clone3) Stack(stack []byte) *Clone3 {
	c.stack = stack
	return c
}

// SetTID sets the pids of the child in each pid namespace, starting from
// the innermost one (since Linux 5.5)
func (c *Clone3) SetTID(tids []int32) *Clone3 {
	c.setTID = tids
	return c
}

// Args marshals the builder into clone_args. Addresses of the borrowed
// slots and buffers are taken as is: the result is only valid as long as
// they stay alive and do not move, prefer Call.
func (c *Clone3) Args() Args {
	args := Args{
		Flags:      uint64(c.flags),
		PidFD:      int32Addr(c.pidFD),
		ChildTID:   int32Addr(c.childTID),
		ParentTID:  int32Addr(c.parentTID),
		ExitSignal: c.exitSignal,
	}
	if len(c.stack) > 0 {
		args.Stack = uint64(uintptr(unsafe.Pointer(&c.stack[0])))
		args.StackSize = uint64(len(c.stack))
	}
	if c.hasTLS {
		args.TLS = c.tls
	}
	if len(c.setTID) > 0 {
		args.SetTID = uint64(uintptr(unsafe.Pointer(&c.setTID[0])))
		args.SetTIDSize = uint64(len(c.setTID))
	}
	if c.cgroup != nil {
		args.Cgroup = uint64(c.cgroup.Fd())
	}
	return args
}

func int32Addr(p *int32) uint64 {
	if p == nil {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(p)))
}
