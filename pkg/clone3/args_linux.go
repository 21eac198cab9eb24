package clone3

// Args is struct clone_args as defined in linux/sched.h.
// The field order and width are fixed by the kernel ABI.
type Args struct {
	Flags      uint64 // Flags bit mask
	PidFD      uint64 // Where to store PID file descriptor (int *)
	ChildTID   uint64 // Where to store child TID, in child's memory (pid_t *)
	ParentTID  uint64 // Where to store child TID, in parent's memory (pid_t *)
	ExitSignal uint64 // Signal to deliver to parent on child termination
	Stack      uint64 // Pointer to lowest byte of stack
	StackSize  uint64 // Size of stack
	TLS        uint64 // Location of new TLS
	SetTID     uint64 // Pointer to a pid_t array (since Linux 5.5)
	SetTIDSize uint64 // Number of elements in set_tid (since Linux 5.5)
	Cgroup     uint64 // File descriptor for target cgroup of child (since Linux 5.7)
}
