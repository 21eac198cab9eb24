package cgroup

const (
	// systemd mounted cgroups
	basePath       = "/sys/fs/cgroup"
	procSelfCgroup = "/proc/self/cgroup"

	cgroupProcs          = "cgroup.procs"
	cgroupKill           = "cgroup.kill"
	cgroupSubtreeControl = "cgroup.subtree_control"
	cgroupControllers    = "cgroup.controllers"

	filePerm = 0644
	dirPerm  = 0755

	CPU    = "cpu"
	CPUSet = "cpuset"
	Memory = "memory"
	Pids   = "pids"
)

// CgroupType is the cgroup version mounted at /sys/fs/cgroup
type CgroupType int

// Cgroup types
const (
	CgroupTypeV1 CgroupType = iota + 1
	CgroupTypeV2
)

func (t CgroupType) String() string {
	switch t {
	case CgroupTypeV1:
		return "v1"
	case CgroupTypeV2:
		return "v2"
	default:
		return "invalid"
	}
}
