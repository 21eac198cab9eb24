// Package cgroup provides builder to create cgroup v2 directories under the
// unified hierarchy (i.e., /sys/fs/cgroup). A cgroup can be opened as a
// directory descriptor to create a process directly inside it with
// CLONE_INTO_CGROUP.
//
// Available cgroup controller:
//
//	cpu
//	cpuset
//	memory
//	pids
package cgroup
