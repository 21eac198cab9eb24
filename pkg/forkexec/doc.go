// Package forkexec starts a subprocess through clone3 with namespaces,
// cgroup placement, seccomp filter and rlimits applied before execve.
//
// clone3 requires kernel >= 5.3, CLONE_INTO_CGROUP requires kernel >= 5.7
// seccomp, unshare pid / user namespaces requires kernel >= 3.8
package forkexec
