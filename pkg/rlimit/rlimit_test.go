//go:build linux

package rlimit

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareRLimit(t *testing.T) {
	tests := []struct {
		name   string
		rl     RLimits
		expect []int
	}{
		{
			name:   "Empty",
			rl:     RLimits{},
			expect: []int{},
		},
		{
			name:   "CPU only",
			rl:     RLimits{CPU: 1},
			expect: []int{syscall.RLIMIT_CPU},
		},
		{
			name:   "Data only",
			rl:     RLimits{Data: 1024},
			expect: []int{syscall.RLIMIT_DATA},
		},
		{
			name:   "All fields",
			rl:     RLimits{CPU: 1, CPUHard: 2, Data: 1024, FileSize: 2048, Stack: 4096, AddressSpace: 8192, OpenFile: 16, DisableCore: true},
			expect: []int{syscall.RLIMIT_CPU, syscall.RLIMIT_DATA, syscall.RLIMIT_FSIZE, syscall.RLIMIT_STACK, syscall.RLIMIT_AS, syscall.RLIMIT_NOFILE, syscall.RLIMIT_CORE},
		},
		{
			name:   "DisableCore only",
			rl:     RLimits{DisableCore: true},
			expect: []int{syscall.RLIMIT_CORE},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rls := tt.rl.PrepareRLimit()
			require.Len(t, rls, len(tt.expect))
			for i, r := range rls {
				assert.Equal(t, tt.expect[i], r.Res, "index %d", i)
			}
		})
	}
}

func TestRLimitString(t *testing.T) {
	tests := []struct {
		name string
		rl   RLimit
		want string
	}{
		{
			name: "CPU",
			rl:   RLimit{Res: syscall.RLIMIT_CPU, Rlim: syscall.Rlimit{Cur: 1, Max: 2}},
			want: "CPU[1 s:2 s]",
		},
		{
			name: "NOFILE",
			rl:   RLimit{Res: syscall.RLIMIT_NOFILE, Rlim: syscall.Rlimit{Cur: 10, Max: 20}},
			want: "OpenFile[10:20]",
		},
		{
			name: "DATA",
			rl:   RLimit{Res: syscall.RLIMIT_DATA, Rlim: syscall.Rlimit{Cur: 1024, Max: 2048}},
			want: "Data[1.0 KiB:2.0 KiB]",
		},
		{
			name: "FSIZE",
			rl:   RLimit{Res: syscall.RLIMIT_FSIZE, Rlim: syscall.Rlimit{Cur: 100, Max: 200}},
			want: "File[100 B:200 B]",
		},
		{
			name: "STACK",
			rl:   RLimit{Res: syscall.RLIMIT_STACK, Rlim: syscall.Rlimit{Cur: 4096, Max: 8192}},
			want: "Stack[4.0 KiB:8.0 KiB]",
		},
		{
			name: "AS",
			rl:   RLimit{Res: syscall.RLIMIT_AS, Rlim: syscall.Rlimit{Cur: 123, Max: 456}},
			want: "AddressSpace[123 B:456 B]",
		},
		{
			name: "CORE",
			rl:   RLimit{Res: syscall.RLIMIT_CORE, Rlim: syscall.Rlimit{Cur: 0, Max: 0}},
			want: "Core[0 B:0 B]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rl.String())
		})
	}
}

func TestRLimitsString(t *testing.T) {
	rl := RLimits{
		CPU:          1,
		CPUHard:      2,
		Data:         1024,
		FileSize:     2048,
		Stack:        4096,
		AddressSpace: 8192,
		OpenFile:     16,
		DisableCore:  true,
	}
	want := "RLimits[CPU[1 s:2 s],Data[1.0 KiB:1.0 KiB],File[2.0 KiB:2.0 KiB],Stack[4.0 KiB:4.0 KiB],AddressSpace[8.0 KiB:8.0 KiB],OpenFile[16:16],Core[0 B:0 B]]"
	assert.Equal(t, want, rl.String())
}

func TestRLimitsString_Empty(t *testing.T) {
	rl := RLimits{}
	want := "RLimits[]"
	assert.Equal(t, want, rl.String())
}

func TestPrepareRLimit_CPUHard(t *testing.T) {
	rls := (&RLimits{CPU: 3, CPUHard: 1}).PrepareRLimit()
	require.Len(t, rls, 1)
	assert.Equal(t, syscall.Rlimit{Cur: 3, Max: 3}, rls[0].Rlim)

	rls = (&RLimits{CPU: 3, CPUHard: 5, OpenFile: 64}).PrepareRLimit()
	require.Len(t, rls, 2)
	assert.Equal(t, syscall.Rlimit{Cur: 3, Max: 5}, rls[0].Rlim)
	assert.Equal(t, syscall.Rlimit{Cur: 64, Max: 64}, rls[1].Rlim)
}

func TestRLimitString_Large(t *testing.T) {
	rl := RLimit{Res: syscall.RLIMIT_AS, Rlim: syscall.Rlimit{Cur: 256 << 20, Max: 1 << 30}}
	assert.Equal(t, "AddressSpace[256 MiB:1.0 GiB]", rl.String())
}
