package cgroup

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Builder builds cgroup directories
// available: cpu, cpuset, memory, pids
type Builder struct {
	// Root is the cgroup2 mount point, /sys/fs/cgroup if empty
	Root string
	// Prefix is the path under Root holding the created cgroups
	Prefix string

	Controllers

	initOnce sync.Once
	initErr  error
}

// NewBuilder return a dumb builder without any controller
func NewBuilder(prefix string) *Builder {
	return &Builder{
		Prefix: prefix,
	}
}

// WithRoot sets the cgroup2 mount point
func (b *Builder) WithRoot(root string) *Builder {
	b.Root = root
	return b
}

// WithCPU includes cpu cgroup
func (b *Builder) WithCPU() *Builder {
	b.CPU = true
	return b
}

// WithCPUSet includes cpuset cgroup
func (b *Builder) WithCPUSet() *Builder {
	b.CPUSet = true
	return b
}

// WithMemory includes memory cgroup
func (b *Builder) WithMemory() *Builder {
	b.Memory = true
	return b
}

// WithPids includes pids cgroup
func (b *Builder) WithPids() *Builder {
	b.Pids = true
	return b
}

// FilterByEnv reads cgroup.controllers of the root and filter out non-exists ones
func (b *Builder) FilterByEnv() (*Builder, error) {
	ct, err := availableControllers(b.root())
	if err != nil {
		return b, err
	}
	b.Intersect(ct)
	return b, nil
}

// String prints the build properties
func (b *Builder) String() string {
	return fmt.Sprintf("cgroup builder(%s): [%s]", path.Join(b.root(), b.Prefix), strings.Join(b.Names(), ", "))
}

func (b *Builder) root() string {
	if b.Root == "" {
		return basePath
	}
	return b.Root
}

// Build creates a new cgroup with a unique name under the prefix
func (b *Builder) Build() (*Cgroup, error) {
	for i := 0; i < 3; i++ {
		cg, err := b.BuildName(uuid.NewString())
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return cg, err
	}
	return nil, fmt.Errorf("cgroup.builder: unable to create unique cgroup under %s", b.Prefix)
}

// BuildName creates a new cgroup with the given name under the prefix
func (b *Builder) BuildName(name string) (*Cgroup, error) {
	// make prefix if not exist
	if err := b.ensurePrefixOnce(); err != nil {
		return nil, err
	}

	p := path.Join(b.root(), b.Prefix, name)
	if err := os.Mkdir(p, dirPerm); err != nil {
		return nil, err
	}
	return &Cgroup{path: p}, nil
}

func (b *Builder) ensurePrefixOnce() error {
	b.initOnce.Do(func() {
		b.initErr = b.ensurePrefix()
	})
	return b.initErr
}

// ensurePrefix creates the prefix directories and enables the controllers
// for the children of each new level
func (b *Builder) ensurePrefix() error {
	controlMsg := b.subtreeControl()

	// start from base dir
	current := b.root()
	for _, e := range strings.Split(b.Prefix, "/") {
		if e == "" {
			continue
		}
		current = path.Join(current, e)
		err := os.Mkdir(current, dirPerm)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return err
		}
		if controlMsg == nil {
			continue
		}
		if err := writeFile(path.Join(current, cgroupSubtreeControl), controlMsg); err != nil {
			return fmt.Errorf("cgroup.builder: enable controllers %s: %w", current, err)
		}
	}
	return nil
}
