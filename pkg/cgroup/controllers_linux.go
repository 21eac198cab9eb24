package cgroup

import (
	"path"
	"strings"
)

// Controllers is the set of cgroup v2 controllers
type Controllers struct {
	CPU    bool
	CPUSet bool
	Memory bool
	Pids   bool
}

// Set enables or disables a controller by name
func (c *Controllers) Set(ct string, value bool) {
	switch ct {
	case CPU:
		c.CPU = value
	case CPUSet:
		c.CPUSet = value
	case Memory:
		c.Memory = value
	case Pids:
		c.Pids = value
	}
}

// Intersect keeps controllers that are also in o
func (c *Controllers) Intersect(o *Controllers) {
	c.CPU = c.CPU && o.CPU
	c.CPUSet = c.CPUSet && o.CPUSet
	c.Memory = c.Memory && o.Memory
	c.Pids = c.Pids && o.Pids
}

// Contains returns true if the current controller enabled all controllers in the other controller
func (c *Controllers) Contains(o *Controllers) bool {
	return (c.CPU || !o.CPU) && (c.CPUSet || !o.CPUSet) &&
		(c.Memory || !o.Memory) && (c.Pids || !o.Pids)
}

// Names lists enabled controllers
func (c *Controllers) Names() []string {
	names := make([]string, 0, 4)
	for _, v := range []struct {
		e bool
		n string
	}{
		{c.CPU, CPU},
		{c.CPUSet, CPUSet},
		{c.Memory, Memory},
		{c.Pids, Pids},
	} {
		if v.e {
			names = append(names, v.n)
		}
	}
	return names
}

func (c *Controllers) String() string {
	return "[" + strings.Join(c.Names(), ", ") + "]"
}

// subtreeControl is the content enabling the controllers for children
func (c *Controllers) subtreeControl() []byte {
	names := c.Names()
	if len(names) == 0 {
		return nil
	}
	return []byte("+" + strings.Join(names, " +"))
}

func parseControllers(content string) *Controllers {
	ct := new(Controllers)
	for _, n := range strings.Fields(content) {
		ct.Set(n, true)
	}
	return ct
}

// availableControllers reads cgroup.controllers of the cgroup directory p
func availableControllers(p string) (*Controllers, error) {
	b, err := readFile(path.Join(p, cgroupControllers))
	if err != nil {
		return nil, err
	}
	return parseControllers(string(b)), nil
}
