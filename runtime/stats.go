package runtime

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type PoolStats struct {
	Kind      string `yaml:"kind"`
	Blocks    int    `yaml:"blocks"`
	Free      int    `yaml:"free"`
	Allocated int64  `yaml:"allocated,omitempty"`
	Released  int64  `yaml:"released,omitempty"`
}

type StackStats struct {
	Segments    int `yaml:"segments"`
	Allocated   int `yaml:"allocated"`
	ReserveSize int `yaml:"reserve-size"`
}

// Stats is a snapshot of the program's memory for reports.
type Stats struct {
	Program     string      `yaml:"program"`
	Diagnostics bool        `yaml:"diagnostics"`
	Stack       StackStats  `yaml:"stack"`
	Pools       []PoolStats `yaml:"pools"`
	HeapRecords int         `yaml:"heap-records"`
}

func (p *Program) Stats() Stats {
	p.checkLive()
	s := Stats{
		Program:     p.ID.String(),
		Diagnostics: p.Diagnostics(),
		Stack: StackStats{
			Segments:    p.Stack.Segments(),
			Allocated:   p.Stack.Allocated(),
			ReserveSize: p.Stack.ReserveSize(),
		},
		HeapRecords: p.Heap.Len(),
	}

	allocators := p.allocators()
	kinds := maps.Keys(allocators)
	slices.Sort(kinds)
	for _, kind := range kinds {
		a := allocators[kind]
		ps := PoolStats{Kind: kind.String(), Blocks: a.Blocks(), Free: a.Free()}
		if c, ok := a.(interface {
			Allocated() int64
			Released() int64
		}); ok {
			ps.Allocated = c.Allocated()
			ps.Released = c.Released()
		}
		s.Pools = append(s.Pools, ps)
	}
	return s
}
