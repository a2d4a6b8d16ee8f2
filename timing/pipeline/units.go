package pipeline

import (
	"cmp"
	"slices"

	"github.com/sarchlab/mipsim/insts"
	"github.com/sarchlab/mipsim/timing/latency"
)

// ExecutionUnits is the replicated pool of ALUs, grouped by category.
type ExecutionUnits struct {
	table *latency.Table
	busy  map[insts.ALUType][]*Slot
}

// NewExecutionUnits creates a pool sized by table.
func NewExecutionUnits(table *latency.Table) *ExecutionUnits {
	return &ExecutionUnits{
		table: table,
		busy:  make(map[insts.ALUType][]*Slot),
	}
}

// Available reports whether a unit of category t is free.
func (u *ExecutionUnits) Available(t insts.ALUType) bool {
	return len(u.busy[t]) < u.table.Count(t)
}

// Issue places s on a free unit of its category for the configured latency.
func (u *ExecutionUnits) Issue(s *Slot) bool {
	if !u.Available(s.ALU) {
		return false
	}
	s.remaining = u.table.Config().ALU(s.ALU).Latency
	u.busy[s.ALU] = append(u.busy[s.ALU], s)
	return true
}

// Tick advances every busy unit by one cycle and calls done, oldest first,
// for each instruction whose latency has elapsed. The unit is freed unless
// done returns false, in which case done is called again next cycle.
func (u *ExecutionUnits) Tick(done func(s *Slot) bool) {
	var finished []*Slot
	for t, slots := range u.busy {
		kept := slots[:0]
		for _, s := range slots {
			if s.remaining > 0 {
				s.remaining--
			}
			if s.remaining == 0 {
				finished = append(finished, s)
				continue
			}
			kept = append(kept, s)
		}
		u.busy[t] = kept
	}

	slices.SortFunc(finished, func(a, b *Slot) int {
		return cmp.Compare(a.Owner, b.Owner)
	})
	for _, s := range finished {
		if !done(s) {
			u.busy[s.ALU] = append(u.busy[s.ALU], s)
		}
	}
}

// Flush frees every unit whose instruction matches drop.
func (u *ExecutionUnits) Flush(drop func(s *Slot) bool) {
	for t, slots := range u.busy {
		u.busy[t] = slices.DeleteFunc(slots, drop)
	}
}

// Busy returns the number of occupied units.
func (u *ExecutionUnits) Busy() int {
	n := 0
	for _, slots := range u.busy {
		n += len(slots)
	}
	return n
}
