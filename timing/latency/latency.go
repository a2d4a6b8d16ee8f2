// Package latency provides the execution resources of the timing models.
//
// A Table maps each instruction to the category of ALU that runs it and
// reports how many units of that category exist and how long they take, as
// configured by a TimingConfig.
package latency

import (
	"github.com/sarchlab/mipsim/insts"
)

// Table provides latency and replication lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a latency table with the default configuration.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a latency table with a custom configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// ALU returns the category of unit that executes inst.
func (t *Table) ALU(inst *insts.Instruction) insts.ALUType {
	if inst == nil || inst.Def == nil {
		return insts.ALUInteger
	}
	return inst.Def.ALU
}

// GetLatency returns the execute latency in cycles for inst.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}
	return t.config.ALU(t.ALU(inst)).Latency
}

// Count returns how many units of category a exist.
func (t *Table) Count(a insts.ALUType) int {
	return t.config.ALU(a).Count
}

// MemoryLatency returns the memory stage occupancy of inst. Instructions
// without a data access pass through in one cycle.
func (t *Table) MemoryLatency(inst *insts.Instruction, hit bool) uint64 {
	if !t.IsMemoryOp(inst) {
		return 1
	}
	if hit {
		return t.config.MemoryLatency
	}
	return t.config.MemoryLatency + t.config.MissPenalty
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	return t.IsLoadOp(inst) || t.IsStoreOp(inst)
}

// IsLoadOp returns true if the instruction is a load.
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	return inst != nil && inst.Def != nil && inst.Def.Access == insts.MemLoad
}

// IsStoreOp returns true if the instruction is a store.
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	return inst != nil && inst.Def != nil && inst.Def.Access == insts.MemStore
}

// IsBranchOp returns true if the instruction transfers control.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	return inst != nil && inst.Def != nil && inst.Def.IsBranch()
}

// Config returns the timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
