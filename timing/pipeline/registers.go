// Package pipeline provides the multi-ALU pipelined timing model.
//
// Every cycle runs write-back, memory, execute, decode and fetch, in that
// order. Decode issues to a replicated pool of ALUs; instructions leave the
// pool in any order but enter the memory stage in program order, so stores,
// syscalls and interrupts are never speculative.
package pipeline

import (
	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
)

// IFIDRegister holds the fetched instruction waiting for decode.
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// Addr is the address the instruction was fetched from.
	Addr uint32

	// Owner is the issue tag given at fetch.
	Owner emu.Owner

	// Inst is the decoded instruction, nil when Err is set.
	Inst *insts.Instruction

	// Err is the error from decoding the fetched word.
	Err error

	// Predicted is set when fetch consulted the branch predictor for this
	// instruction; Prediction is what it answered.
	Predicted  bool
	Prediction Prediction
}

// Clear resets the IF/ID register to empty state.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// Slot is one instruction past fetch.
type Slot struct {
	Addr  uint32
	Owner emu.Owner
	Inst  *insts.Instruction
	Exec  arch.Execution

	// Fault is the error that will end this instruction at write-back.
	Fault error

	// ALU is the category of unit the instruction occupies in execute.
	ALU insts.ALUType

	Predicted  bool
	Prediction Prediction

	remaining uint64
	executed  bool
}

// ready reports whether the slot may enter the memory stage.
func (s *Slot) ready() bool {
	return s.Fault != nil || s.executed
}

// fetchedAfter returns the address fetch moved to after s.
func (s *Slot) fetchedAfter() uint32 {
	return s.Prediction.Next(s.Addr)
}

// blocksMemory reports whether younger instructions must stay out of the
// memory stage while s waits for write-back.
func (s *Slot) blocksMemory() bool {
	if s.Fault != nil {
		return true
	}
	return s.Exec != nil && s.Exec.Outcome().Exited
}

func (s *Slot) abort() {
	if s.Exec != nil {
		s.Exec.Abort()
	}
}
