// Package arch binds instruction definitions to per-architecture execution
// strategies.
//
// Every instruction is described once, as a set of phase functions over a
// Frame. The Frame mediates all register access through the hazard protocol
// of emu.Register, so the same description runs atomically under the
// single-cycle strategy, one phase per cycle under the multi-cycle strategy,
// and overlapped with other executions under the pipelined strategy.
package arch

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
)

// Architecture selects an execution strategy.
type Architecture uint8

// Architectures.
const (
	SingleCycle Architecture = iota
	MultiCycle
	Pipelined
)

// Architectures lists every architecture.
var Architectures = []Architecture{SingleCycle, MultiCycle, Pipelined}

func (a Architecture) String() string {
	switch a {
	case SingleCycle:
		return "single-cycle"
	case MultiCycle:
		return "multi-cycle"
	case Pipelined:
		return "pipelined"
	}
	return fmt.Sprintf("architecture(%d)", uint8(a))
}

// ParseArchitecture maps a name to an Architecture.
func ParseArchitecture(s string) (Architecture, error) {
	switch strings.ToLower(s) {
	case "single-cycle", "singlecycle", "single":
		return SingleCycle, nil
	case "multi-cycle", "multicycle", "multi":
		return MultiCycle, nil
	case "pipelined", "pipeline", "multi-alu":
		return Pipelined, nil
	}
	return 0, errors.Errorf("unknown architecture %q", s)
}

// PipelineControl lets a pipelined execution steer the surrounding
// pipeline when it resolves a branch.
type PipelineControl interface {
	// DiscardFetch drops the instruction fetched after a branch resolved
	// while decoding.
	DiscardFetch()
	// FlushAfter cancels every execution younger than owner.
	FlushAfter(owner emu.Owner)
	// FetchedAfter reports the address fetch moved to after owner. It
	// returns false when fetch did not predict owner, meaning it fell
	// through.
	FetchedAfter(owner emu.Owner) (uint32, bool)
}

// Env is the machine state an execution works on.
type Env struct {
	Regs     *emu.RegFile
	Data     emu.DataPort
	Syscalls emu.SyscallHandler
	Pipeline PipelineControl
}

// Outcome summarises what a finished execution did.
type Outcome struct {
	Branch bool
	Taken  bool
	Target uint32

	// Mispredicted is set when a branch resolved in the memory phase found
	// fetch on the wrong path.
	Mispredicted bool

	Exited   bool
	ExitCode int32
}

// Execution is one instruction in flight under one architecture. Phases are
// called in order: Decode, Execute, Memory, WriteBack. A phase returning a
// *StallError made no changes and must be retried. Any other error ends the
// execution, which must then be aborted.
//
// The single-cycle strategy does all of its work in Execute; its other
// phases do nothing.
type Execution interface {
	Inst() *insts.Instruction
	Addr() uint32
	Owner() emu.Owner
	Architecture() Architecture

	Decode() error
	Execute() error
	Memory() error
	WriteBack() error

	// Abort releases every register the execution holds and discards its
	// scratch state.
	Abort()
	Outcome() Outcome
}

// New creates the execution of inst at addr for architecture a. Owners must
// increase in issue order.
func New(a Architecture, inst *insts.Instruction, addr uint32, owner emu.Owner, env *Env) (Execution, error) {
	sem, ok := semanticsTable[inst.Def.Op]
	if !ok {
		return nil, &emu.Interrupt{
			Cause: emu.CauseReservedInstruction,
			Addr:  addr,
			Msg:   fmt.Sprintf("%s has no semantics", inst.Def.Mnemonic),
		}
	}

	f := newFrame(inst, addr, owner, env)
	f.direct = a == SingleCycle
	switch a {
	case SingleCycle:
		return &SingleCycleExecution{frame: f, sem: sem}, nil
	case MultiCycle:
		return &MultiCycleExecution{staged{frame: f, sem: sem}}, nil
	case Pipelined:
		return &PipelinedExecution{staged{frame: f, sem: sem}}, nil
	}
	return nil, errors.Errorf("unknown architecture %d", a)
}

// Supported reports whether op has semantics.
func Supported(op insts.Op) bool {
	_, ok := semanticsTable[op]
	return ok
}

// StallKind classifies a stall.
type StallKind uint8

// Stall kinds.
const (
	// StallRAW waits for a source value that is not yet forwarded.
	StallRAW StallKind = iota
	// StallWAW waits for another execution to release a destination.
	StallWAW
)

func (k StallKind) String() string {
	if k == StallWAW {
		return "WAW"
	}
	return "RAW"
}

// StallError asks the scheduler to retry the phase in a later cycle.
type StallError struct {
	Kind StallKind
	Reg  emu.RegID
}

func (e *StallError) Error() string {
	return fmt.Sprintf("%s stall on %s", e.Kind, e.Reg)
}
