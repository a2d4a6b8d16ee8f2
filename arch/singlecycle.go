package arch

import (
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
)

// SingleCycleExecution runs a whole instruction in Execute. Nothing reaches
// the register file unless every phase succeeds.
type SingleCycleExecution struct {
	frame   *Frame
	sem     semantics
	outcome Outcome
}

// Inst returns the instruction.
func (e *SingleCycleExecution) Inst() *insts.Instruction { return e.frame.Inst }

// Addr returns the instruction address.
func (e *SingleCycleExecution) Addr() uint32 { return e.frame.Addr }

// Owner returns the issue tag.
func (e *SingleCycleExecution) Owner() emu.Owner { return e.frame.owner }

// Architecture returns SingleCycle.
func (e *SingleCycleExecution) Architecture() Architecture { return SingleCycle }

// Decode does nothing.
func (e *SingleCycleExecution) Decode() error { return nil }

// Execute runs the instruction to completion. A taken branch sets PC;
// otherwise PC is left to the caller.
func (e *SingleCycleExecution) Execute() error {
	f := e.frame
	e.sem.decode(f)
	if f.fault != nil {
		return f.locate(f.fault)
	}
	if err := f.applyDecode(); err != nil {
		return err
	}

	if e.sem.execute != nil {
		if err := e.sem.execute(f); err != nil {
			return err
		}
	}
	if e.sem.link != nil {
		e.sem.link(f)
	}
	if err := f.resolveLate(); err != nil {
		return err
	}
	if e.sem.memory != nil {
		if err := e.sem.memory(f); err != nil {
			return err
		}
	}

	e.outcome = Outcome{Exited: f.exited, ExitCode: f.exitCode}
	if e.sem.branch != nil {
		e.outcome.Branch = true
		e.outcome.Taken, e.outcome.Target = e.sem.branch(f)
	}

	if err := f.commit(); err != nil {
		return err
	}
	if e.outcome.Taken {
		f.env.Regs.SetPC(e.outcome.Target)
	}
	return nil
}

// Memory does nothing.
func (e *SingleCycleExecution) Memory() error { return nil }

// WriteBack does nothing.
func (e *SingleCycleExecution) WriteBack() error { return nil }

// Abort discards the collected outputs.
func (e *SingleCycleExecution) Abort() { e.frame.outs = nil }

// Outcome reports the result of Execute.
func (e *SingleCycleExecution) Outcome() Outcome { return e.outcome }
