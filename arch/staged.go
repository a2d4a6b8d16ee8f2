package arch

import (
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
)

// staged carries the phase-by-phase state shared by the multi-cycle and
// pipelined strategies.
type staged struct {
	frame *Frame
	sem   semantics

	decoded  bool
	pcLocked bool
	resolved bool
	outcome  Outcome
}

func (s *staged) Inst() *insts.Instruction { return s.frame.Inst }
func (s *staged) Addr() uint32             { return s.frame.Addr }
func (s *staged) Owner() emu.Owner         { return s.frame.owner }
func (s *staged) Outcome() Outcome         { return s.outcome }

func (s *staged) pc() *emu.Register { return s.frame.env.Regs.Reg(emu.PC) }

// decode declares the instruction's registers once, then captures sources
// and takes locks. Branches also claim PC.
func (s *staged) decode() error {
	f := s.frame
	if !s.decoded {
		s.sem.decode(f)
		s.decoded = true
		s.outcome.Branch = s.sem.branch != nil
	}
	if f.fault != nil {
		return f.locate(f.fault)
	}

	if s.outcome.Branch {
		if pc := s.pc(); pc.Locked() && pc.Owner() != f.owner {
			return &StallError{Kind: StallWAW, Reg: emu.PC}
		}
	}
	if err := f.applyDecode(); err != nil {
		return err
	}
	if s.outcome.Branch {
		if err := s.pc().Lock(f.owner); err != nil {
			f.release()
			return err
		}
		s.pcLocked = true
	}
	return nil
}

func (s *staged) execute() error {
	f := s.frame
	if f.fault != nil {
		return f.locate(f.fault)
	}
	if s.sem.execute != nil {
		if err := s.sem.execute(f); err != nil {
			return f.locate(err)
		}
	}
	if f.fault != nil {
		return f.fault
	}
	return nil
}

func (s *staged) memory() error {
	f := s.frame
	if err := f.resolveLate(); err != nil {
		return err
	}
	if s.sem.memory != nil {
		if err := s.sem.memory(f); err != nil {
			return f.locate(err)
		}
	}
	f.reforward()
	if f.fault != nil {
		return f.fault
	}
	s.outcome.Exited = f.exited
	s.outcome.ExitCode = f.exitCode
	return nil
}

// link writes a branch's return address, if it has one.
func (s *staged) link() error {
	if s.sem.link == nil {
		return nil
	}
	s.sem.link(s.frame)
	if s.frame.fault != nil {
		return s.frame.fault
	}
	return nil
}

// resolve evaluates the branch condition once.
func (s *staged) resolve() {
	if s.resolved {
		return
	}
	s.outcome.Taken, s.outcome.Target = s.sem.branch(s.frame)
	s.resolved = true
}

func (s *staged) writeBack() error {
	return s.frame.commit()
}

// releasePC gives PC back unchanged.
func (s *staged) releasePC() error {
	if !s.pcLocked {
		return nil
	}
	s.pcLocked = false
	return s.pc().Unlock(s.frame.owner)
}

// commitPC writes the branch target and gives PC back.
func (s *staged) commitPC(target uint32) error {
	if !s.pcLocked {
		return nil
	}
	s.pcLocked = false
	return s.pc().CommitAndUnlock(s.frame.owner, target)
}

func (s *staged) Abort() {
	s.frame.release()
	s.pcLocked = false
}

// MultiCycleExecution runs one phase per call with no other instruction in
// flight. A branch links in Execute. A taken branch forwards its target in
// Execute and commits it in WriteBack.
type MultiCycleExecution struct {
	staged
}

// Architecture returns MultiCycle.
func (e *MultiCycleExecution) Architecture() Architecture { return MultiCycle }

// Decode reads sources and locks destinations.
func (e *MultiCycleExecution) Decode() error { return e.decode() }

// Execute computes results and resolves branches.
func (e *MultiCycleExecution) Execute() error {
	if err := e.execute(); err != nil {
		return err
	}
	if !e.outcome.Branch {
		return nil
	}
	if err := e.link(); err != nil {
		return err
	}

	e.resolve()
	if !e.outcome.Taken {
		return e.releasePC()
	}
	return e.pc().Forward(e.frame.owner, e.outcome.Target)
}

// Memory performs data access and syscalls.
func (e *MultiCycleExecution) Memory() error { return e.memory() }

// WriteBack commits results and a taken branch's target.
func (e *MultiCycleExecution) WriteBack() error {
	if err := e.writeBack(); err != nil {
		return err
	}
	if e.outcome.Taken {
		return e.commitPC(e.outcome.Target)
	}
	return nil
}

// PipelinedExecution overlaps with other executions. Branches marked
// SolveOnDecode redirect fetch in Decode and link in Execute. Every other
// branch does nothing in Execute; it links and is decided in Memory, where
// it flushes younger executions if fetch went the wrong way.
type PipelinedExecution struct {
	staged
}

// Architecture returns Pipelined.
func (e *PipelinedExecution) Architecture() Architecture { return Pipelined }

func (e *PipelinedExecution) solveOnDecode() bool {
	c := e.frame.Inst.Def.Control
	return c != nil && c.SolveOnDecode
}

// Decode reads sources and locks destinations. A branch solved on decode
// commits PC and drops the fetch that followed it.
func (e *PipelinedExecution) Decode() error {
	if err := e.decode(); err != nil {
		return err
	}
	if !e.outcome.Branch || !e.solveOnDecode() {
		return nil
	}

	e.resolve()
	if !e.outcome.Taken {
		return e.releasePC()
	}
	if err := e.commitPC(e.outcome.Target); err != nil {
		return err
	}
	if ctl := e.frame.env.Pipeline; ctl != nil {
		ctl.DiscardFetch()
	}
	return nil
}

// Execute computes results.
func (e *PipelinedExecution) Execute() error {
	if err := e.execute(); err != nil {
		return err
	}
	if e.outcome.Branch && e.solveOnDecode() {
		return e.link()
	}
	return nil
}

// Memory performs data access and decides late branches. A late branch
// whose successor address matches where fetch went leaves PC to fetch;
// otherwise it commits the right address and flushes.
func (e *PipelinedExecution) Memory() error {
	if err := e.memory(); err != nil {
		return err
	}
	if !e.outcome.Branch || e.resolved {
		return nil
	}
	if err := e.link(); err != nil {
		return err
	}

	e.resolve()
	next := e.frame.Addr + 4
	if e.outcome.Taken {
		next = e.outcome.Target
	}
	fetched := e.frame.Addr + 4
	ctl := e.frame.env.Pipeline
	if ctl != nil {
		if addr, ok := ctl.FetchedAfter(e.frame.owner); ok {
			fetched = addr
		}
	}
	if next == fetched {
		return e.releasePC()
	}

	e.outcome.Mispredicted = true
	if err := e.commitPC(next); err != nil {
		return err
	}
	if ctl != nil {
		ctl.FlushAfter(e.frame.owner)
	}
	return nil
}

// WriteBack commits results.
func (e *PipelinedExecution) WriteBack() error { return e.writeBack() }
