package core

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
	"github.com/sarchlab/mipsim/timing/cache"
)

// Sequential runs one instruction at a time. Under SingleCycle an
// instruction takes one cycle; under MultiCycle it takes one cycle per
// phase.
type Sequential struct {
	arch   arch.Architecture
	regs   *emu.RegFile
	memory *emu.Memory
	dcache *cache.Cache
	set    *insts.Set
	env    *arch.Env

	onInterrupt emu.InterruptHandler
	logger      *logrus.Logger
	maxCycles   uint64

	cur       arch.Execution
	phase     int
	end       uint32
	nextOwner emu.Owner

	stats     Stats
	halted    bool
	exitCode  int32
	interrupt *emu.Interrupt
	err       error
}

func newSequential(a arch.Architecture, regs *emu.RegFile, memory *emu.Memory, cfg *config) *Sequential {
	s := &Sequential{
		arch:        a,
		regs:        regs,
		memory:      memory,
		set:         cfg.set,
		onInterrupt: cfg.onInterrupt,
		logger:      cfg.logger,
		maxCycles:   cfg.maxCycles,
	}

	var data emu.DataPort = memory
	if cfg.dcache != nil {
		s.dcache = cache.New(*cfg.dcache, cache.NewMemoryBacking(memory))
		data = s.dcache
	}
	s.env = &arch.Env{Regs: regs, Data: data, Syscalls: cfg.syscalls}
	return s
}

func (s *Sequential) phases() []func() error {
	if s.arch == arch.SingleCycle {
		return []func() error{s.cur.Execute}
	}
	return []func() error{s.cur.Decode, s.cur.Execute, s.cur.Memory, s.cur.WriteBack}
}

// SetEnd sets the address at which fetch stops.
func (s *Sequential) SetEnd(end uint32) { s.end = end }

// Halted returns true if the program exited or an interrupt stopped it.
func (s *Sequential) Halted() bool { return s.halted }

// Drained reports whether nothing is in flight and fetch has passed the end.
func (s *Sequential) Drained() bool { return s.cur == nil && s.regs.PC() >= s.end }

// ExitCode returns the exit code passed to the exit syscall.
func (s *Sequential) ExitCode() int32 { return s.exitCode }

// Interrupt returns the interrupt that halted the run, if any.
func (s *Sequential) Interrupt() *emu.Interrupt { return s.interrupt }

// Stats returns run statistics.
func (s *Sequential) Stats() Stats { return s.stats }

// DCacheStats returns data cache statistics, zero without a data cache.
func (s *Sequential) DCacheStats() cache.Statistics {
	if s.dcache == nil {
		return cache.Statistics{}
	}
	return s.dcache.Stats()
}

// Tick runs one cycle.
func (s *Sequential) Tick() {
	if s.halted {
		return
	}
	if s.cur == nil && !s.fetch() {
		return
	}

	s.stats.Cycles++
	cur := s.cur
	if err := s.phases()[s.phase](); err != nil {
		s.cur = nil
		cur.Abort()
		s.deliver(cur.Addr(), err)
		return
	}

	s.phase++
	if s.phase < len(s.phases()) {
		return
	}

	s.cur = nil
	s.stats.Instructions++
	s.logger.WithFields(logrus.Fields{
		"cycle": s.stats.Cycles,
		"pc":    cur.Addr(),
		"inst":  cur.Inst().String(),
	}).Debug("retire")

	if out := cur.Outcome(); out.Exited {
		s.halted = true
		s.exitCode = out.ExitCode
	}
}

// fetch starts the next instruction. PC moves past it at once; a taken
// branch overwrites PC when it completes.
func (s *Sequential) fetch() bool {
	pc := s.regs.PC()
	if pc >= s.end {
		return false
	}

	inst, err := s.set.Decode(s.memory.Read32(pc))
	s.regs.SetPC(pc + 4)
	if err != nil {
		s.stats.Cycles++
		s.deliver(pc, &emu.Interrupt{Cause: emu.CauseReservedInstruction, Addr: pc, Msg: err.Error()})
		return false
	}

	s.nextOwner++
	exec, err := arch.New(s.arch, inst, pc, s.nextOwner, s.env)
	if err != nil {
		s.stats.Cycles++
		s.deliver(pc, err)
		return false
	}

	s.cur = exec
	s.phase = 0
	return true
}

func (s *Sequential) deliver(addr uint32, err error) {
	intr, ok := emu.AsInterrupt(err)
	if !ok {
		s.logger.WithError(err).Error("execution fault")
		s.halted = true
		s.err = errors.Wrapf(err, "at 0x%08x", addr)
		return
	}

	s.stats.Interrupts++
	s.regs.SetPC(addr + 4)
	s.logger.WithFields(logrus.Fields{
		"cycle": s.stats.Cycles,
		"pc":    addr,
		"cause": intr.Cause.String(),
	}).Warn(intr.Msg)

	if s.onInterrupt(intr) == emu.Halt {
		s.halted = true
		s.interrupt = intr
		s.err = intr
	}
}

// Run ticks until the program exits, an interrupt halts it or fetch passes
// the end.
func (s *Sequential) Run() error {
	defer s.flushCache()

	for !s.halted && !s.Drained() {
		if s.maxCycles > 0 && s.stats.Cycles >= s.maxCycles {
			return errors.Errorf("cycle limit %d reached at pc 0x%08x", s.maxCycles, s.regs.PC())
		}
		s.Tick()
	}

	s.logger.WithFields(logrus.Fields{
		"arch":         s.arch.String(),
		"cycles":       s.stats.Cycles,
		"instructions": s.stats.Instructions,
		"cpi":          s.stats.CPI(),
	}).Info("run finished")

	return s.err
}

// RunCycles executes up to cycles cycles. Returns true if still running.
func (s *Sequential) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !s.halted && !s.Drained(); i++ {
		s.Tick()
	}
	return !s.halted && !s.Drained()
}

func (s *Sequential) flushCache() {
	if s.dcache != nil {
		s.dcache.Flush()
	}
}

// Reset drops the instruction in flight and clears statistics.
func (s *Sequential) Reset() {
	if s.cur != nil {
		s.cur.Abort()
		s.cur = nil
	}
	s.regs.ForceUnlockAll()
	s.stats = Stats{}
	s.halted = false
	s.exitCode = 0
	s.interrupt = nil
	s.err = nil
	if s.dcache != nil {
		s.dcache.Flush()
		s.dcache.ResetStats()
	}
}
