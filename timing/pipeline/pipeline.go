package pipeline

import (
	"os"
	"slices"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
	"github.com/sarchlab/mipsim/timing/cache"
	"github.com/sarchlab/mipsim/timing/latency"
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// RAWStalls counts cycles an execution waited for a source value.
	RAWStalls uint64
	// WAWStalls counts cycles an execution waited for a destination.
	WAWStalls uint64
	// StructuralStalls counts cycles decode waited for a free ALU.
	StructuralStalls uint64
	// MemStalls counts extra cycles spent in the memory stage.
	MemStalls uint64
	// Flushes is the number of branches resolved in the memory stage that
	// found fetch on the wrong path.
	Flushes uint64
	// Squashed is the number of instructions discarded by flushes.
	Squashed uint64
	// Interrupts is the number of interrupts delivered to the host.
	Interrupts uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler emu.SyscallHandler) PipelineOption {
	return func(p *Pipeline) {
		p.syscallHandler = handler
	}
}

// WithLatencyTable sets the ALU replication and latency table.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.latencyTable = table
	}
}

// WithDataCache places an L1 data cache between the memory stage and main
// memory.
func WithDataCache(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		p.dcache = cache.New(config, cache.NewMemoryBacking(p.memory))
	}
}

// WithInstructionSet sets the instruction set used to decode fetched words.
func WithInstructionSet(set *insts.Set) PipelineOption {
	return func(p *Pipeline) {
		p.set = set
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithInterruptHandler sets the host's interrupt policy. The default halts.
func WithInterruptHandler(handler emu.InterruptHandler) PipelineOption {
	return func(p *Pipeline) {
		p.onInterrupt = handler
	}
}

// WithBranchPredictor sizes the branch predictor that steers fetch.
func WithBranchPredictor(config BranchPredictorConfig) PipelineOption {
	return func(p *Pipeline) {
		p.predictor = NewBranchPredictor(config)
	}
}

// WithMaxCycles bounds Run. Zero means no bound.
func WithMaxCycles(n uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = n
	}
}

// Pipeline is the multi-ALU pipelined timing model.
type Pipeline struct {
	regs   *emu.RegFile
	memory *emu.Memory
	dcache *cache.Cache
	set    *insts.Set
	env    *arch.Env

	latencyTable   *latency.Table
	syscallHandler emu.SyscallHandler
	onInterrupt    emu.InterruptHandler
	logger         *logrus.Logger
	maxCycles      uint64

	hazardUnit *HazardUnit
	units      *ExecutionUnits
	predictor  *BranchPredictor

	// Pipeline state, youngest first.
	ifid     IFIDRegister
	decoding *Slot
	issued   []*Slot // past decode, waiting for memory, oldest first
	mem      *Slot
	memLeft  uint64
	wb       *Slot

	end       uint32
	nextOwner emu.Owner

	stats     Statistics
	halted    bool
	exitCode  int32
	interrupt *emu.Interrupt
	err       error
}

// NewPipeline creates a pipeline over regFile and memory. Fetch starts at
// the register file's PC.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		regs:        regFile,
		memory:      memory,
		onInterrupt: emu.HaltOnInterrupt,
		hazardUnit:  NewHazardUnit(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.set == nil {
		p.set = insts.NewDefaultSet()
	}
	if p.latencyTable == nil {
		p.latencyTable = latency.NewTable()
	}
	if p.syscallHandler == nil {
		p.syscallHandler = emu.NewDefaultSyscallHandler(os.Stdout)
	}
	if p.predictor == nil {
		p.predictor = NewBranchPredictor(DefaultBranchPredictorConfig())
	}
	if p.logger == nil {
		p.logger = logrus.New()
		p.logger.SetLevel(logrus.WarnLevel)
	}

	var data emu.DataPort = memory
	if p.dcache != nil {
		data = p.dcache
	}
	p.env = &arch.Env{
		Regs:     regFile,
		Data:     data,
		Syscalls: p.syscallHandler,
		Pipeline: p,
	}
	p.units = NewExecutionUnits(p.latencyTable)

	return p
}

// SetEnd sets the address at which fetch stops.
func (p *Pipeline) SetEnd(end uint32) {
	p.end = end
}

// PC returns the next fetch address.
func (p *Pipeline) PC() uint32 {
	return p.regs.PC()
}

// SetPC sets the next fetch address.
func (p *Pipeline) SetPC(pc uint32) {
	p.regs.SetPC(pc)
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	s := p.stats
	s.RAWStalls = p.hazardUnit.RAW
	s.WAWStalls = p.hazardUnit.WAW
	return s
}

// DCacheStats returns data cache statistics, zero without a data cache.
func (p *Pipeline) DCacheStats() cache.Statistics {
	if p.dcache == nil {
		return cache.Statistics{}
	}
	return p.dcache.Stats()
}

// Halted returns true if the program exited or an interrupt stopped it.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// ExitCode returns the exit code passed to the exit syscall.
func (p *Pipeline) ExitCode() int32 {
	return p.exitCode
}

// Interrupt returns the interrupt that halted the pipeline, if any.
func (p *Pipeline) Interrupt() *emu.Interrupt {
	return p.interrupt
}

// Drained reports whether nothing is in flight and fetch has passed the end.
func (p *Pipeline) Drained() bool {
	return !p.ifid.Valid && p.decoding == nil && len(p.issued) == 0 &&
		p.mem == nil && p.wb == nil && p.regs.PC() >= p.end
}

// Run ticks until the program exits, an interrupt halts it or the pipeline
// drains. It returns the halting interrupt, if any.
func (p *Pipeline) Run() error {
	defer p.flushCache()

	for !p.halted && !p.Drained() {
		if p.maxCycles > 0 && p.stats.Cycles >= p.maxCycles {
			return errors.Errorf("cycle limit %d reached at pc 0x%08x", p.maxCycles, p.regs.PC())
		}
		p.Tick()
	}

	p.logger.WithFields(logrus.Fields{
		"cycles":       p.stats.Cycles,
		"instructions": p.stats.Instructions,
		"cpi":          p.stats.CPI(),
	}).Info("pipeline finished")

	return p.err
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted && !p.Drained(); i++ {
		p.Tick()
	}
	return !p.halted && !p.Drained()
}

func (p *Pipeline) flushCache() {
	if p.dcache != nil {
		p.dcache.Flush()
	}
}

// Tick executes one pipeline cycle. Stages run in reverse order so each
// sees the state its successor left in the previous cycle.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}

	p.stats.Cycles++

	p.writeback()
	if p.halted {
		return
	}
	p.memoryStage()
	p.execute()
	p.decode()
	p.fetch()
}

func (p *Pipeline) writeback() {
	s := p.wb
	if s == nil {
		return
	}
	p.wb = nil

	if s.Fault != nil {
		p.deliver(s)
		return
	}
	if err := s.Exec.WriteBack(); err != nil {
		s.Fault = err
		p.deliver(s)
		return
	}

	p.stats.Instructions++
	out := s.Exec.Outcome()
	p.logger.WithFields(logrus.Fields{
		"cycle": p.stats.Cycles,
		"pc":    s.Addr,
		"inst":  s.Inst.String(),
	}).Debug("retire")

	if out.Exited {
		p.halted = true
		p.exitCode = out.ExitCode
		p.squash(s.Owner)
		p.regs.SetPC(s.Addr + 4)
	}
}

// deliver ends a faulted instruction: everything younger is squashed, PC
// moves past it and the host decides whether to go on.
func (p *Pipeline) deliver(s *Slot) {
	p.squash(s.Owner)
	s.abort()

	intr, ok := emu.AsInterrupt(s.Fault)
	if !ok {
		p.logger.WithError(s.Fault).Error("pipeline fault")
		p.halted = true
		p.err = errors.Wrapf(s.Fault, "at 0x%08x", s.Addr)
		return
	}

	p.stats.Interrupts++
	p.regs.SetPC(s.Addr + 4)
	p.logger.WithFields(logrus.Fields{
		"cycle": p.stats.Cycles,
		"pc":    s.Addr,
		"cause": intr.Cause.String(),
	}).Warn(intr.Msg)

	if p.onInterrupt(intr) == emu.Halt {
		p.halted = true
		p.interrupt = intr
		p.err = intr
	}
}

func (p *Pipeline) memoryStage() {
	if p.mem != nil {
		if p.memLeft > 1 {
			p.memLeft--
			p.stats.MemStalls++
			return
		}
		p.wb, p.mem = p.mem, nil
	}

	if p.wb != nil && p.wb.blocksMemory() {
		return
	}
	if len(p.issued) == 0 || !p.issued[0].ready() {
		return
	}

	s := p.issued[0]
	hit := true
	if s.Fault == nil {
		if p.dcache != nil {
			p.dcache.Settle()
		}
		err := s.Exec.Memory()
		if p.hazardUnit.Observe(err) {
			return
		}
		if err != nil {
			s.Fault = err
		} else {
			p.train(s)
		}
		if p.dcache != nil {
			if accessed, h := p.dcache.Settle(); accessed {
				hit = h
			}
		}
	}

	// A mispredicted branch has already dropped everything younger from issued.
	p.issued = p.issued[1:]
	p.mem = s
	p.memLeft = 1
	if s.Fault == nil {
		p.memLeft = p.latencyTable.MemoryLatency(s.Inst, hit)
	}
}

// train reports a branch resolved in the memory stage to the predictor.
func (p *Pipeline) train(s *Slot) {
	out := s.Exec.Outcome()
	if !s.Predicted || !out.Branch {
		return
	}
	if !p.predictor.Update(s.Addr, s.Prediction, out.Taken, out.Target) {
		p.logger.WithFields(logrus.Fields{
			"cycle":  p.stats.Cycles,
			"pc":     s.Addr,
			"taken":  out.Taken,
			"target": out.Target,
		}).Debug("branch mispredicted")
	}
}

// predicted reports whether fetch steers by the predictor after inst:
// branches decided in the memory stage.
func predicted(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	ctl := inst.Def.Control
	return ctl != nil && !ctl.SolveOnDecode
}

func (p *Pipeline) execute() {
	p.units.Tick(func(s *Slot) bool {
		err := s.Exec.Execute()
		if p.hazardUnit.Observe(err) {
			return false
		}
		if err != nil {
			s.Fault = err
		}
		s.executed = true
		return true
	})
}

func (p *Pipeline) decode() {
	if p.decoding == nil {
		if !p.ifid.Valid {
			return
		}
		p.decoding = p.newSlot(p.ifid)
		p.ifid.Clear()
	}

	s := p.decoding
	if s.Fault == nil {
		if !p.units.Available(s.ALU) {
			p.stats.StructuralStalls++
			return
		}
		err := s.Exec.Decode()
		if p.hazardUnit.Observe(err) {
			return
		}
		if err != nil {
			s.Fault = err
		} else {
			p.units.Issue(s)
		}
	}

	p.decoding = nil
	p.issued = append(p.issued, s)
}

func (p *Pipeline) newSlot(r IFIDRegister) *Slot {
	s := &Slot{
		Addr:       r.Addr,
		Owner:      r.Owner,
		Inst:       r.Inst,
		Predicted:  r.Predicted,
		Prediction: r.Prediction,
	}
	if r.Err != nil {
		s.Fault = &emu.Interrupt{
			Cause: emu.CauseReservedInstruction,
			Addr:  r.Addr,
			Msg:   r.Err.Error(),
		}
		return s
	}

	s.ALU = p.latencyTable.ALU(r.Inst)
	exec, err := arch.New(arch.Pipelined, r.Inst, r.Addr, r.Owner, p.env)
	if err != nil {
		s.Fault = err
		return s
	}
	s.Exec = exec
	return s
}

func (p *Pipeline) fetch() {
	if p.ifid.Valid {
		return
	}

	pc := p.regs.PC()
	if pc >= p.end {
		return
	}

	word := p.memory.Read32(pc)
	inst, err := p.set.Decode(word)
	p.nextOwner++

	p.ifid = IFIDRegister{
		Valid: true,
		Addr:  pc,
		Owner: p.nextOwner,
		Inst:  inst,
		Err:   err,
	}
	if err == nil && predicted(inst) {
		p.ifid.Predicted = true
		p.ifid.Prediction = p.predictor.Predict(pc)
	}
	p.regs.SetPC(p.ifid.Prediction.Next(pc))
}

// FetchedAfter returns where fetch went after the branch owner, if the
// predictor steered it.
func (p *Pipeline) FetchedAfter(owner emu.Owner) (uint32, bool) {
	for _, s := range p.issued {
		if s.Owner == owner {
			return s.fetchedAfter(), s.Predicted
		}
	}
	return 0, false
}

// DiscardFetch drops the instruction waiting in IF/ID.
func (p *Pipeline) DiscardFetch() {
	if p.ifid.Valid {
		p.stats.Squashed++
	}
	p.ifid.Clear()
}

// FlushAfter squashes every instruction younger than owner. It is called
// when a branch resolves against the path fetch took.
func (p *Pipeline) FlushAfter(owner emu.Owner) {
	p.stats.Flushes++
	p.squash(owner)
}

func (p *Pipeline) squash(owner emu.Owner) {
	younger := func(s *Slot) bool { return s.Owner > owner }

	if p.ifid.Valid && p.ifid.Owner > owner {
		p.ifid.Clear()
		p.stats.Squashed++
	}
	if p.decoding != nil && younger(p.decoding) {
		p.decoding.abort()
		p.decoding = nil
		p.stats.Squashed++
	}

	p.units.Flush(younger)
	p.issued = slices.DeleteFunc(p.issued, func(s *Slot) bool {
		if !younger(s) {
			return false
		}
		s.abort()
		p.stats.Squashed++
		return true
	})

	if p.mem != nil && younger(p.mem) {
		p.mem.abort()
		p.mem = nil
		p.stats.Squashed++
	}
}

// Reset clears all in-flight state and statistics. Registers and memory are
// left alone.
func (p *Pipeline) Reset() {
	p.ifid.Clear()
	p.decoding = nil
	p.issued = nil
	p.mem, p.wb = nil, nil
	p.units = NewExecutionUnits(p.latencyTable)
	p.hazardUnit.Reset()
	p.predictor.Reset()
	p.regs.ForceUnlockAll()
	p.stats = Statistics{}
	p.halted = false
	p.exitCode = 0
	p.interrupt = nil
	p.err = nil
	if p.dcache != nil {
		p.dcache.Flush()
		p.dcache.ResetStats()
	}
}

// BranchPredictorStats returns the predictor statistics.
func (p *Pipeline) BranchPredictorStats() BranchPredictorStats {
	return p.predictor.Stats()
}

// LatencyTable returns the latency table.
func (p *Pipeline) LatencyTable() *latency.Table {
	return p.latencyTable
}
