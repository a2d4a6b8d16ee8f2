// Package emu provides the MIPS32 machine state shared by every execution
// strategy: registers with hazard tracking, memory, interrupts and syscalls.
package emu

import (
	"fmt"
	"math"
)

// Bank is a register namespace.
type Bank uint8

// Register namespaces.
const (
	BankGPR Bank = iota
	BankFPR
	BankHILO
	BankPC
)

// Namespace sizes. The FPR bank holds $f0-$f31 followed by the eight
// floating-point condition flags.
const (
	NumGPR = 32
	NumFPR = 32
	NumFCC = 8

	fprBankSize = NumFPR + NumFCC
)

// RegID names one register.
type RegID struct {
	Bank  Bank
	Index uint8
}

// GPR returns the id of general-purpose register i.
func GPR(i int) RegID { return RegID{Bank: BankGPR, Index: uint8(i)} }

// FPR returns the id of floating-point register i.
func FPR(i int) RegID { return RegID{Bank: BankFPR, Index: uint8(i)} }

// FCC returns the id of floating-point condition flag cc.
func FCC(cc int) RegID { return RegID{Bank: BankFPR, Index: uint8(NumFPR + cc)} }

// Special registers.
var (
	HI = RegID{Bank: BankHILO, Index: 0}
	LO = RegID{Bank: BankHILO, Index: 1}
	PC = RegID{Bank: BankPC}
)

func (id RegID) String() string {
	switch id.Bank {
	case BankGPR:
		return fmt.Sprintf("$%d", id.Index)
	case BankFPR:
		if id.Index >= NumFPR {
			return fmt.Sprintf("$fcc%d", id.Index-NumFPR)
		}
		return fmt.Sprintf("$f%d", id.Index)
	case BankHILO:
		if id.Index == 0 {
			return "hi"
		}
		return "lo"
	case BankPC:
		return "pc"
	}
	return fmt.Sprintf("?%d:%d", id.Bank, id.Index)
}

// Owner identifies the in-flight execution holding a lock. The zero Owner
// holds nothing.
type Owner uint64

// NoOwner is the zero Owner.
const NoOwner Owner = 0

// Register is one architectural register with its hazard state.
type Register struct {
	id        RegID
	value     uint32
	hardwired bool

	owner     Owner
	forwarded bool
	pending   uint32
}

// ID returns the register's name.
func (r *Register) ID() RegID { return r.id }

// Read returns the forwarded value if one is pending, else the committed
// value.
func (r *Register) Read() uint32 {
	if r.forwarded {
		return r.pending
	}
	return r.value
}

// Committed returns the committed value, ignoring any forwarded value.
func (r *Register) Committed() uint32 { return r.value }

// Locked reports whether an execution has claimed the register.
func (r *Register) Locked() bool { return r.owner != NoOwner }

// Owner returns the lock holder.
func (r *Register) Owner() Owner { return r.owner }

// Forwarded reports whether a speculative value is visible.
func (r *Register) Forwarded() bool { return r.forwarded }

// Lock claims the register for owner. A register holds at most one lock.
// The hardwired zero register never locks.
func (r *Register) Lock(owner Owner) error {
	if r.hardwired {
		return nil
	}
	if owner == NoOwner {
		return &HazardViolationError{Reg: r.id, Action: "lock", Owner: owner}
	}
	if r.Locked() {
		return &HazardViolationError{Reg: r.id, Action: "lock", Owner: owner, Holder: r.owner}
	}
	r.owner = owner
	r.forwarded = false
	return nil
}

// Forward publishes v to readers without committing it.
func (r *Register) Forward(owner Owner, v uint32) error {
	if r.hardwired {
		return nil
	}
	if err := r.checkHolder(owner, "forward"); err != nil {
		return err
	}
	r.forwarded = true
	r.pending = v
	return nil
}

// CommitAndUnlock writes v and releases owner's lock.
func (r *Register) CommitAndUnlock(owner Owner, v uint32) error {
	if r.hardwired {
		return nil
	}
	if err := r.checkHolder(owner, "commit"); err != nil {
		return err
	}
	r.value = v
	r.release()
	return nil
}

// Unlock releases owner's lock without writing.
func (r *Register) Unlock(owner Owner) error {
	if r.hardwired {
		return nil
	}
	if err := r.checkHolder(owner, "unlock"); err != nil {
		return err
	}
	r.release()
	return nil
}

// ForceUnlock drops any lock and forwarded value. Used when flushing.
func (r *Register) ForceUnlock() {
	r.release()
}

// Set writes v directly, outside the lock protocol. Only strategies with no
// overlapping executions, and sequential fetch, may use it.
func (r *Register) Set(v uint32) {
	if r.hardwired {
		return
	}
	r.value = v
}

func (r *Register) checkHolder(owner Owner, action string) error {
	if !r.Locked() || r.owner != owner {
		return &HazardViolationError{Reg: r.id, Action: action, Owner: owner, Holder: r.owner}
	}
	return nil
}

func (r *Register) release() {
	r.owner = NoOwner
	r.forwarded = false
	r.pending = 0
}

// RegFile holds every architectural register.
type RegFile struct {
	gpr  [NumGPR]Register
	fpr  [fprBankSize]Register
	hilo [2]Register
	pc   Register
}

// NewRegFile creates a zeroed register file.
func NewRegFile() *RegFile {
	rf := &RegFile{}
	for i := range rf.gpr {
		rf.gpr[i].id = GPR(i)
	}
	rf.gpr[0].hardwired = true
	for i := range rf.fpr {
		rf.fpr[i].id = RegID{Bank: BankFPR, Index: uint8(i)}
	}
	rf.hilo[0].id = HI
	rf.hilo[1].id = LO
	rf.pc.id = PC
	return rf
}

// Reg returns the register named by id. It panics on an id outside every
// namespace.
func (rf *RegFile) Reg(id RegID) *Register {
	switch {
	case id.Bank == BankGPR && int(id.Index) < len(rf.gpr):
		return &rf.gpr[id.Index]
	case id.Bank == BankFPR && int(id.Index) < len(rf.fpr):
		return &rf.fpr[id.Index]
	case id.Bank == BankHILO && int(id.Index) < len(rf.hilo):
		return &rf.hilo[id.Index]
	case id.Bank == BankPC && id.Index == 0:
		return &rf.pc
	}
	panic(fmt.Sprintf("invalid register %s", id))
}

// ReadGPR returns the visible value of general-purpose register i.
func (rf *RegFile) ReadGPR(i int) uint32 { return rf.Reg(GPR(i)).Read() }

// WriteGPR sets general-purpose register i directly.
func (rf *RegFile) WriteGPR(i int, v uint32) { rf.Reg(GPR(i)).Set(v) }

// ReadFloat32 returns $fi as a single.
func (rf *RegFile) ReadFloat32(i int) float32 {
	return math.Float32frombits(rf.Reg(floatReg(i)).Read())
}

// WriteFloat32 sets $fi directly.
func (rf *RegFile) WriteFloat32(i int, v float32) {
	rf.Reg(floatReg(i)).Set(math.Float32bits(v))
}

// ReadFloat64 returns the even pair $fi:$fi+1 as a double.
func (rf *RegFile) ReadFloat64(i int) float64 {
	lo, hi := doubleRegs(i)
	return JoinFloat64(rf.Reg(lo).Read(), rf.Reg(hi).Read())
}

// WriteFloat64 sets the pair $fi:$fi+1 directly.
func (rf *RegFile) WriteFloat64(i int, v float64) {
	lo, hi := doubleRegs(i)
	vlo, vhi := SplitFloat64(v)
	rf.Reg(lo).Set(vlo)
	rf.Reg(hi).Set(vhi)
}

// floatReg names $fi. It panics unless i is one of the 32 data registers, so
// the condition flags stored after them stay out of reach.
func floatReg(i int) RegID {
	if i < 0 || i >= 32 {
		panic(fmt.Sprintf("invalid float register $f%d", i))
	}
	return FPR(i)
}

// doubleRegs names the pair holding the double at $fi. It panics on an odd i.
func doubleRegs(i int) (lo, hi RegID) {
	if i%2 != 0 {
		panic(fmt.Sprintf("invalid double register $f%d", i))
	}
	return floatReg(i), floatReg(i + 1)
}

// PC returns the committed program counter.
func (rf *RegFile) PC() uint32 { return rf.pc.value }

// SetPC sets the program counter directly.
func (rf *RegFile) SetPC(v uint32) { rf.pc.Set(v) }

func (rf *RegFile) each(fn func(r *Register)) {
	for i := range rf.gpr {
		fn(&rf.gpr[i])
	}
	for i := range rf.fpr {
		fn(&rf.fpr[i])
	}
	for i := range rf.hilo {
		fn(&rf.hilo[i])
	}
	fn(&rf.pc)
}

// Locked lists the registers currently locked.
func (rf *RegFile) Locked() []RegID {
	var ids []RegID
	rf.each(func(r *Register) {
		if r.Locked() {
			ids = append(ids, r.id)
		}
	})
	return ids
}

// Release force-unlocks every register held by owner and returns how many
// were released.
func (rf *RegFile) Release(owner Owner) int {
	n := 0
	rf.each(func(r *Register) {
		if r.Locked() && r.owner == owner {
			r.ForceUnlock()
			n++
		}
	})
	return n
}

// ForceUnlockAll drops every lock and forwarded value.
func (rf *RegFile) ForceUnlockAll() {
	rf.each(func(r *Register) { r.ForceUnlock() })
}

// Reset zeroes every register and drops all hazard state.
func (rf *RegFile) Reset() {
	rf.each(func(r *Register) {
		r.ForceUnlock()
		r.value = 0
	})
}

// State is a comparable copy of the committed register values.
type State struct {
	GPR [NumGPR]uint32
	FPR [fprBankSize]uint32
	HI  uint32
	LO  uint32
	PC  uint32
}

// Snapshot copies the committed values.
func (rf *RegFile) Snapshot() State {
	var s State
	for i := range rf.gpr {
		s.GPR[i] = rf.gpr[i].value
	}
	for i := range rf.fpr {
		s.FPR[i] = rf.fpr[i].value
	}
	s.HI = rf.hilo[0].value
	s.LO = rf.hilo[1].value
	s.PC = rf.pc.value
	return s
}

// Restore loads committed values from s and drops all hazard state.
func (rf *RegFile) Restore(s State) {
	rf.Reset()
	for i := 1; i < NumGPR; i++ {
		rf.gpr[i].value = s.GPR[i]
	}
	for i := range rf.fpr {
		rf.fpr[i].value = s.FPR[i]
	}
	rf.hilo[0].value = s.HI
	rf.hilo[1].value = s.LO
	rf.pc.value = s.PC
}

// Diff describes every register whose value differs between s and o.
func (s State) Diff(o State) []string {
	var out []string
	add := func(id RegID, a, b uint32) {
		if a != b {
			out = append(out, fmt.Sprintf("%s: 0x%08x != 0x%08x", id, a, b))
		}
	}
	for i := range s.GPR {
		add(GPR(i), s.GPR[i], o.GPR[i])
	}
	for i := range s.FPR {
		add(RegID{Bank: BankFPR, Index: uint8(i)}, s.FPR[i], o.FPR[i])
	}
	add(HI, s.HI, o.HI)
	add(LO, s.LO, o.LO)
	add(PC, s.PC, o.PC)
	return out
}
