package arch

import (
	"fmt"
	"slices"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
)

type requirement struct {
	id   emu.RegID
	late bool
}

type output struct {
	id    emu.RegID
	value uint32
}

// Frame is the scratch state of one execution and its only view of the
// register file.
//
// In direct mode (single-cycle) reads see the register file as is and
// outputs are collected until the strategy commits them. Otherwise decode
// takes locks, reads honour the lock protocol and outputs are forwarded as
// soon as they are produced.
type Frame struct {
	Inst *insts.Instruction
	Addr uint32

	env    *Env
	owner  emu.Owner
	direct bool

	reqs  []requirement
	locks []emu.RegID
	vals  map[emu.RegID]uint32
	late  []emu.RegID
	held  []emu.RegID
	outs  []output
	fault error

	// ea is the effective address of a load or store.
	ea       uint32
	exited   bool
	exitCode int32
}

func newFrame(inst *insts.Instruction, addr uint32, owner emu.Owner, env *Env) *Frame {
	return &Frame{Inst: inst, Addr: addr, owner: owner, env: env}
}

// Requires declares registers whose values the instruction reads in
// execute.
func (f *Frame) Requires(ids ...emu.RegID) {
	for _, id := range ids {
		f.reqs = append(f.reqs, requirement{id: id})
	}
}

// RequiresLate declares a register read only in the memory phase, such as
// the data of a store. It never stalls decode.
func (f *Frame) RequiresLate(id emu.RegID) {
	f.reqs = append(f.reqs, requirement{id: id, late: true})
}

// Lock declares destination registers.
func (f *Frame) Lock(ids ...emu.RegID) {
	for _, id := range ids {
		if !slices.Contains(f.locks, id) {
			f.locks = append(f.locks, id)
		}
	}
}

// Fail records a fault found while decoding. Execute raises it.
func (f *Frame) Fail(err error) {
	if f.fault == nil {
		f.fault = err
	}
}

// Value returns a required register's value as captured for this execution.
func (f *Frame) Value(id emu.RegID) uint32 {
	v, ok := f.vals[id]
	if !ok {
		panic(fmt.Sprintf("%s at 0x%08x reads %s without requiring it", f.Inst.Def.Mnemonic, f.Addr, id))
	}
	return v
}

// Produce records an output. Outside direct mode it is forwarded at once.
func (f *Frame) Produce(id emu.RegID, v uint32) {
	for i := range f.outs {
		if f.outs[i].id == id {
			f.outs[i].value = v
			f.forward(id, v)
			return
		}
	}
	f.outs = append(f.outs, output{id: id, value: v})
	f.forward(id, v)
}

func (f *Frame) forward(id emu.RegID, v uint32) {
	if f.direct {
		return
	}
	if err := f.env.Regs.Reg(id).Forward(f.owner, v); err != nil {
		f.Fail(err)
	}
}

// Raise builds an interrupt at the instruction's address.
func (f *Frame) Raise(cause emu.Cause, format string, args ...any) *emu.Interrupt {
	intr := emu.NewInterrupt(cause, format, args...)
	intr.Addr = f.Addr
	return intr
}

// locate stamps the instruction address on an interrupt raised elsewhere.
func (f *Frame) locate(err error) error {
	if intr, ok := emu.AsInterrupt(err); ok && intr.Addr == 0 {
		intr.Addr = f.Addr
	}
	return err
}

// Data returns the data memory.
func (f *Frame) Data() emu.DataPort { return f.env.Data }

// visible returns the value f may read from r now. A register locked by a
// younger execution still holds the value this one is owed. A register
// locked by an older execution is readable only once that execution has
// forwarded.
func (f *Frame) visible(r *emu.Register) (uint32, bool) {
	switch {
	case f.direct || !r.Locked():
		return r.Read(), true
	case r.Owner() > f.owner:
		return r.Committed(), true
	case r.Owner() == f.owner:
		return r.Read(), true
	case r.Forwarded():
		return r.Read(), true
	default:
		return 0, false
	}
}

// applyDecode captures sources and takes the declared locks, or stalls
// without touching the register file.
func (f *Frame) applyDecode() error {
	regs := f.env.Regs

	vals := make(map[emu.RegID]uint32, len(f.reqs))
	var late []emu.RegID
	for _, rq := range f.reqs {
		v, ok := f.visible(regs.Reg(rq.id))
		switch {
		case ok:
			vals[rq.id] = v
		case rq.late:
			late = append(late, rq.id)
		default:
			return &StallError{Kind: StallRAW, Reg: rq.id}
		}
	}

	if !f.direct {
		for _, id := range f.locks {
			if r := regs.Reg(id); r.Locked() && r.Owner() != f.owner {
				return &StallError{Kind: StallWAW, Reg: id}
			}
		}
		for _, id := range f.locks {
			if err := regs.Reg(id).Lock(f.owner); err != nil {
				f.release()
				return err
			}
			f.held = append(f.held, id)
		}
	}

	f.vals = vals
	f.late = late
	return nil
}

// resolveLate reads the late requirements, stalling while one is still in
// flight.
func (f *Frame) resolveLate() error {
	for len(f.late) > 0 {
		id := f.late[0]
		v, ok := f.visible(f.env.Regs.Reg(id))
		if !ok {
			return &StallError{Kind: StallRAW, Reg: id}
		}
		f.vals[id] = v
		f.late = f.late[1:]
	}
	return nil
}

// reforward publishes the outputs again, as a memory stage passing values
// through.
func (f *Frame) reforward() {
	for _, o := range f.outs {
		f.forward(o.id, o.value)
	}
}

// commit writes the outputs. Locked registers that received no output are
// released unchanged.
func (f *Frame) commit() error {
	regs := f.env.Regs
	for _, o := range f.outs {
		if f.direct {
			regs.Reg(o.id).Set(o.value)
			continue
		}
		if err := regs.Reg(o.id).CommitAndUnlock(f.owner, o.value); err != nil {
			return err
		}
	}
	if f.direct {
		return nil
	}

	for _, id := range f.held {
		if f.produced(id) {
			continue
		}
		if err := regs.Reg(id).Unlock(f.owner); err != nil {
			return err
		}
	}
	f.held = nil
	return nil
}

func (f *Frame) produced(id emu.RegID) bool {
	for _, o := range f.outs {
		if o.id == id {
			return true
		}
	}
	return false
}

// release drops every lock this execution holds.
func (f *Frame) release() {
	f.env.Regs.Release(f.owner)
	f.held = nil
	f.outs = nil
	f.late = nil
}
