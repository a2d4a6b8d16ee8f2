package arch

import (
	"math"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
)

// semantics describes one instruction as phase functions. decode declares
// sources and destinations, execute computes, memory performs data access
// and branch decides a control transfer. link writes a branch's return
// address in whichever phase the strategy resolves the branch. Only decode
// is mandatory.
type semantics struct {
	decode  func(f *Frame)
	execute func(f *Frame) error
	memory  func(f *Frame) error
	branch  func(f *Frame) (taken bool, target uint32)
	link    func(f *Frame)
}

func rs(f *Frame) emu.RegID { return emu.GPR(f.Inst.Rs()) }
func rt(f *Frame) emu.RegID { return emu.GPR(f.Inst.Rt()) }
func rd(f *Frame) emu.RegID { return emu.GPR(f.Inst.Rd()) }
func ra() emu.RegID         { return emu.GPR(insts.RegRA) }

func fs(f *Frame) emu.RegID { return emu.FPR(f.Inst.Fs()) }
func ft(f *Frame) emu.RegID { return emu.FPR(f.Inst.Ft()) }
func fd(f *Frame) emu.RegID { return emu.FPR(f.Inst.Fd()) }
func fr(f *Frame) emu.RegID { return emu.FPR(f.Inst.Fr()) }

func next(id emu.RegID) emu.RegID { return emu.RegID{Bank: id.Bank, Index: id.Index + 1} }

type binary func(f *Frame, a, b uint32) (uint32, error)

func pure(fn func(a, b uint32) uint32) binary {
	return func(_ *Frame, a, b uint32) (uint32, error) { return fn(a, b), nil }
}

// aluR computes rd = fn(rs, rt).
func aluR(fn binary) semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(rs(f), rt(f))
			f.Lock(rd(f))
		},
		execute: func(f *Frame) error {
			v, err := fn(f, f.Value(rs(f)), f.Value(rt(f)))
			if err != nil {
				return err
			}
			f.Produce(rd(f), v)
			return nil
		},
	}
}

// aluI computes rt = fn(rs, imm).
func aluI(imm func(*insts.Instruction) uint32, fn binary) semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(rs(f))
			f.Lock(rt(f))
		},
		execute: func(f *Frame) error {
			v, err := fn(f, f.Value(rs(f)), imm(f.Inst))
			if err != nil {
				return err
			}
			f.Produce(rt(f), v)
			return nil
		},
	}
}

func signExt(i *insts.Instruction) uint32 { return uint32(i.SImm()) }
func zeroExt(i *insts.Instruction) uint32 { return i.ZImm() }

// shiftImm computes rd = fn(rt, shamt).
func shiftImm(fn func(v, sa uint32) uint32) semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(rt(f))
			f.Lock(rd(f))
		},
		execute: func(f *Frame) error {
			f.Produce(rd(f), fn(f.Value(rt(f)), f.Inst.Shamt()))
			return nil
		},
	}
}

// shiftVar computes rd = fn(rt, rs & 31).
func shiftVar(fn func(v, sa uint32) uint32) semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(rt(f), rs(f))
			f.Lock(rd(f))
		},
		execute: func(f *Frame) error {
			f.Produce(rd(f), fn(f.Value(rt(f)), f.Value(rs(f))&31))
			return nil
		},
	}
}

func addTrap(f *Frame, a, b uint32) (uint32, error) {
	r, overflow := emu.AddSigned(int32(a), int32(b))
	if overflow {
		return 0, f.Raise(emu.CauseArithmeticOverflow, "%d + %d", int32(a), int32(b))
	}
	return uint32(r), nil
}

func subTrap(f *Frame, a, b uint32) (uint32, error) {
	r, overflow := emu.SubSigned(int32(a), int32(b))
	if overflow {
		return 0, f.Raise(emu.CauseArithmeticOverflow, "%d - %d", int32(a), int32(b))
	}
	return uint32(r), nil
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// hiloOp computes HI, LO = fn(rs, rt).
func hiloOp(fn func(a, b uint32) (hi, lo uint32)) semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(rs(f), rt(f))
			f.Lock(emu.HI, emu.LO)
		},
		execute: func(f *Frame) error {
			hi, lo := fn(f.Value(rs(f)), f.Value(rt(f)))
			f.Produce(emu.HI, hi)
			f.Produce(emu.LO, lo)
			return nil
		},
	}
}

// accumulate computes HI, LO = fn(HI, LO, rs, rt).
func accumulate(fn func(hi, lo, a, b uint32) (uint32, uint32)) semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(rs(f), rt(f), emu.HI, emu.LO)
			f.Lock(emu.HI, emu.LO)
		},
		execute: func(f *Frame) error {
			hi, lo := fn(f.Value(emu.HI), f.Value(emu.LO), f.Value(rs(f)), f.Value(rt(f)))
			f.Produce(emu.HI, hi)
			f.Produce(emu.LO, lo)
			return nil
		},
	}
}

// move copies src into dst.
func move(src, dst func(*Frame) emu.RegID) semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(src(f))
			f.Lock(dst(f))
		},
		execute: func(f *Frame) error {
			f.Produce(dst(f), f.Value(src(f)))
			return nil
		},
	}
}

func fixedReg(id emu.RegID) func(*Frame) emu.RegID {
	return func(*Frame) emu.RegID { return id }
}

func effectiveAddress(f *Frame) error {
	f.ea = f.Value(rs(f)) + uint32(f.Inst.SImm())
	return nil
}

// load reads size bytes into dst during the memory phase.
func load(dst func(*Frame) emu.RegID, size uint32, signed bool) semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(rs(f))
			f.Lock(dst(f))
		},
		execute: effectiveAddress,
		memory: func(f *Frame) error {
			if f.ea%size != 0 {
				intr := f.Raise(emu.CauseAddressErrorLoad, "unaligned %d-byte load from 0x%08x", size, f.ea)
				intr.Value = f.ea
				return intr
			}

			var v uint32
			data := f.Data()
			switch size {
			case 1:
				v = uint32(data.Read8(f.ea))
				if signed {
					v = uint32(int32(int8(v)))
				}
			case 2:
				v = uint32(data.Read16(f.ea))
				if signed {
					v = uint32(int32(int16(v)))
				}
			default:
				v = data.Read32(f.ea)
			}
			f.Produce(dst(f), v)
			return nil
		},
	}
}

// store writes the low size bytes of src during the memory phase.
func store(src func(*Frame) emu.RegID, size uint32) semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(rs(f))
			f.RequiresLate(src(f))
		},
		execute: effectiveAddress,
		memory: func(f *Frame) error {
			if f.ea%size != 0 {
				intr := f.Raise(emu.CauseAddressErrorStore, "unaligned %d-byte store to 0x%08x", size, f.ea)
				intr.Value = f.ea
				return intr
			}

			v := f.Value(src(f))
			data := f.Data()
			switch size {
			case 1:
				data.Write8(f.ea, uint8(v))
			case 2:
				data.Write16(f.ea, uint16(v))
			default:
				data.Write32(f.ea, v)
			}
			return nil
		},
	}
}

func relative(f *Frame) uint32 { return f.Inst.BranchTarget(f.Addr) }

// branchIf jumps to the relative target when cond holds. link, when set,
// receives the return address whether or not the branch is taken.
func branchIf(sources []func(*Frame) emu.RegID, link bool, cond func(f *Frame) bool) semantics {
	s := semantics{
		decode: func(f *Frame) {
			for _, src := range sources {
				f.Requires(src(f))
			}
			if link {
				f.Lock(ra())
			}
		},
		branch: func(f *Frame) (bool, uint32) {
			return cond(f), relative(f)
		},
	}
	if link {
		s.link = produceLink(fixedReg(ra()))
	}
	return s
}

func produceLink(dst func(*Frame) emu.RegID) func(f *Frame) {
	return func(f *Frame) {
		f.Produce(dst(f), f.Addr+4)
	}
}

func signedOf(src func(*Frame) emu.RegID, f *Frame) int32 { return int32(f.Value(src(f))) }

func jump(link bool) semantics {
	s := semantics{
		decode: func(f *Frame) {
			if link {
				f.Lock(ra())
			}
		},
		branch: func(f *Frame) (bool, uint32) {
			return true, f.Inst.JumpTarget(f.Addr)
		},
	}
	if link {
		s.link = produceLink(fixedReg(ra()))
	}
	return s
}

var syscallArgs = []emu.RegID{
	emu.GPR(insts.RegA0), emu.GPR(insts.RegA1), emu.GPR(insts.RegA2),
}

func syscall() semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(emu.GPR(insts.RegV0))
			f.Requires(syscallArgs...)
			f.Lock(emu.GPR(insts.RegV0))
		},
		memory: func(f *Frame) error {
			if f.env.Syscalls == nil {
				return f.Raise(emu.CauseSyscall, "no syscall handler")
			}

			call := emu.Syscall{Code: f.Value(emu.GPR(insts.RegV0))}
			for i, id := range syscallArgs {
				call.Args[i] = f.Value(id)
			}

			result, err := f.env.Syscalls.Handle(call, f.Data())
			if err != nil {
				return f.locate(err)
			}
			f.exited = result.Exited
			f.exitCode = result.ExitCode
			if result.Returns {
				f.Produce(emu.GPR(insts.RegV0), result.Value)
			}
			return nil
		},
	}
}

// Floating point.

func single(f *Frame, id emu.RegID) float32 {
	return math.Float32frombits(f.Value(id))
}

func double(f *Frame, id emu.RegID) float64 {
	return emu.JoinFloat64(f.Value(id), f.Value(next(id)))
}

func produceSingle(f *Frame, id emu.RegID, v float32) {
	f.Produce(id, math.Float32bits(v))
}

func produceDouble(f *Frame, id emu.RegID, v float64) {
	lo, hi := emu.SplitFloat64(v)
	f.Produce(id, lo)
	f.Produce(next(id), hi)
}

// pairs checks that double operands name even registers and expands each
// into its pair. It fails the frame otherwise.
func pairs(f *Frame, ids ...emu.RegID) ([]emu.RegID, bool) {
	out := make([]emu.RegID, 0, 2*len(ids))
	for _, id := range ids {
		if id.Index%2 != 0 {
			f.Fail(f.Raise(emu.CauseFloatingPoint, "double operand %s is not an even register", id))
			return nil, false
		}
		out = append(out, id, next(id))
	}
	return out, true
}

func fpuSingle(fn func(a, b float32) float32) semantics {
	return semantics{
		decode: func(f *Frame) {
			f.Requires(fs(f), ft(f))
			f.Lock(fd(f))
		},
		execute: func(f *Frame) error {
			produceSingle(f, fd(f), fn(single(f, fs(f)), single(f, ft(f))))
			return nil
		},
	}
}

func fpuDouble(fn func(a, b float64) float64) semantics {
	return semantics{
		decode: func(f *Frame) {
			srcs, ok := pairs(f, fs(f), ft(f))
			if !ok {
				return
			}
			dsts, ok := pairs(f, fd(f))
			if !ok {
				return
			}
			f.Requires(srcs...)
			f.Lock(dsts...)
		},
		execute: func(f *Frame) error {
			produceDouble(f, fd(f), fn(double(f, fs(f)), double(f, ft(f))))
			return nil
		},
	}
}

// fpuMove copies fs to fd, optionally flipping the sign bit of the most
// significant word.
func fpuMove(isDouble, negate bool) semantics {
	var sign uint32
	if negate {
		sign = 0x80000000
	}
	return semantics{
		decode: func(f *Frame) {
			if !isDouble {
				f.Requires(fs(f))
				f.Lock(fd(f))
				return
			}
			srcs, ok := pairs(f, fs(f))
			if !ok {
				return
			}
			dsts, ok := pairs(f, fd(f))
			if !ok {
				return
			}
			f.Requires(srcs...)
			f.Lock(dsts...)
		},
		execute: func(f *Frame) error {
			if !isDouble {
				f.Produce(fd(f), f.Value(fs(f))^sign)
				return nil
			}
			f.Produce(fd(f), f.Value(fs(f)))
			f.Produce(next(fd(f)), f.Value(next(fs(f)))^sign)
			return nil
		},
	}
}

// compareFloat sets the condition flag selected by cc to the predicate of
// the definition. Unordered operands under a signaling predicate raise a
// floating-point exception and set nothing.
func compareFloat(isDouble bool) semantics {
	cc := func(f *Frame) emu.RegID { return emu.FCC(f.Inst.CC()) }
	return semantics{
		decode: func(f *Frame) {
			if isDouble {
				srcs, ok := pairs(f, fs(f), ft(f))
				if !ok {
					return
				}
				f.Requires(srcs...)
			} else {
				f.Requires(fs(f), ft(f))
			}
			f.Lock(cc(f))
		},
		execute: func(f *Frame) error {
			var a, b float64
			if isDouble {
				a, b = double(f, fs(f)), double(f, ft(f))
			} else {
				a, b = float64(single(f, fs(f))), float64(single(f, ft(f)))
			}

			cond := f.Inst.Def.Condition
			less, equal, unordered := emu.CompareFloat(a, b)
			if unordered && cond.Signaling() {
				return f.Raise(emu.CauseFloatingPoint, "c.%s on unordered operands", cond.Mnemonic())
			}
			f.Produce(cc(f), boolWord(cond.Evaluate(less, equal, unordered)))
			return nil
		},
	}
}

func branchFPU(onTrue bool) semantics {
	cc := func(f *Frame) emu.RegID { return emu.FCC(f.Inst.CC()) }
	return branchIf([]func(*Frame) emu.RegID{cc}, false, func(f *Frame) bool {
		return (f.Value(cc(f)) != 0) == onTrue
	})
}

// multiplyAdd computes fd = fs*ft + fr without fusing.
func multiplyAdd(isDouble bool) semantics {
	return semantics{
		decode: func(f *Frame) {
			if !isDouble {
				f.Requires(fr(f), fs(f), ft(f))
				f.Lock(fd(f))
				return
			}
			srcs, ok := pairs(f, fr(f), fs(f), ft(f))
			if !ok {
				return
			}
			dsts, ok := pairs(f, fd(f))
			if !ok {
				return
			}
			f.Requires(srcs...)
			f.Lock(dsts...)
		},
		execute: func(f *Frame) error {
			if isDouble {
				product := float64(double(f, fs(f)) * double(f, ft(f)))
				produceDouble(f, fd(f), product+double(f, fr(f)))
				return nil
			}
			product := float32(single(f, fs(f)) * single(f, ft(f)))
			produceSingle(f, fd(f), product+single(f, fr(f)))
			return nil
		},
	}
}

func fpuLoadTarget(f *Frame) emu.RegID { return emu.FPR(f.Inst.Rt()) }

var semanticsTable = map[insts.Op]semantics{
	insts.OpADD:  aluR(addTrap),
	insts.OpADDU: aluR(pure(func(a, b uint32) uint32 { return a + b })),
	insts.OpSUB:  aluR(subTrap),
	insts.OpSUBU: aluR(pure(func(a, b uint32) uint32 { return a - b })),
	insts.OpAND:  aluR(pure(func(a, b uint32) uint32 { return a & b })),
	insts.OpOR:   aluR(pure(func(a, b uint32) uint32 { return a | b })),
	insts.OpXOR:  aluR(pure(func(a, b uint32) uint32 { return a ^ b })),
	insts.OpNOR:  aluR(pure(func(a, b uint32) uint32 { return ^(a | b) })),
	insts.OpSLT:  aluR(pure(func(a, b uint32) uint32 { return boolWord(int32(a) < int32(b)) })),
	insts.OpSLTU: aluR(pure(func(a, b uint32) uint32 { return boolWord(a < b) })),
	insts.OpMUL:  aluR(pure(func(a, b uint32) uint32 { return uint32(int32(a) * int32(b)) })),

	insts.OpSLL:  shiftImm(func(v, sa uint32) uint32 { return v << sa }),
	insts.OpSRL:  shiftImm(func(v, sa uint32) uint32 { return v >> sa }),
	insts.OpSRA:  shiftImm(func(v, sa uint32) uint32 { return uint32(int32(v) >> sa) }),
	insts.OpSLLV: shiftVar(func(v, sa uint32) uint32 { return v << sa }),
	insts.OpSRLV: shiftVar(func(v, sa uint32) uint32 { return v >> sa }),
	insts.OpSRAV: shiftVar(func(v, sa uint32) uint32 { return uint32(int32(v) >> sa) }),

	insts.OpADDI:  aluI(signExt, addTrap),
	insts.OpADDIU: aluI(signExt, pure(func(a, b uint32) uint32 { return a + b })),
	insts.OpSLTI:  aluI(signExt, pure(func(a, b uint32) uint32 { return boolWord(int32(a) < int32(b)) })),
	insts.OpSLTIU: aluI(signExt, pure(func(a, b uint32) uint32 { return boolWord(a < b) })),
	insts.OpANDI:  aluI(zeroExt, pure(func(a, b uint32) uint32 { return a & b })),
	insts.OpORI:   aluI(zeroExt, pure(func(a, b uint32) uint32 { return a | b })),
	insts.OpXORI:  aluI(zeroExt, pure(func(a, b uint32) uint32 { return a ^ b })),
	insts.OpLUI: {
		decode: func(f *Frame) { f.Lock(rt(f)) },
		execute: func(f *Frame) error {
			f.Produce(rt(f), f.Inst.ZImm()<<16)
			return nil
		},
	},

	insts.OpMULT: hiloOp(func(a, b uint32) (uint32, uint32) { return emu.Multiply(int32(a), int32(b)) }),
	insts.OpMULTU: hiloOp(emu.MultiplyUnsigned),
	insts.OpDIV:   hiloOp(func(a, b uint32) (uint32, uint32) { return emu.Divide(int32(a), int32(b)) }),
	insts.OpDIVU:  hiloOp(emu.DivideUnsigned),
	insts.OpMADD: accumulate(func(hi, lo, a, b uint32) (uint32, uint32) {
		return emu.MultiplyAdd(hi, lo, int32(a), int32(b))
	}),
	insts.OpMADDU: accumulate(emu.MultiplyAddUnsigned),
	insts.OpMFHI:  move(fixedReg(emu.HI), rd),
	insts.OpMFLO:  move(fixedReg(emu.LO), rd),
	insts.OpMTHI:  move(rs, fixedReg(emu.HI)),
	insts.OpMTLO:  move(rs, fixedReg(emu.LO)),

	insts.OpLB:   load(rt, 1, true),
	insts.OpLBU:  load(rt, 1, false),
	insts.OpLH:   load(rt, 2, true),
	insts.OpLHU:  load(rt, 2, false),
	insts.OpLW:   load(rt, 4, false),
	insts.OpLWC1: load(fpuLoadTarget, 4, false),
	insts.OpSB:   store(rt, 1),
	insts.OpSH:   store(rt, 2),
	insts.OpSW:   store(rt, 4),
	insts.OpSWC1: store(fpuLoadTarget, 4),

	insts.OpBEQ: branchIf([]func(*Frame) emu.RegID{rs, rt}, false, func(f *Frame) bool {
		return f.Value(rs(f)) == f.Value(rt(f))
	}),
	insts.OpBNE: branchIf([]func(*Frame) emu.RegID{rs, rt}, false, func(f *Frame) bool {
		return f.Value(rs(f)) != f.Value(rt(f))
	}),
	insts.OpBLEZ: branchIf([]func(*Frame) emu.RegID{rs}, false, func(f *Frame) bool {
		return signedOf(rs, f) <= 0
	}),
	insts.OpBGTZ: branchIf([]func(*Frame) emu.RegID{rs}, false, func(f *Frame) bool {
		return signedOf(rs, f) > 0
	}),
	insts.OpBLTZ: branchIf([]func(*Frame) emu.RegID{rs}, false, func(f *Frame) bool {
		return signedOf(rs, f) < 0
	}),
	insts.OpBGEZ: branchIf([]func(*Frame) emu.RegID{rs}, false, func(f *Frame) bool {
		return signedOf(rs, f) >= 0
	}),
	insts.OpBLTZAL: branchIf([]func(*Frame) emu.RegID{rs}, true, func(f *Frame) bool {
		return signedOf(rs, f) < 0
	}),
	insts.OpBGEZAL: branchIf([]func(*Frame) emu.RegID{rs}, true, func(f *Frame) bool {
		return signedOf(rs, f) >= 0
	}),
	insts.OpJ:   jump(false),
	insts.OpJAL: jump(true),
	insts.OpJR: {
		decode: func(f *Frame) { f.Requires(rs(f)) },
		branch: func(f *Frame) (bool, uint32) { return true, f.Value(rs(f)) },
	},
	insts.OpJALR: {
		decode: func(f *Frame) {
			f.Requires(rs(f))
			f.Lock(rd(f))
		},
		branch: func(f *Frame) (bool, uint32) { return true, f.Value(rs(f)) },
		link:   produceLink(rd),
	},
	insts.OpSYSCALL: syscall(),

	insts.OpADDS: fpuSingle(func(a, b float32) float32 { return a + b }),
	insts.OpSUBS: fpuSingle(func(a, b float32) float32 { return a - b }),
	insts.OpMULS: fpuSingle(func(a, b float32) float32 { return a * b }),
	insts.OpDIVS: fpuSingle(func(a, b float32) float32 { return a / b }),
	insts.OpADDD: fpuDouble(func(a, b float64) float64 { return a + b }),
	insts.OpSUBD: fpuDouble(func(a, b float64) float64 { return a - b }),
	insts.OpMULD: fpuDouble(func(a, b float64) float64 { return a * b }),
	insts.OpDIVD: fpuDouble(func(a, b float64) float64 { return a / b }),
	insts.OpMOVS: fpuMove(false, false),
	insts.OpMOVD: fpuMove(true, false),
	insts.OpNEGS: fpuMove(false, true),
	insts.OpNEGD: fpuMove(true, true),

	insts.OpCCONDS: compareFloat(false),
	insts.OpCCONDD: compareFloat(true),
	insts.OpBC1F:   branchFPU(false),
	insts.OpBC1T:   branchFPU(true),
	insts.OpMFC1:   move(fs, rt),
	insts.OpMTC1:   move(rt, fs),

	insts.OpMADDS: multiplyAdd(false),
	insts.OpMADDD: multiplyAdd(true),
}
