package insts

// Primary opcodes.
const (
	opcodeSpecial  = 0x00
	opcodeRegimm   = 0x01
	opcodeJ        = 0x02
	opcodeJAL      = 0x03
	opcodeBEQ      = 0x04
	opcodeBNE      = 0x05
	opcodeBLEZ     = 0x06
	opcodeBGTZ     = 0x07
	opcodeADDI     = 0x08
	opcodeADDIU    = 0x09
	opcodeSLTI     = 0x0A
	opcodeSLTIU    = 0x0B
	opcodeANDI     = 0x0C
	opcodeORI      = 0x0D
	opcodeXORI     = 0x0E
	opcodeLUI      = 0x0F
	opcodeCOP1     = 0x11
	opcodeCOP1X    = 0x13
	opcodeSpecial2 = 0x1C
	opcodeLB       = 0x20
	opcodeLH       = 0x21
	opcodeLW       = 0x23
	opcodeLBU      = 0x24
	opcodeLHU      = 0x25
	opcodeSB       = 0x28
	opcodeSH       = 0x29
	opcodeSW       = 0x2B
	opcodeLWC1     = 0x31
	opcodeSWC1     = 0x39
)

// COP1 fmt / sub-op field values (bits [25:21]).
const (
	cop1MFC1 = 0x00
	cop1MTC1 = 0x04
	cop1BC   = 0x08
	fmtS     = 0x10
	fmtD     = 0x11
)

type fixed struct {
	slot  Slot
	value uint32
}

func is(slot Slot, value uint32) fixed { return fixed{slot: slot, value: value} }
func zero(slot Slot) fixed             { return fixed{slot: slot} }

func pattern(fs ...fixed) (mask, match uint32) {
	for _, f := range fs {
		mask |= f.slot.Mask() << f.slot.Shift
		match = f.slot.Insert(match, f.value)
	}
	return mask, match
}

func newDef(op Op, format Format, params []ParamType, slots []Slot, fs ...fixed) *Definition {
	mask, match := pattern(fs...)
	return &Definition{
		Op:       op,
		Mnemonic: op.String(),
		Format:   format,
		Params:   params,
		Slots:    slots,
		Mask:     mask,
		Match:    match,
	}
}

func onALU(t ALUType, d *Definition) *Definition {
	d.ALU = t
	return d
}

func branch(solveOnDecode bool, d *Definition) *Definition {
	d.Control = &Control{SolveOnDecode: solveOnDecode}
	return d
}

func access(a MemAccess, d *Definition) *Definition {
	d.Access = a
	return d
}

var (
	pR   = ParamRegister
	pF   = ParamFloatRegister
	pD   = ParamEvenFloatRegister
	pS16 = ParamSigned16
	pU16 = ParamUnsigned16
	pU5  = ParamUnsigned5
	pU3  = ParamUnsigned3
	pT26 = ParamTarget26

	// COP1 fields alias the integer register positions.
	slotFmt   = SlotRs
	slotFt    = SlotRt
	slotFs    = SlotRd
	slotFd    = SlotShamt
	slotNDTF  = Slot{Shift: 16, Width: 2}
	slotCCPad = Slot{Shift: 6, Width: 2}
)

func params(ps ...ParamType) []ParamType { return ps }
func slots(ss ...Slot) []Slot            { return ss }

// special builds an opcode-0 definition.
func special(op Op, funct uint32, ps []ParamType, ss []Slot, zeros ...Slot) *Definition {
	fs := []fixed{is(SlotOpcode, opcodeSpecial), is(SlotFunct, funct)}
	for _, z := range zeros {
		fs = append(fs, zero(z))
	}
	return newDef(op, FormatR, ps, ss, fs...)
}

func special2(op Op, funct uint32, ps []ParamType, ss []Slot, zeros ...Slot) *Definition {
	fs := []fixed{is(SlotOpcode, opcodeSpecial2), is(SlotFunct, funct)}
	for _, z := range zeros {
		fs = append(fs, zero(z))
	}
	return newDef(op, FormatR, ps, ss, fs...)
}

func rrr(op Op, funct uint32) *Definition {
	return special(op, funct, params(pR, pR, pR), slots(SlotRd, SlotRs, SlotRt), SlotShamt)
}

func shift(op Op, funct uint32) *Definition {
	return special(op, funct, params(pR, pR, pU5), slots(SlotRd, SlotRt, SlotShamt), SlotRs)
}

func shiftv(op Op, funct uint32) *Definition {
	return special(op, funct, params(pR, pR, pR), slots(SlotRd, SlotRt, SlotRs), SlotShamt)
}

func hilo(op Op, funct uint32) *Definition {
	return special(op, funct, params(pR, pR), slots(SlotRs, SlotRt), SlotRd, SlotShamt)
}

func regimm(op Op, sub uint32) *Definition {
	return branch(false, newDef(op, FormatRI, params(pR, pS16), slots(SlotRs, SlotImm16),
		is(SlotOpcode, opcodeRegimm), is(SlotRt, sub)))
}

func itype(op Op, opcode uint32, ps []ParamType, ss []Slot, zeros ...Slot) *Definition {
	fs := []fixed{is(SlotOpcode, opcode)}
	for _, z := range zeros {
		fs = append(fs, zero(z))
	}
	return newDef(op, FormatI16, ps, ss, fs...)
}

func arithI(op Op, opcode uint32, imm ParamType) *Definition {
	return itype(op, opcode, params(pR, pR, imm), slots(SlotRt, SlotRs, SlotImm16))
}

func loadStore(op Op, opcode uint32, a MemAccess, reg ParamType) *Definition {
	return access(a, itype(op, opcode, params(reg, pS16, pR), slots(SlotRt, SlotImm16, SlotRs)))
}

func fpu(op Op, fmtCode, funct uint32, t ParamType, alu ALUType, ss []Slot, zeros ...Slot) *Definition {
	fs := []fixed{is(SlotOpcode, opcodeCOP1), is(slotFmt, fmtCode), is(SlotFunct, funct)}
	for _, z := range zeros {
		fs = append(fs, zero(z))
	}
	ps := make([]ParamType, len(ss))
	for i := range ps {
		ps[i] = t
	}
	return onALU(alu, newDef(op, FormatRFPU, ps, ss, fs...))
}

func fpu3(op Op, fmtCode, funct uint32, t ParamType, alu ALUType) *Definition {
	return fpu(op, fmtCode, funct, t, alu, slots(slotFd, slotFs, slotFt))
}

func fpu2(op Op, fmtCode, funct uint32, t ParamType) *Definition {
	return fpu(op, fmtCode, funct, t, ALUFloatAddition, slots(slotFd, slotFs), slotFt)
}

func compare(op Op, fmtCode uint32, t ParamType, c FPCondition) *Definition {
	d := newDef(op, FormatRFPU, params(pU3, t, t), slots(SlotCCCompare, slotFs, slotFt),
		is(SlotOpcode, opcodeCOP1), is(slotFmt, fmtCode), zero(slotCCPad),
		is(SlotFunct, 0x30|uint32(c.Code())))
	suffix := ".s"
	if fmtCode == fmtD {
		suffix = ".d"
	}
	d.Mnemonic = "c." + c.Mnemonic() + suffix
	d.Condition = c
	return onALU(ALUFloatAddition, d)
}

func branchFPU(op Op, tf uint32) *Definition {
	return branch(false, newDef(op, FormatIFPU, params(pU3, pS16), slots(SlotCCBranch, SlotImm16),
		is(SlotOpcode, opcodeCOP1), is(slotFmt, cop1BC), is(slotNDTF, tf)))
}

func moveFPU(op Op, sub uint32) *Definition {
	return newDef(op, FormatRIFPU, params(pR, pF), slots(SlotRt, slotFs),
		is(SlotOpcode, opcodeCOP1), is(slotFmt, sub), zero(SlotLow11))
}

func multiplyAdd(op Op, funct uint32, t ParamType) *Definition {
	return onALU(ALUFloatMultiplication,
		newDef(op, FormatR4FPU, params(t, t, t, t), slots(slotFd, SlotRs, slotFs, slotFt),
			is(SlotOpcode, opcodeCOP1X), is(SlotFunct, funct)))
}

// DefaultDefinitions returns the built-in catalog.
func DefaultDefinitions() []*Definition {
	defs := []*Definition{
		rrr(OpADD, 0x20),
		rrr(OpADDU, 0x21),
		rrr(OpSUB, 0x22),
		rrr(OpSUBU, 0x23),
		rrr(OpAND, 0x24),
		rrr(OpOR, 0x25),
		rrr(OpXOR, 0x26),
		rrr(OpNOR, 0x27),
		rrr(OpSLT, 0x2A),
		rrr(OpSLTU, 0x2B),
		shift(OpSLL, 0x00),
		shift(OpSRL, 0x02),
		shift(OpSRA, 0x03),
		shiftv(OpSLLV, 0x04),
		shiftv(OpSRLV, 0x06),
		shiftv(OpSRAV, 0x07),
		branch(false, special(OpJR, 0x08, params(pR), slots(SlotRs), SlotRt, SlotRd)),
		branch(false, special(OpJALR, 0x09, params(pR, pR), slots(SlotRd, SlotRs), SlotRt)),
		newDef(OpSYSCALL, FormatR, nil, nil, is(SlotOpcode, opcodeSpecial), is(SlotFunct, 0x0C)),
		special(OpMFHI, 0x10, params(pR), slots(SlotRd), SlotRs, SlotRt, SlotShamt),
		special(OpMTHI, 0x11, params(pR), slots(SlotRs), SlotRt, SlotRd, SlotShamt),
		special(OpMFLO, 0x12, params(pR), slots(SlotRd), SlotRs, SlotRt, SlotShamt),
		special(OpMTLO, 0x13, params(pR), slots(SlotRs), SlotRt, SlotRd, SlotShamt),
		hilo(OpMULT, 0x18),
		hilo(OpMULTU, 0x19),
		hilo(OpDIV, 0x1A),
		hilo(OpDIVU, 0x1B),

		special2(OpMADD, 0x00, params(pR, pR), slots(SlotRs, SlotRt), SlotRd, SlotShamt),
		special2(OpMADDU, 0x01, params(pR, pR), slots(SlotRs, SlotRt), SlotRd, SlotShamt),
		special2(OpMUL, 0x02, params(pR, pR, pR), slots(SlotRd, SlotRs, SlotRt), SlotShamt),

		regimm(OpBLTZ, 0x00),
		regimm(OpBGEZ, 0x01),
		regimm(OpBLTZAL, 0x10),
		regimm(OpBGEZAL, 0x11),

		branch(false, itype(OpBEQ, opcodeBEQ, params(pR, pR, pS16), slots(SlotRs, SlotRt, SlotImm16))),
		branch(false, itype(OpBNE, opcodeBNE, params(pR, pR, pS16), slots(SlotRs, SlotRt, SlotImm16))),
		branch(false, itype(OpBLEZ, opcodeBLEZ, params(pR, pS16), slots(SlotRs, SlotImm16), SlotRt)),
		branch(false, itype(OpBGTZ, opcodeBGTZ, params(pR, pS16), slots(SlotRs, SlotImm16), SlotRt)),
		arithI(OpADDI, opcodeADDI, pS16),
		arithI(OpADDIU, opcodeADDIU, pS16),
		arithI(OpSLTI, opcodeSLTI, pS16),
		arithI(OpSLTIU, opcodeSLTIU, pS16),
		arithI(OpANDI, opcodeANDI, pU16),
		arithI(OpORI, opcodeORI, pU16),
		arithI(OpXORI, opcodeXORI, pU16),
		itype(OpLUI, opcodeLUI, params(pR, pU16), slots(SlotRt, SlotImm16), SlotRs),
		loadStore(OpLB, opcodeLB, MemLoad, pR),
		loadStore(OpLBU, opcodeLBU, MemLoad, pR),
		loadStore(OpLH, opcodeLH, MemLoad, pR),
		loadStore(OpLHU, opcodeLHU, MemLoad, pR),
		loadStore(OpLW, opcodeLW, MemLoad, pR),
		loadStore(OpSB, opcodeSB, MemStore, pR),
		loadStore(OpSH, opcodeSH, MemStore, pR),
		loadStore(OpSW, opcodeSW, MemStore, pR),
		loadStore(OpLWC1, opcodeLWC1, MemLoad, pF),
		loadStore(OpSWC1, opcodeSWC1, MemStore, pF),

		branch(true, newDef(OpJ, FormatI26, params(pT26), slots(SlotTarget), is(SlotOpcode, opcodeJ))),
		branch(true, newDef(OpJAL, FormatI26, params(pT26), slots(SlotTarget), is(SlotOpcode, opcodeJAL))),

		fpu3(OpADDS, fmtS, 0x00, pF, ALUFloatAddition),
		fpu3(OpADDD, fmtD, 0x00, pD, ALUFloatAddition),
		fpu3(OpSUBS, fmtS, 0x01, pF, ALUFloatAddition),
		fpu3(OpSUBD, fmtD, 0x01, pD, ALUFloatAddition),
		fpu3(OpMULS, fmtS, 0x02, pF, ALUFloatMultiplication),
		fpu3(OpMULD, fmtD, 0x02, pD, ALUFloatMultiplication),
		fpu3(OpDIVS, fmtS, 0x03, pF, ALUFloatDivision),
		fpu3(OpDIVD, fmtD, 0x03, pD, ALUFloatDivision),
		fpu2(OpMOVS, fmtS, 0x06, pF),
		fpu2(OpMOVD, fmtD, 0x06, pD),
		fpu2(OpNEGS, fmtS, 0x07, pF),
		fpu2(OpNEGD, fmtD, 0x07, pD),
		branchFPU(OpBC1F, 0),
		branchFPU(OpBC1T, 1),
		moveFPU(OpMFC1, cop1MFC1),
		moveFPU(OpMTC1, cop1MTC1),

		multiplyAdd(OpMADDS, 0x20, pF),
		multiplyAdd(OpMADDD, 0x21, pD),
	}

	for _, c := range Conditions() {
		defs = append(defs, compare(OpCCONDS, fmtS, pF, c), compare(OpCCONDD, fmtD, pD, c))
	}
	return defs
}

// NewDefaultSet builds a registry holding the built-in catalog and the
// standard pseudo-instructions.
func NewDefaultSet() *Set {
	s := NewSet()
	s.MustRegister(DefaultDefinitions()...)
	for _, p := range DefaultPseudos() {
		if err := s.RegisterPseudo(p); err != nil {
			panic(err)
		}
	}
	return s
}
