package insts

// Format represents an instruction encoding format family.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // op | rs | rt | rd | shamt | funct
	FormatI16            // op | rs | rt | imm16
	FormatI26            // op | target26
	FormatRI             // REGIMM: op | rs | sub | imm16
	FormatRFPU           // COP1 arithmetic: op | fmt | ft | fs | fd | funct
	FormatIFPU           // COP1 branch: op | sub | cc:nd:tf | imm16
	FormatRIFPU          // COP1 moves: op | sub | rt | fs | 0
	FormatR4FPU          // COP1X: op | fr | ft | fs | fd | op4:fmt3
)

var formatNames = [...]string{
	FormatUnknown: "unknown",
	FormatR:       "R",
	FormatI16:     "I16",
	FormatI26:     "I26",
	FormatRI:      "RI",
	FormatRFPU:    "RFPU",
	FormatIFPU:    "IFPU",
	FormatRIFPU:   "RIFPU",
	FormatR4FPU:   "R4FPU",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// Slot is a bit range inside an instruction word.
type Slot struct {
	Shift uint8
	Width uint8
}

// Mask returns the unshifted mask for the slot width.
func (s Slot) Mask() uint32 {
	return uint32(1)<<s.Width - 1
}

// Extract returns the slot value from word.
func (s Slot) Extract(word uint32) uint32 {
	return (word >> s.Shift) & s.Mask()
}

// Insert returns word with the slot replaced by value. Bits of value wider
// than the slot are dropped.
func (s Slot) Insert(word, value uint32) uint32 {
	return word&^(s.Mask()<<s.Shift) | (value&s.Mask())<<s.Shift
}

// Field positions shared by the format families.
var (
	SlotOpcode = Slot{Shift: 26, Width: 6} // bits [31:26]
	SlotRs     = Slot{Shift: 21, Width: 5} // bits [25:21], also fmt / fr / sub
	SlotRt     = Slot{Shift: 16, Width: 5} // bits [20:16], also ft
	SlotRd     = Slot{Shift: 11, Width: 5} // bits [15:11], also fs
	SlotShamt  = Slot{Shift: 6, Width: 5}  // bits [10:6], also fd
	SlotFunct  = Slot{Shift: 0, Width: 6}  // bits [5:0]
	SlotImm16  = Slot{Shift: 0, Width: 16} // bits [15:0]
	SlotTarget = Slot{Shift: 0, Width: 26} // bits [25:0]
	SlotLow11  = Slot{Shift: 0, Width: 11} // bits [10:0]

	// SlotCCCompare holds the condition code of c.cond.fmt (bits [10:8]).
	SlotCCCompare = Slot{Shift: 8, Width: 3}
	// SlotCCBranch holds the condition code of bc1f / bc1t (bits [20:18]).
	SlotCCBranch = Slot{Shift: 18, Width: 3}
	// SlotCondition holds the predicate of c.cond.fmt (bits [3:0]).
	SlotCondition = Slot{Shift: 0, Width: 4}
)

// Fields is a decoded field set of one format family.
type Fields interface {
	Format() Format
	Encode() uint32
}

// RFields is the R-type layout.
type RFields struct {
	Opcode, Rs, Rt, Rd, Shamt, Funct uint8
}

// Format returns FormatR.
func (RFields) Format() Format { return FormatR }

// Encode packs the fields into a word.
func (f RFields) Encode() uint32 {
	var w uint32
	w = SlotOpcode.Insert(w, uint32(f.Opcode))
	w = SlotRs.Insert(w, uint32(f.Rs))
	w = SlotRt.Insert(w, uint32(f.Rt))
	w = SlotRd.Insert(w, uint32(f.Rd))
	w = SlotShamt.Insert(w, uint32(f.Shamt))
	return SlotFunct.Insert(w, uint32(f.Funct))
}

// DecodeR unpacks an R-type word.
func DecodeR(word uint32) RFields {
	return RFields{
		Opcode: uint8(SlotOpcode.Extract(word)),
		Rs:     uint8(SlotRs.Extract(word)),
		Rt:     uint8(SlotRt.Extract(word)),
		Rd:     uint8(SlotRd.Extract(word)),
		Shamt:  uint8(SlotShamt.Extract(word)),
		Funct:  uint8(SlotFunct.Extract(word)),
	}
}

// I16Fields is the 16-bit immediate layout.
type I16Fields struct {
	Opcode, Rs, Rt uint8
	Imm            uint16
}

// Format returns FormatI16.
func (I16Fields) Format() Format { return FormatI16 }

// Encode packs the fields into a word.
func (f I16Fields) Encode() uint32 {
	var w uint32
	w = SlotOpcode.Insert(w, uint32(f.Opcode))
	w = SlotRs.Insert(w, uint32(f.Rs))
	w = SlotRt.Insert(w, uint32(f.Rt))
	return SlotImm16.Insert(w, uint32(f.Imm))
}

// DecodeI16 unpacks a 16-bit immediate word.
func DecodeI16(word uint32) I16Fields {
	return I16Fields{
		Opcode: uint8(SlotOpcode.Extract(word)),
		Rs:     uint8(SlotRs.Extract(word)),
		Rt:     uint8(SlotRt.Extract(word)),
		Imm:    uint16(SlotImm16.Extract(word)),
	}
}

// I26Fields is the jump layout.
type I26Fields struct {
	Opcode uint8
	Target uint32
}

// Format returns FormatI26.
func (I26Fields) Format() Format { return FormatI26 }

// Encode packs the fields into a word.
func (f I26Fields) Encode() uint32 {
	w := SlotOpcode.Insert(0, uint32(f.Opcode))
	return SlotTarget.Insert(w, f.Target)
}

// DecodeI26 unpacks a jump word.
func DecodeI26(word uint32) I26Fields {
	return I26Fields{
		Opcode: uint8(SlotOpcode.Extract(word)),
		Target: SlotTarget.Extract(word),
	}
}

// RIFields is the REGIMM layout. Sub occupies the rt position.
type RIFields struct {
	Opcode, Rs, Sub uint8
	Imm             uint16
}

// Format returns FormatRI.
func (RIFields) Format() Format { return FormatRI }

// Encode packs the fields into a word.
func (f RIFields) Encode() uint32 {
	return I16Fields{Opcode: f.Opcode, Rs: f.Rs, Rt: f.Sub, Imm: f.Imm}.Encode()
}

// DecodeRI unpacks a REGIMM word.
func DecodeRI(word uint32) RIFields {
	f := DecodeI16(word)
	return RIFields{Opcode: f.Opcode, Rs: f.Rs, Sub: f.Rt, Imm: f.Imm}
}

// RFPUFields is the COP1 arithmetic layout.
type RFPUFields struct {
	Opcode, Fmt, Ft, Fs, Fd, Funct uint8
}

// Format returns FormatRFPU.
func (RFPUFields) Format() Format { return FormatRFPU }

// Encode packs the fields into a word.
func (f RFPUFields) Encode() uint32 {
	return RFields{Opcode: f.Opcode, Rs: f.Fmt, Rt: f.Ft, Rd: f.Fs, Shamt: f.Fd, Funct: f.Funct}.Encode()
}

// DecodeRFPU unpacks a COP1 arithmetic word.
func DecodeRFPU(word uint32) RFPUFields {
	f := DecodeR(word)
	return RFPUFields{Opcode: f.Opcode, Fmt: f.Rs, Ft: f.Rt, Fs: f.Rd, Fd: f.Shamt, Funct: f.Funct}
}

// IFPUFields is the COP1 branch layout. Rt carries cc (3 bits), nd and tf.
type IFPUFields struct {
	Opcode, Sub, Rt uint8
	Imm             uint16
}

// Format returns FormatIFPU.
func (IFPUFields) Format() Format { return FormatIFPU }

// Encode packs the fields into a word.
func (f IFPUFields) Encode() uint32 {
	return I16Fields{Opcode: f.Opcode, Rs: f.Sub, Rt: f.Rt, Imm: f.Imm}.Encode()
}

// DecodeIFPU unpacks a COP1 branch word.
func DecodeIFPU(word uint32) IFPUFields {
	f := DecodeI16(word)
	return IFPUFields{Opcode: f.Opcode, Sub: f.Rs, Rt: f.Rt, Imm: f.Imm}
}

// RIFPUFields is the COP1 move layout (mfc1, mtc1).
type RIFPUFields struct {
	Opcode, Sub, Rt, Fs uint8
	Low                 uint16 // bits [10:0], zero for valid encodings
}

// Format returns FormatRIFPU.
func (RIFPUFields) Format() Format { return FormatRIFPU }

// Encode packs the fields into a word.
func (f RIFPUFields) Encode() uint32 {
	var w uint32
	w = SlotOpcode.Insert(w, uint32(f.Opcode))
	w = SlotRs.Insert(w, uint32(f.Sub))
	w = SlotRt.Insert(w, uint32(f.Rt))
	w = SlotRd.Insert(w, uint32(f.Fs))
	return SlotLow11.Insert(w, uint32(f.Low))
}

// DecodeRIFPU unpacks a COP1 move word.
func DecodeRIFPU(word uint32) RIFPUFields {
	return RIFPUFields{
		Opcode: uint8(SlotOpcode.Extract(word)),
		Sub:    uint8(SlotRs.Extract(word)),
		Rt:     uint8(SlotRt.Extract(word)),
		Fs:     uint8(SlotRd.Extract(word)),
		Low:    uint16(SlotLow11.Extract(word)),
	}
}

// R4FPUFields is the COP1X multiply-add layout. Funct holds op4 (bits [5:3])
// and fmt3 (bits [2:0]).
type R4FPUFields struct {
	Opcode, Fr, Ft, Fs, Fd, Funct uint8
}

// Format returns FormatR4FPU.
func (R4FPUFields) Format() Format { return FormatR4FPU }

// Encode packs the fields into a word.
func (f R4FPUFields) Encode() uint32 {
	return RFields{Opcode: f.Opcode, Rs: f.Fr, Rt: f.Ft, Rd: f.Fs, Shamt: f.Fd, Funct: f.Funct}.Encode()
}

// DecodeR4FPU unpacks a COP1X word.
func DecodeR4FPU(word uint32) R4FPUFields {
	f := DecodeR(word)
	return R4FPUFields{Opcode: f.Opcode, Fr: f.Rs, Ft: f.Rt, Fs: f.Rd, Fd: f.Shamt, Funct: f.Funct}
}

// Decode unpacks word using the layout of format. It returns nil for
// FormatUnknown.
func Decode(format Format, word uint32) Fields {
	switch format {
	case FormatR:
		return DecodeR(word)
	case FormatI16:
		return DecodeI16(word)
	case FormatI26:
		return DecodeI26(word)
	case FormatRI:
		return DecodeRI(word)
	case FormatRFPU:
		return DecodeRFPU(word)
	case FormatIFPU:
		return DecodeIFPU(word)
	case FormatRIFPU:
		return DecodeRIFPU(word)
	case FormatR4FPU:
		return DecodeR4FPU(word)
	default:
		return nil
	}
}

// Opcode returns the primary opcode (bits [31:26]) of word.
func Opcode(word uint32) uint8 {
	return uint8(SlotOpcode.Extract(word))
}

// SignExtend16 sign-extends a 16-bit immediate.
func SignExtend16(imm uint16) int32 {
	return int32(int16(imm))
}
