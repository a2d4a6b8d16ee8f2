// Package loader reads MIPS32 programs from ELF executables and hex word
// listings.
package loader

import (
	"debug/elf"
	"io"

	"github.com/pkg/errors"

	"github.com/sarchlab/mipsim/emu"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Conventional MIPS user-space register values.
const (
	DefaultStackTop   uint32 = 0x7FFFEFFC
	DefaultGlobalPtr  uint32 = 0x10008000
	DefaultTextBase   uint32 = 0x00400000
	stackPointerIndex        = 29
	globalPtrIndex           = 28
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// End returns the first address past the segment.
func (s Segment) End() uint32 {
	return s.VirtAddr + s.MemSize
}

// Program represents a loaded program ready for execution.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint32
	// Segments contains all loadable segments.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint32
}

// TextEnd returns the end of the executable segment holding the entry
// point. Fetch stops there.
func (p *Program) TextEnd() uint32 {
	for _, s := range p.Segments {
		if s.Flags&SegmentFlagExecute != 0 && p.EntryPoint >= s.VirtAddr && p.EntryPoint < s.End() {
			return s.End()
		}
	}
	return p.EntryPoint
}

// LoadInto copies every segment into mem, zero-filling the part of each
// segment past its file data.
func (p *Program) LoadInto(mem *emu.Memory) {
	for _, s := range p.Segments {
		mem.WriteBytes(s.VirtAddr, s.Data)
		for a := uint32(len(s.Data)); a < s.MemSize; a++ {
			mem.Write8(s.VirtAddr+a, 0)
		}
	}
}

// Prepare points regs at the entry point and sets up $sp and $gp.
func (p *Program) Prepare(regs *emu.RegFile) {
	regs.SetPC(p.EntryPoint)
	regs.WriteGPR(stackPointerIndex, p.InitialSP)
	regs.WriteGPR(globalPtrIndex, DefaultGlobalPtr)
}

// Load parses a little-endian MIPS32 ELF executable.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ELF file")
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, errors.New("not a 32-bit ELF file")
	}
	if f.Machine != elf.EM_MIPS {
		return nil, errors.Errorf("not a MIPS ELF file (machine type: %v)", f.Machine)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, errors.New("big-endian MIPS ELF files are not supported")
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry),
		InitialSP:  DefaultStackTop,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, errors.Wrapf(err, "failed to read segment at 0x%x", phdr.Vaddr)
			}
			if uint64(n) != phdr.Filesz {
				return nil, errors.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	return prog, nil
}
