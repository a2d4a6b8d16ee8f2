package emu

import "encoding/binary"

// DataPort is the data memory seen by loads, stores and syscalls. Multi-byte
// accesses are little-endian.
type DataPort interface {
	Read8(addr uint32) uint8
	Read16(addr uint32) uint16
	Read32(addr uint32) uint32
	Write8(addr uint32, v uint8)
	Write16(addr uint32, v uint16)
	Write32(addr uint32, v uint32)
}

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// Memory is a sparse 4 GiB byte-addressable memory. Unwritten bytes read as
// zero.
type Memory struct {
	pages map[uint32]*[pageSize]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint32]*[pageSize]byte)}
}

func (m *Memory) page(addr uint32, create bool) *[pageSize]byte {
	key := addr >> pageBits
	p, ok := m.pages[key]
	if !ok && create {
		p = new([pageSize]byte)
		m.pages[key] = p
	}
	return p
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint32) uint8 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&pageMask]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint32, v uint8) {
	m.page(addr, true)[addr&pageMask] = v
}

// Read16 reads a halfword.
func (m *Memory) Read16(addr uint32) uint16 {
	var buf [2]byte
	m.ReadBytes(addr, buf[:])
	return binary.LittleEndian.Uint16(buf[:])
}

// Write16 writes a halfword.
func (m *Memory) Write16(addr uint32, v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	m.WriteBytes(addr, buf[:])
}

// Read32 reads a word.
func (m *Memory) Read32(addr uint32) uint32 {
	var buf [4]byte
	m.ReadBytes(addr, buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// Write32 writes a word.
func (m *Memory) Write32(addr uint32, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	m.WriteBytes(addr, buf[:])
}

// ReadBytes fills buf starting at addr.
func (m *Memory) ReadBytes(addr uint32, buf []byte) {
	for i := range buf {
		buf[i] = m.Read8(addr + uint32(i))
	}
}

// WriteBytes copies data starting at addr.
func (m *Memory) WriteBytes(addr uint32, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint32(i), b)
	}
}

// LoadWords stores words consecutively starting at addr.
func (m *Memory) LoadWords(addr uint32, words []uint32) {
	for i, w := range words {
		m.Write32(addr+uint32(4*i), w)
	}
}

// ReadString reads a NUL-terminated string of at most limit bytes.
func ReadString(port DataPort, addr uint32, limit int) string {
	buf := make([]byte, 0, 32)
	for i := 0; i < limit; i++ {
		b := port.Read8(addr + uint32(i))
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf)
}
