package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/emu"
)

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory()
	})

	It("should read zero from untouched memory", func() {
		Expect(memory.Read32(0xDEAD0000)).To(BeZero())
	})

	It("should store words little-endian", func() {
		memory.Write32(0x100, 0x11223344)

		Expect(memory.Read8(0x100)).To(Equal(uint8(0x44)))
		Expect(memory.Read16(0x102)).To(Equal(uint16(0x1122)))
		Expect(memory.Read32(0x100)).To(Equal(uint32(0x11223344)))
	})

	It("should handle accesses across a page boundary", func() {
		memory.Write32(0xFFE, 0xAABBCCDD)
		Expect(memory.Read32(0xFFE)).To(Equal(uint32(0xAABBCCDD)))
	})

	It("should load consecutive words", func() {
		memory.LoadWords(0x400000, []uint32{1, 2, 3})
		Expect(memory.Read32(0x400008)).To(Equal(uint32(3)))
	})
})
