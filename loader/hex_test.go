package loader_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/loader"
)

var _ = Describe("Hex Loader", func() {
	Describe("ParseHex", func() {
		It("should read words with and without prefixes", func() {
			words, err := loader.ParseHex(strings.NewReader(
				"0x2008002A\n" +
					"\n" +
					"  # a comment line\n" +
					"0000000c   # syscall\n" +
					"0XFFFFFFFF\n"))

			Expect(err).NotTo(HaveOccurred())
			Expect(words).To(Equal([]uint32{0x2008002A, 0x0000000C, 0xFFFFFFFF}))
		})

		It("should name the line of a bad word", func() {
			_, err := loader.ParseHex(strings.NewReader("0x2008002A\nzz\n"))
			Expect(err).To(MatchError(ContainSubstring("line 2")))
		})

		It("should reject words wider than 32 bits", func() {
			_, err := loader.ParseHex(strings.NewReader("123456789\n"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("LoadFile", func() {
		It("should load a hex listing at the text base", func() {
			path := filepath.Join(GinkgoT().TempDir(), "prog.hex")
			Expect(os.WriteFile(path, []byte("2008002a\n0000000c\n"), 0644)).To(Succeed())

			prog, err := loader.LoadFile(path)
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.EntryPoint).To(Equal(loader.DefaultTextBase))
			Expect(prog.TextEnd()).To(Equal(loader.DefaultTextBase + 8))

			mem := emu.NewMemory()
			prog.LoadInto(mem)
			Expect(mem.Read32(loader.DefaultTextBase + 4)).To(Equal(uint32(0x0000000C)))
		})

		It("should carry the file name in errors", func() {
			path := filepath.Join(GinkgoT().TempDir(), "bad.hex")
			Expect(os.WriteFile(path, []byte("xyz\n"), 0644)).To(Succeed())

			_, err := loader.LoadFile(path)
			Expect(err).To(MatchError(ContainSubstring("bad.hex")))
		})
	})

	Describe("FromWords", func() {
		It("should build a single executable segment", func() {
			prog := loader.FromWords(0x1000, []uint32{1, 2, 3})

			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].MemSize).To(Equal(uint32(12)))
			Expect(prog.TextEnd()).To(Equal(uint32(0x100C)))
		})
	})
})
