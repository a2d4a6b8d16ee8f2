package emu_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/emu"
)

var _ = Describe("Syscall Handler", func() {
	var (
		memory  *emu.Memory
		stdout  *bytes.Buffer
		handler *emu.DefaultSyscallHandler
	)

	BeforeEach(func() {
		memory = emu.NewMemory()
		stdout = new(bytes.Buffer)
		handler = emu.NewDefaultSyscallHandler(stdout)
	})

	call := func(code uint32, a0 uint32) (emu.SyscallResult, error) {
		return handler.Handle(emu.Syscall{Code: code, Args: [3]uint32{a0}}, memory)
	}

	DescribeTable("console services",
		func(code, a0 uint32, want string) {
			result, err := call(code, a0)

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Exited).To(BeFalse())
			Expect(stdout.String()).To(Equal(want))
		},
		Entry("print int", emu.SyscallPrintInt, uint32(0xFFFFFFFE), "-2"),
		Entry("print char", emu.SyscallPrintChar, uint32('A'), "A"),
		Entry("print hex", emu.SyscallPrintHex, uint32(0xBEEF), "0x0000beef"),
		Entry("print unsigned", emu.SyscallPrintUnsigned, uint32(0xFFFFFFFE), "4294967294"),
	)

	It("should print a NUL-terminated string from memory", func() {
		memory.WriteBytes(0x1000, []byte("hello\x00world"))

		_, err := call(emu.SyscallPrintString, 0x1000)

		Expect(err).ToNot(HaveOccurred())
		Expect(stdout.String()).To(Equal("hello"))
	})

	It("should exit with code zero", func() {
		result, err := call(emu.SyscallExit, 7)

		Expect(err).ToNot(HaveOccurred())
		Expect(result.Exited).To(BeTrue())
		Expect(result.ExitCode).To(BeZero())
	})

	It("should exit with the value in $a0", func() {
		result, err := call(emu.SyscallExitValue, 3)

		Expect(err).ToNot(HaveOccurred())
		Expect(result.Exited).To(BeTrue())
		Expect(result.ExitCode).To(Equal(int32(3)))
	})

	It("should raise a syscall exception for an unknown service", func() {
		_, err := call(999, 0)

		intr, ok := emu.AsInterrupt(err)
		Expect(ok).To(BeTrue())
		Expect(intr.Cause).To(Equal(emu.CauseSyscall))
	})

	It("should hand out word-aligned heap memory", func() {
		first, err := call(emu.SyscallAllocate, 5)
		Expect(err).ToNot(HaveOccurred())
		second, _ := call(emu.SyscallAllocate, 4)

		Expect(first.Returns).To(BeTrue())
		Expect(first.Value).To(Equal(emu.DefaultHeapBase))
		Expect(second.Value).To(Equal(emu.DefaultHeapBase + 8))
	})

	Describe("file services", func() {
		var dir string

		file := func(code uint32, args ...uint32) emu.SyscallResult {
			var a [3]uint32
			copy(a[:], args)
			result, err := handler.Handle(emu.Syscall{Code: code, Args: a}, memory)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Returns || code == emu.SyscallCloseFile).To(BeTrue())
			return result
		}

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
			handler.SetWorkingDir(dir)
			memory.WriteBytes(0x2000, []byte("out.txt\x00"))
		})

		AfterEach(func() {
			Expect(handler.Close()).To(Succeed())
		})

		It("should write a file and read it back", func() {
			memory.WriteBytes(0x3000, []byte("mips"))

			fd := file(emu.SyscallOpenFile, 0x2000, emu.OpenWrite).Value
			Expect(fd).To(Equal(uint32(3)))
			Expect(file(emu.SyscallWriteFile, fd, 0x3000, 4).Value).To(Equal(uint32(4)))
			file(emu.SyscallCloseFile, fd)

			content, err := os.ReadFile(filepath.Join(dir, "out.txt"))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal("mips"))

			fd = file(emu.SyscallOpenFile, 0x2000, emu.OpenRead).Value
			Expect(file(emu.SyscallReadFile, fd, 0x4000, 16).Value).To(Equal(uint32(4)))
			Expect(memory.Read32(0x4000)).To(Equal(uint32(0x7370696D)))
			Expect(file(emu.SyscallReadFile, fd, 0x4000, 16).Value).To(BeZero())
		})

		It("should append", func() {
			Expect(os.WriteFile(filepath.Join(dir, "out.txt"), []byte("ab"), 0o644)).To(Succeed())
			memory.WriteBytes(0x3000, []byte("cd"))

			fd := file(emu.SyscallOpenFile, 0x2000, emu.OpenAppend).Value
			file(emu.SyscallWriteFile, fd, 0x3000, 2)
			file(emu.SyscallCloseFile, fd)

			content, _ := os.ReadFile(filepath.Join(dir, "out.txt"))
			Expect(string(content)).To(Equal("abcd"))
		})

		It("should send descriptor 1 to stdout", func() {
			memory.WriteBytes(0x3000, []byte("hi"))

			Expect(file(emu.SyscallWriteFile, 1, 0x3000, 2).Value).To(Equal(uint32(2)))
			Expect(stdout.String()).To(Equal("hi"))
		})

		It("should return -1 for a missing file or bad flag", func() {
			Expect(file(emu.SyscallOpenFile, 0x2000, emu.OpenRead).Value).To(Equal(^uint32(0)))
			Expect(file(emu.SyscallOpenFile, 0x2000, 5).Value).To(Equal(^uint32(0)))
		})

		It("should refuse to write a file opened for reading", func() {
			Expect(os.WriteFile(filepath.Join(dir, "out.txt"), []byte("x"), 0o644)).To(Succeed())

			fd := file(emu.SyscallOpenFile, 0x2000, emu.OpenRead).Value
			Expect(file(emu.SyscallWriteFile, fd, 0x3000, 1).Value).To(Equal(^uint32(0)))
			Expect(handler.Files().IsOpen(fd)).To(BeTrue())
		})
	})
})
