package emu

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Syscall service numbers, passed in $v0.
const (
	SyscallPrintInt      uint32 = 1
	SyscallPrintString   uint32 = 4
	SyscallAllocate      uint32 = 9
	SyscallExit          uint32 = 10
	SyscallPrintChar     uint32 = 11
	SyscallOpenFile      uint32 = 13
	SyscallReadFile      uint32 = 14
	SyscallWriteFile     uint32 = 15
	SyscallCloseFile     uint32 = 16
	SyscallExitValue     uint32 = 17
	SyscallPrintHex      uint32 = 34
	SyscallPrintUnsigned uint32 = 36
)

// maxStringLen bounds print-string reads of unterminated memory.
const maxStringLen = 1 << 16

// DefaultHeapBase is where the allocate service starts handing out memory.
const DefaultHeapBase uint32 = 0x10040000

// failed is the $v0 value of a file service that did not succeed.
const failed = ^uint32(0)

// Syscall is one service request: the code from $v0 and the arguments from
// $a0-$a2.
type Syscall struct {
	Code uint32
	Args [3]uint32
}

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int32

	// Returns is true if Value must be written to $v0.
	Returns bool
	Value   uint32
}

func returns(v uint32) SyscallResult { return SyscallResult{Returns: true, Value: v} }

// SyscallHandler services syscalls. It runs in the memory phase, after all
// earlier instructions have produced their values.
type SyscallHandler interface {
	Handle(call Syscall, data DataPort) (SyscallResult, error)
}

// DefaultSyscallHandler provides the console, heap, file and exit
// services. Writes to descriptors 1 and 2 go to stdout.
type DefaultSyscallHandler struct {
	stdout io.Writer
	files  *FDTable
	heap   uint32
}

// NewDefaultSyscallHandler creates a handler printing to stdout. Files open
// relative to the process working directory.
func NewDefaultSyscallHandler(stdout io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		stdout: stdout,
		files:  NewFDTable(""),
		heap:   DefaultHeapBase,
	}
}

// Files returns the handler's descriptor table.
func (h *DefaultSyscallHandler) Files() *FDTable { return h.files }

// SetWorkingDir resolves relative file names against dir from now on.
func (h *DefaultSyscallHandler) SetWorkingDir(dir string) { h.files.dir = dir }

// Close closes every file the program left open.
func (h *DefaultSyscallHandler) Close() error { return h.files.CloseAll() }

// Handle executes call.
func (h *DefaultSyscallHandler) Handle(call Syscall, data DataPort) (SyscallResult, error) {
	a0 := call.Args[0]

	var err error
	switch call.Code {
	case SyscallPrintInt:
		_, err = fmt.Fprintf(h.stdout, "%d", int32(a0))
	case SyscallPrintString:
		_, err = io.WriteString(h.stdout, ReadString(data, a0, maxStringLen))
	case SyscallPrintChar:
		_, err = h.stdout.Write([]byte{byte(a0)})
	case SyscallPrintHex:
		_, err = fmt.Fprintf(h.stdout, "0x%08x", a0)
	case SyscallPrintUnsigned:
		_, err = fmt.Fprintf(h.stdout, "%d", a0)
	case SyscallAllocate:
		return h.allocate(a0), nil
	case SyscallOpenFile:
		fd, err := h.files.Open(ReadString(data, a0, maxStringLen), call.Args[1])
		if err != nil {
			return returns(failed), nil
		}
		return returns(fd), nil
	case SyscallReadFile:
		return h.readFile(call, data), nil
	case SyscallWriteFile:
		return h.writeFile(call, data), nil
	case SyscallCloseFile:
		_ = h.files.Close(a0)
		return SyscallResult{}, nil
	case SyscallExit:
		return SyscallResult{Exited: true}, nil
	case SyscallExitValue:
		return SyscallResult{Exited: true, ExitCode: int32(a0)}, nil
	default:
		return SyscallResult{}, NewInterrupt(CauseSyscall, "unknown syscall service %d", call.Code)
	}

	if err != nil {
		return SyscallResult{}, errors.Wrapf(err, "syscall %d", call.Code)
	}
	return SyscallResult{}, nil
}

// allocate hands out n bytes of heap, rounded up to a word, and returns the
// old break.
func (h *DefaultSyscallHandler) allocate(n uint32) SyscallResult {
	addr := h.heap
	h.heap += (n + 3) &^ 3
	return returns(addr)
}

// readFile reads up to $a2 bytes from descriptor $a0 into memory at $a1.
// $v0 is the byte count, 0 at end of file or -1 on error.
func (h *DefaultSyscallHandler) readFile(call Syscall, data DataPort) SyscallResult {
	fd, addr, n := call.Args[0], call.Args[1], call.Args[2]

	buf := make([]byte, n)
	read, err := h.files.Read(fd, buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return returns(failed)
	}
	for i := 0; i < read; i++ {
		data.Write8(addr+uint32(i), buf[i])
	}
	return returns(uint32(read))
}

// writeFile writes $a2 bytes from memory at $a1 to descriptor $a0.
func (h *DefaultSyscallHandler) writeFile(call Syscall, data DataPort) SyscallResult {
	fd, addr, n := call.Args[0], call.Args[1], call.Args[2]

	buf := make([]byte, n)
	for i := range buf {
		buf[i] = data.Read8(addr + uint32(i))
	}

	var (
		written int
		err     error
	)
	switch fd {
	case 1, 2:
		written, err = h.stdout.Write(buf)
	default:
		written, err = h.files.Write(fd, buf)
	}
	if err != nil {
		return returns(failed)
	}
	return returns(uint32(written))
}
