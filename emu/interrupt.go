package emu

import (
	"fmt"

	"github.com/pkg/errors"
)

// Cause is an architectural exception cause.
type Cause uint8

// Exception causes.
const (
	CauseNone Cause = iota
	CauseArithmeticOverflow
	CauseFloatingPoint
	CauseAddressErrorLoad
	CauseAddressErrorStore
	CauseReservedInstruction
	CauseSyscall
)

var causeNames = [...]string{
	CauseNone:                "NONE",
	CauseArithmeticOverflow:  "ARITHMETIC_OVERFLOW_EXCEPTION",
	CauseFloatingPoint:       "FLOATING_POINT_EXCEPTION",
	CauseAddressErrorLoad:    "ADDRESS_ERROR_LOAD",
	CauseAddressErrorStore:   "ADDRESS_ERROR_STORE",
	CauseReservedInstruction: "RESERVED_INSTRUCTION_EXCEPTION",
	CauseSyscall:             "SYSCALL_EXCEPTION",
}

func (c Cause) String() string {
	if int(c) < len(causeNames) {
		return causeNames[c]
	}
	return fmt.Sprintf("CAUSE_%d", uint8(c))
}

// Interrupt is an architectural exception raised by an instruction. The
// instruction's register writes never land once it is raised.
type Interrupt struct {
	Cause Cause
	// Addr is the address of the faulting instruction.
	Addr uint32
	// Value carries cause-specific data such as a bad address.
	Value uint32
	Msg   string
}

// NewInterrupt creates an interrupt with a formatted message. The faulting
// address is filled in by the strategy that raised it.
func NewInterrupt(cause Cause, format string, args ...any) *Interrupt {
	return &Interrupt{Cause: cause, Msg: fmt.Sprintf(format, args...)}
}

func (i *Interrupt) Error() string {
	if i.Msg == "" {
		return fmt.Sprintf("%s at 0x%08x", i.Cause, i.Addr)
	}
	return fmt.Sprintf("%s at 0x%08x: %s", i.Cause, i.Addr, i.Msg)
}

// AsInterrupt extracts an Interrupt from err.
func AsInterrupt(err error) (*Interrupt, bool) {
	var intr *Interrupt
	if errors.As(err, &intr) {
		return intr, true
	}
	return nil, false
}

// Action is a host's answer to an interrupt.
type Action uint8

// Actions.
const (
	// Halt stops the simulation at the faulting instruction.
	Halt Action = iota
	// Continue resumes at the instruction after the faulting one.
	Continue
)

// InterruptHandler lets the host decide how to proceed after an interrupt.
type InterruptHandler func(intr *Interrupt) Action

// HaltOnInterrupt is the default InterruptHandler.
func HaltOnInterrupt(*Interrupt) Action { return Halt }

// HazardViolationError reports a lock protocol breach. It signals a bug in a
// strategy, not a property of the simulated program.
type HazardViolationError struct {
	Reg    RegID
	Action string
	Owner  Owner
	Holder Owner
}

func (e *HazardViolationError) Error() string {
	if e.Holder == NoOwner {
		return fmt.Sprintf("hazard violation: %s %s by #%d, register not locked", e.Action, e.Reg, e.Owner)
	}
	return fmt.Sprintf("hazard violation: %s %s by #%d, held by #%d", e.Action, e.Reg, e.Owner, e.Holder)
}
