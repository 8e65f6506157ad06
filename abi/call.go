package abi

import (
	"errors"
	"fmt"
)

// ErrCarry matches every call the OS rejected by setting the carry flag.
var ErrCarry = errors.New("carry flag set")

// CallError reports a rejected call. Output registers are not exposed because the
// OS leaves them unspecified on failure.
type CallError struct {
	Vector Vector
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Vector, ErrCarry)
}

func (e *CallError) Is(target error) bool {
	return target == ErrCarry
}

// Call is one interrupt request. The set of calls is closed: Return, Find, Create,
// Write and Teletype.
type Call interface {
	Vector() Vector
	load(r *Regs)
	fallible() bool
}

// Result holds outputs of a successful call.
type Result struct {
	Handle Handle
}

// Return gives control back to the OS.
type Return struct{}

func (Return) Vector() Vector { return VectorReturn }
func (Return) load(*Regs)     {}
func (Return) fallible() bool { return false }

// Find locates the file named by the string at Path and loads its block into Buffer.
type Find struct {
	Path   Ptr
	Buffer Ptr
}

func (Find) Vector() Vector { return VectorFind }
func (c Find) load(r *Regs) {
	r.DI = uint16(c.Path)
	r.BX = uint16(c.Buffer)
}
func (Find) fallible() bool { return true }

// Create allocates a disk slot for the file named at Path; Buffer receives the new
// record header.
type Create struct {
	Path   Ptr
	Buffer Ptr
}

func (Create) Vector() Vector { return VectorCreate }
func (c Create) load(r *Regs) {
	r.DI = uint16(c.Path)
	r.BX = uint16(c.Buffer)
}
func (Create) fallible() bool { return true }

// Write persists the block at Buffer into the slot identified by Handle.
type Write struct {
	Buffer Ptr
	Handle Handle
}

func (Write) Vector() Vector { return VectorWrite }
func (c Write) load(r *Regs) {
	r.BX = uint16(c.Buffer)
	r.SetDL(uint8(c.Handle))
}
func (Write) fallible() bool { return true }

// Teletype prints one character through the BIOS video service.
type Teletype struct {
	Char byte
}

func (Teletype) Vector() Vector { return VectorVideo }
func (c Teletype) load(r *Regs) {
	r.SetAH(TeletypeFunc)
	r.SetAL(c.Char)
}
func (Teletype) fallible() bool { return false }

// Syscall loads the registers for c, raises the interrupt and checks the carry
// flag before reading any output.
func Syscall(inv Invoker, c Call) (Result, error) {
	var r Regs
	c.load(&r)
	inv.Invoke(c.Vector(), &r)

	if c.fallible() && r.Carry() {
		return Result{}, &CallError{Vector: c.Vector()}
	}

	switch c.(type) {
	case Find, Create:
		return Result{Handle: Handle(r.AL())}, nil
	}
	return Result{}, nil
}
