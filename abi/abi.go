// Package abi is the boundary between program code and the OS interrupt handlers.
//
// Vector numbers, register roles and the carry-flag failure convention are binary
// contract with the OS. Nothing outside this package loads registers or raises an
// interrupt, so a future OS revision only has to change this package.
package abi

import (
	"fmt"

	"github.com/drumato/osle-sdk/memory"
)

// Vector is an interrupt number raised with INT.
type Vector uint8

const (
	// VectorVideo is the BIOS video service used for teletype output.
	VectorVideo Vector = 0x10

	VectorReturn Vector = 0x20
	VectorFind   Vector = 0x21
	VectorCreate Vector = 0x22
	VectorWrite  Vector = 0x23
)

// TeletypeFunc selects teletype output in AH for VectorVideo.
const TeletypeFunc = 0x0E

var vectorNames = map[Vector]string{
	VectorVideo:  "video",
	VectorReturn: "return",
	VectorFind:   "fs_find",
	VectorCreate: "fs_create",
	VectorWrite:  "fs_write",
}

func (v Vector) String() string {
	if name, ok := vectorNames[v]; ok {
		return fmt.Sprintf("%s(0x%02X)", name, uint8(v))
	}
	return fmt.Sprintf("int(0x%02X)", uint8(v))
}

// FlagCarry is the failure flag in Regs.Flags.
const FlagCarry uint16 = 1 << 0

// Regs is the register file seen across an interrupt.
type Regs struct {
	AX, BX, CX, DX uint16
	SI, DI         uint16
	Flags          uint16
}

func (r *Regs) AL() uint8 { return uint8(r.AX) }
func (r *Regs) AH() uint8 { return uint8(r.AX >> 8) }
func (r *Regs) DL() uint8 { return uint8(r.DX) }

func (r *Regs) SetAL(v uint8) { r.AX = r.AX&0xFF00 | uint16(v) }
func (r *Regs) SetAH(v uint8) { r.AX = r.AX&0x00FF | uint16(v)<<8 }
func (r *Regs) SetDL(v uint8) { r.DX = r.DX&0xFF00 | uint16(v) }

func (r *Regs) Carry() bool {
	return r.Flags&FlagCarry != 0
}

func (r *Regs) SetCarry(c bool) {
	if c {
		r.Flags |= FlagCarry
	} else {
		r.Flags &^= FlagCarry
	}
}

// Invoker raises a software interrupt. Implementations run the handler for v
// synchronously and leave outputs in r. A handler for VectorReturn never returns.
type Invoker interface {
	Invoke(v Vector, r *Regs)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(v Vector, r *Regs)

func (f InvokerFunc) Invoke(v Vector, r *Regs) { f(v, r) }

// Handle identifies a slot in the OS file table.
type Handle uint8

// Ptr re-exports the segment offset type used for buffer arguments.
type Ptr = memory.Ptr
