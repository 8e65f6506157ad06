// Package sdk is what an OSle program links against: output helpers, null-terminated
// string helpers, the file-system calls and the return-to-OS exit.
//
// Every fallible call reports OS rejection as an error matching abi.ErrCarry.
// The file wrappers also reject malformed arguments with ErrContract before any
// interrupt is raised; Raw reaches the unchecked calls.
package sdk

import (
	"errors"
	"fmt"

	"github.com/drumato/osle-sdk/abi"
	"github.com/drumato/osle-sdk/fsblock"
	"github.com/drumato/osle-sdk/memory"
)

// ErrContract marks a call refused locally because its arguments break the ABI contract.
var ErrContract = errors.New("contract violation")

// Program is the helper set available to one running user program.
type Program struct {
	inv abi.Invoker
	seg *memory.Segment
}

// New binds the helpers to an OS invoker and the program's data segment.
func New(inv abi.Invoker, seg *memory.Segment) *Program {
	return &Program{inv: inv, seg: seg}
}

func (p *Program) Segment() *memory.Segment {
	return p.seg
}

// Raw returns the invoker for unchecked calls through abi.Syscall.
func (p *Program) Raw() abi.Invoker {
	return p.inv
}

// Args returns the argument string the OS placed at memory.ArgsOffset.
func (p *Program) Args() string {
	return p.seg.Args()
}

// ReturnToOSle gives control back to the OS. It does not return.
func (p *Program) ReturnToOSle() {
	_, _ = abi.Syscall(p.inv, abi.Return{})
	panic("sdk: return-to-OS handler returned to the program")
}

func (p *Program) putChar(c byte) {
	_, _ = abi.Syscall(p.inv, abi.Teletype{Char: c})
}

// Print writes the string at s one teletype call per byte.
func (p *Program) Print(s memory.Ptr) {
	for ; p.seg.Read8(s) != 0; s = s.Add(1) {
		p.putChar(p.seg.Read8(s))
	}
}

// Println is Print followed by a line feed.
func (p *Program) Println(s memory.Ptr) {
	p.Print(s)
	p.PrintString("\n")
}

// PrintString writes a Go string, stopping at an embedded null like Print would.
func (p *Program) PrintString(s string) {
	for i := 0; i < len(s) && s[i] != 0; i++ {
		p.putChar(s[i])
	}
}

const hexDigits = "0123456789ABCDEF"

// PrintHex writes n as 0x followed by eight uppercase hex digits.
func (p *Program) PrintHex(n uint32) {
	p.PrintString("0x")
	for shift := 28; shift >= 0; shift -= 4 {
		p.putChar(hexDigits[(n>>uint(shift))&0xF])
	}
}

// StringLenght returns the length of the string at s. It scans without a bound.
func (p *Program) StringLenght(s memory.Ptr) uint32 {
	return uint32(p.seg.StrLen(s))
}

// StringCopy copies the string at src, terminator included, to dst. The caller
// guarantees dst has room.
func (p *Program) StringCopy(dst, src memory.Ptr) {
	p.seg.StrCopy(dst, src)
}

// StringLengthN is the bounded form of StringLenght.
func (p *Program) StringLengthN(s memory.Ptr, limit int) (uint32, error) {
	n, err := p.seg.StrLenN(s, limit)
	return uint32(n), err
}

// StringCopyN is the bounded form of StringCopy.
func (p *Program) StringCopyN(dst, src memory.Ptr, size int) error {
	return p.seg.StrCopyN(dst, src, size)
}

func (p *Program) checkPath(path memory.Ptr) error {
	s, err := p.seg.CStringN(path, fsblock.PathSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrContract, err)
	}
	if err := fsblock.CheckPath(s); err != nil {
		return fmt.Errorf("%w: %w", ErrContract, err)
	}
	return nil
}

// FindFile loads the file named at path into the block buffer at buf.
func (p *Program) FindFile(path, buf memory.Ptr) (abi.Handle, error) {
	if err := p.checkPath(path); err != nil {
		return 0, err
	}
	res, err := abi.Syscall(p.inv, abi.Find{Path: path, Buffer: buf})
	if err != nil {
		return 0, err
	}
	return res.Handle, nil
}

// CreateFile creates the file named at path; buf receives its empty record.
func (p *Program) CreateFile(path, buf memory.Ptr) (abi.Handle, error) {
	if err := p.checkPath(path); err != nil {
		return 0, err
	}
	res, err := abi.Syscall(p.inv, abi.Create{Path: path, Buffer: buf})
	if err != nil {
		return 0, err
	}
	return res.Handle, nil
}

// WriteFile persists the block buffer at buf into the file identified by h.
func (p *Program) WriteFile(buf memory.Ptr, h abi.Handle) error {
	if size := p.seg.Read16(buf.Add(fsblock.SizeOffset)); int(size) > fsblock.DataSize {
		return fmt.Errorf("%w: size field %d: %w", ErrContract, size, fsblock.ErrSizeTooLarge)
	}
	if err := p.checkPath(buf.Add(fsblock.PathOffset)); err != nil {
		return err
	}
	_, err := abi.Syscall(p.inv, abi.Write{Buffer: buf, Handle: h})
	return err
}

// Buffer gives typed access to a block buffer in the segment.
func (p *Program) Buffer(buf memory.Ptr) *Buffer {
	return &Buffer{seg: p.seg, at: buf}
}

// Buffer reads and writes header fields of a block held in program memory.
type Buffer struct {
	seg *memory.Segment
	at  memory.Ptr
}

func (b *Buffer) Path() string {
	s, _ := b.seg.CStringN(b.at.Add(fsblock.PathOffset), fsblock.PathSize)
	return s
}

func (b *Buffer) Flags() fsblock.Flags {
	return fsblock.Flags(b.seg.Read8(b.at.Add(fsblock.FlagsOffset)))
}

func (b *Buffer) SetFlags(f fsblock.Flags) {
	b.seg.Write8(b.at.Add(fsblock.FlagsOffset), byte(f))
}

func (b *Buffer) Size() uint16 {
	return b.seg.Read16(b.at.Add(fsblock.SizeOffset))
}

// Content returns a copy of the first Size data bytes.
func (b *Buffer) Content() []byte {
	n := int(b.Size())
	if n > fsblock.DataSize {
		n = fsblock.DataSize
	}
	return b.seg.ReadBytes(b.at.Add(fsblock.DataOffset), n)
}

// SetContent stores c in the data area and updates the size field.
func (b *Buffer) SetContent(c []byte) error {
	if len(c) > fsblock.DataSize {
		return fmt.Errorf("%d bytes: %w", len(c), fsblock.ErrSizeTooLarge)
	}
	b.seg.Write16(b.at.Add(fsblock.SizeOffset), uint16(len(c)))
	b.seg.WriteBytes(b.at.Add(fsblock.DataOffset), c)
	return nil
}
