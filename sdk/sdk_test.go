package sdk

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/drumato/osle-sdk/abi"
	"github.com/drumato/osle-sdk/fsblock"
	"github.com/drumato/osle-sdk/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// teletypeRecorder captures teletype output and counts other interrupts.
type teletypeRecorder struct {
	out     bytes.Buffer
	vectors []abi.Vector
	carry   bool
}

func (r *teletypeRecorder) Invoke(v abi.Vector, regs *abi.Regs) {
	r.vectors = append(r.vectors, v)
	if v == abi.VectorVideo && regs.AH() == abi.TeletypeFunc {
		r.out.WriteByte(regs.AL())
		return
	}
	regs.SetCarry(r.carry)
}

func newProgram() (*Program, *teletypeRecorder) {
	rec := &teletypeRecorder{}
	return New(rec, memory.NewSegment()), rec
}

func TestPrint(t *testing.T) {
	for _, s := range []string{"", "x", "Hello, world!\n", strings.Repeat("ab", 100)} {
		p, rec := newProgram()
		p.Segment().WriteCString(0x100, s)

		p.Print(0x100)

		assert.Equal(t, s, rec.out.String())
		assert.Len(t, rec.vectors, len(s), "one teletype call per byte")
	}
}

func TestPrintlnEqualsPrintThenNewline(t *testing.T) {
	for _, s := range []string{"", "hi", "line\nbreak"} {
		t.Run(s, func(t *testing.T) {
			a, recA := newProgram()
			a.Segment().WriteCString(0x10, s)
			a.Println(0x10)

			b, recB := newProgram()
			b.Segment().WriteCString(0x10, s)
			b.Segment().WriteCString(0x200, "\n")
			b.Print(0x10)
			b.Print(0x200)

			assert.Equal(t, recB.out.String(), recA.out.String())
			assert.Equal(t, recB.vectors, recA.vectors)
		})
	}
}

func TestPrintHex(t *testing.T) {
	tests := []struct {
		n        uint32
		expected string
	}{
		{n: 0, expected: "0x00000000"},
		{n: 0xBEEF, expected: "0x0000BEEF"},
		{n: 0xFFFFFFFF, expected: "0xFFFFFFFF"},
		{n: 0x12AB34CD, expected: "0x12AB34CD"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			p, rec := newProgram()
			p.PrintHex(tt.n)
			assert.Equal(t, tt.expected, rec.out.String())
		})
	}
}

func TestPrintString_StopsAtNull(t *testing.T) {
	p, rec := newProgram()
	p.PrintString("ab\x00cd")
	assert.Equal(t, "ab", rec.out.String())
}

func TestStringLenghtAndCopy(t *testing.T) {
	for _, s := range []string{"", "a", "/a.txt", "Hello, world!"} {
		p, _ := newProgram()
		seg := p.Segment()
		seg.WriteCString(0x300, s)

		assert.Equal(t, uint32(len(s)), p.StringLenght(0x300))

		p.StringCopy(0x900, 0x300)
		assert.Equal(t, seg.ReadBytes(0x300, len(s)+1), seg.ReadBytes(0x900, len(s)+1))

		n, err := p.StringLengthN(0x300, len(s)+1)
		require.NoError(t, err)
		assert.Equal(t, uint32(len(s)), n)
	}
}

func TestStringCopyN(t *testing.T) {
	p, _ := newProgram()
	p.Segment().WriteCString(0x300, "abcdef")

	assert.ErrorIs(t, p.StringCopyN(0x900, 0x300, 3), memory.ErrOverflow)
	require.NoError(t, p.StringCopyN(0x900, 0x300, 16))
	assert.Equal(t, "abcdef", p.Segment().CString(0x900))
}

func TestReturnToOSle_PanicsIfHandlerReturns(t *testing.T) {
	p, rec := newProgram()
	assert.Panics(t, p.ReturnToOSle)
	assert.Equal(t, []abi.Vector{abi.VectorReturn}, rec.vectors)
}

func TestArgs(t *testing.T) {
	p, _ := newProgram()
	require.NoError(t, p.Segment().SetArgs("readme.txt"))
	assert.Equal(t, "readme.txt", p.Args())
}

func TestFileCalls_ContractChecksRaiseNoInterrupt(t *testing.T) {
	tests := []struct {
		name  string
		setup func(seg *memory.Segment)
		call  func(p *Program) error
	}{
		{
			name:  "find with path too long",
			setup: func(seg *memory.Segment) { seg.WriteCString(0x10, "/"+strings.Repeat("p", 20)) },
			call: func(p *Program) error {
				_, err := p.FindFile(0x10, 0x1000)
				return err
			},
		},
		{
			name: "create with unterminated path",
			setup: func(seg *memory.Segment) {
				seg.WriteBytes(0x10, bytes.Repeat([]byte{'q'}, 64))
			},
			call: func(p *Program) error {
				_, err := p.CreateFile(0x10, 0x1000)
				return err
			},
		},
		{
			name:  "create with empty path",
			setup: func(seg *memory.Segment) {},
			call: func(p *Program) error {
				_, err := p.CreateFile(0x10, 0x1000)
				return err
			},
		},
		{
			name: "write with oversize size field",
			setup: func(seg *memory.Segment) {
				seg.WriteCString(0x1000, "/a")
				seg.Write16(0x1000+fsblock.SizeOffset, fsblock.DataSize+1)
			},
			call: func(p *Program) error {
				return p.WriteFile(0x1000, 0)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, rec := newProgram()
			tt.setup(p.Segment())

			err := tt.call(p)
			assert.ErrorIs(t, err, ErrContract)
			assert.Empty(t, rec.vectors)
		})
	}
}

func TestFileCalls_CarryBecomesError(t *testing.T) {
	p, rec := newProgram()
	rec.carry = true
	p.Segment().WriteCString(0x10, "/missing")

	_, err := p.FindFile(0x10, 0x1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, abi.ErrCarry))
	assert.False(t, errors.Is(err, ErrContract))
	assert.Equal(t, []abi.Vector{abi.VectorFind}, rec.vectors)
}

func TestBuffer(t *testing.T) {
	p, _ := newProgram()
	p.Segment().WriteCString(0x2000, "/notes")
	buf := p.Buffer(0x2000)

	require.NoError(t, buf.SetContent([]byte("hello")))
	buf.SetFlags(fsblock.FlagExecutable)

	assert.Equal(t, "/notes", buf.Path())
	assert.Equal(t, uint16(5), buf.Size())
	assert.Equal(t, []byte("hello"), buf.Content())
	assert.True(t, buf.Flags().Executable())

	assert.ErrorIs(t, buf.SetContent(make([]byte, fsblock.DataSize+1)), fsblock.ErrSizeTooLarge)
}
