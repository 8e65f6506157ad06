package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPtr_AddWraps(t *testing.T) {
	assert.Equal(t, Ptr(0x0001), Ptr(0xFFFF).Add(2))
	assert.Equal(t, Ptr(0xFFFF), Ptr(0).Add(-1))
	assert.Equal(t, "0xFFBF", ArgsOffset.String())
}

func TestSegment_Read16LittleEndian(t *testing.T) {
	s := NewSegment()
	s.Write16(0x100, 0xBEEF)
	assert.Equal(t, byte(0xEF), s.Read8(0x100))
	assert.Equal(t, byte(0xBE), s.Read8(0x101))
	assert.Equal(t, uint16(0xBEEF), s.Read16(0x100))

	s.Write16(0xFFFF, 0x1234)
	assert.Equal(t, byte(0x34), s.Read8(0xFFFF))
	assert.Equal(t, byte(0x12), s.Read8(0x0000))
}

func TestSegment_StrLen(t *testing.T) {
	tests := []struct {
		name string
		s    string
	}{
		{name: "empty", s: ""},
		{name: "single", s: "a"},
		{name: "sentence", s: "Hello, world!\n"},
		{name: "long", s: strings.Repeat("x", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSegment()
			s.WriteCString(0x200, tt.s)
			assert.Equal(t, len(tt.s), s.StrLen(0x200))
			assert.Equal(t, tt.s, s.CString(0x200))
		})
	}
}

func TestSegment_StrCopy(t *testing.T) {
	s := NewSegment()
	s.WriteCString(0x10, "copy me")
	// poison the destination so a missing terminator would show
	s.WriteBytes(0x800, []byte("XXXXXXXXXXXX"))

	s.StrCopy(0x800, 0x10)

	assert.Equal(t, s.ReadBytes(0x10, 8), s.ReadBytes(0x800, 8))
	assert.Equal(t, byte(0), s.Read8(0x807))
	assert.Equal(t, byte('X'), s.Read8(0x808))
}

func TestSegment_StrLenN(t *testing.T) {
	s := NewSegment()
	s.WriteBytes(0x40, []byte("abcdef"))
	s.Write8(0x46, 0)

	n, err := s.StrLenN(0x40, 7)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = s.StrLenN(0x40, 6)
	assert.ErrorIs(t, err, ErrUnterminated)
}

func TestSegment_StrCopyN(t *testing.T) {
	s := NewSegment()
	s.WriteCString(0x40, "abcdef")

	err := s.StrCopyN(0x100, 0x40, 4)
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, byte(0), s.Read8(0x100), "nothing is written on overflow")

	require.NoError(t, s.StrCopyN(0x100, 0x40, 7))
	assert.Equal(t, "abcdef", s.CString(0x100))
}

func TestSegment_Args(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		expectErr bool
	}{
		{name: "empty", args: ""},
		{name: "typical", args: "hello.txt -v"},
		{name: "fills buffer", args: strings.Repeat("a", ArgsSize-1)},
		{name: "too long", args: strings.Repeat("a", ArgsSize), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSegment()
			err := s.SetArgs(tt.args)
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrOverflow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.args, s.Args())
		})
	}
}

func TestSegment_StringsWrapAtSegmentEnd(t *testing.T) {
	s := NewSegment()
	s.WriteCString(0xFFFC, "wrapped")

	assert.Equal(t, 7, s.StrLen(0xFFFC))
	assert.Equal(t, "wrapped", s.CString(0xFFFC))

	s.StrCopy(0x300, 0xFFFC)
	assert.Equal(t, "wrapped", s.CString(0x300))
}

func TestSegment_StrCopyOverlapping(t *testing.T) {
	s := NewSegment()
	s.WriteCString(0x10, "abcdef")

	s.StrCopy(0x12, 0x10)
	assert.Equal(t, "abcdef", s.CString(0x12))
}

func TestSegment_StrLenUnterminatedPanics(t *testing.T) {
	s := NewSegment()
	for i := 0; i < SegmentSize; i++ {
		s.Write8(Ptr(i), 'a')
	}
	assert.Panics(t, func() { s.StrLen(0) })
}
