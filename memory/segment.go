package memory

import (
	"errors"
	"fmt"

	"github.com/drumato/osle-sdk/cstr"
)

// Ptr is an offset into the program's data segment. Arithmetic wraps at 64 KiB, like
// a real-mode offset register.
type Ptr uint16

func (p Ptr) Add(n int) Ptr {
	return Ptr(uint16(int(p) + n))
}

func (p Ptr) String() string {
	return fmt.Sprintf("0x%04X", uint16(p))
}

const (
	SegmentSize = 1 << 16

	// ArgsOffset is where the OS places the null-terminated argument string before
	// jumping into a loaded program.
	ArgsOffset Ptr = 0xFFBF
	ArgsSize       = SegmentSize - int(ArgsOffset)
)

var (
	ErrUnterminated = errors.New("string is not null-terminated within bound")
	ErrOverflow     = errors.New("string does not fit destination")
)

// Segment is the 64 KiB data segment shared by a program and the OS handlers.
type Segment struct {
	mem [SegmentSize]byte
}

func NewSegment() *Segment {
	return &Segment{}
}

func (s *Segment) Read8(p Ptr) byte {
	return s.mem[p]
}

func (s *Segment) Write8(p Ptr, v byte) {
	s.mem[p] = v
}

func (s *Segment) Read16(p Ptr) uint16 {
	return uint16(s.mem[p]) | uint16(s.mem[p.Add(1)])<<8
}

func (s *Segment) Write16(p Ptr, v uint16) {
	s.mem[p] = byte(v)
	s.mem[p.Add(1)] = byte(v >> 8)
}

// ReadBytes copies n bytes starting at p, wrapping at the segment end.
func (s *Segment) ReadBytes(p Ptr, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = s.mem[p.Add(i)]
	}
	return out
}

// WriteBytes copies b to p, wrapping at the segment end.
func (s *Segment) WriteBytes(p Ptr, b []byte) {
	for i, v := range b {
		s.mem[p.Add(i)] = v
	}
}

// WriteCString writes str followed by a terminator.
func (s *Segment) WriteCString(p Ptr, str string) {
	s.WriteBytes(p, []byte(str))
	s.mem[p.Add(len(str))] = 0
}

// from returns a copy of the segment starting at p and wrapping at 64 KiB.
func (s *Segment) from(p Ptr) []byte {
	b := make([]byte, SegmentSize)
	n := copy(b, s.mem[p:])
	copy(b[n:], s.mem[:p])
	return b
}

// StrLen counts bytes before the first null at p. There is no bound: a segment with
// no null byte after p panics. The caller guarantees termination.
func (s *Segment) StrLen(p Ptr) int {
	return cstr.Len(s.from(p))
}

// StrCopy copies the string at src, terminator included, to dst without checking
// that dst has room. The source is read in full before dst is written.
func (s *Segment) StrCopy(dst, src Ptr) {
	out := make([]byte, SegmentSize)
	cstr.Copy(out, s.from(src))
	s.WriteBytes(dst, out[:cstr.Len(out)+1])
}

// StrLenN is StrLen that gives up after scanning limit bytes.
func (s *Segment) StrLenN(p Ptr, limit int) (int, error) {
	for n := 0; n < limit; n++ {
		if s.mem[p.Add(n)] == 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("at %s after %d bytes: %w", p, limit, ErrUnterminated)
}

// StrCopyN copies at most size bytes including the terminator. Nothing is written on error.
func (s *Segment) StrCopyN(dst, src Ptr, size int) error {
	n, err := s.StrLenN(src, size)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}
	s.WriteBytes(dst, s.ReadBytes(src, n+1))
	return nil
}

// CString returns the string at p using the unchecked scan.
func (s *Segment) CString(p Ptr) string {
	return string(s.ReadBytes(p, s.StrLen(p)))
}

// CStringN returns the string at p if it terminates within limit bytes.
func (s *Segment) CStringN(p Ptr, limit int) (string, error) {
	n, err := s.StrLenN(p, limit)
	if err != nil {
		return "", err
	}
	return string(s.ReadBytes(p, n)), nil
}

// SetArgs stores the program argument string. Arguments longer than the buffer are
// rejected, not truncated.
func (s *Segment) SetArgs(args string) error {
	if len(args) >= ArgsSize {
		return fmt.Errorf("arguments are %d bytes, buffer holds %d: %w", len(args), ArgsSize-1, ErrOverflow)
	}
	s.WriteCString(ArgsOffset, args)
	return nil
}

// Args reads the argument string the OS left at ArgsOffset.
func (s *Segment) Args() string {
	str, err := s.CStringN(ArgsOffset, ArgsSize)
	if err != nil {
		return ""
	}
	return str
}
