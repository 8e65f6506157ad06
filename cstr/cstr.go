// Package cstr handles null-terminated byte strings held in Go slices.
//
// Len and Copy keep the unchecked contract of the OS helpers: they scan until a
// null byte and trust the caller for termination and destination capacity. Go's
// bounds checks turn an overrun into a panic instead of memory corruption. LenN and
// CopyN are the bounded variants.
package cstr

import (
	"errors"
	"fmt"
)

var (
	ErrUnterminated = errors.New("no null terminator")
	ErrShortBuffer  = errors.New("destination too small")
)

// Len returns the number of bytes before the first null byte in b.
func Len(b []byte) int {
	n := 0
	for b[n] != 0 {
		n++
	}
	return n
}

// Copy copies src into dst up to and including the terminator.
func Copy(dst, src []byte) {
	for i := 0; ; i++ {
		dst[i] = src[i]
		if src[i] == 0 {
			return
		}
	}
}

func LenN(b []byte) (int, error) {
	for i, c := range b {
		if c == 0 {
			return i, nil
		}
	}
	return 0, ErrUnterminated
}

// CopyN copies src into dst, terminator included, and returns the string length.
// dst is left untouched on error.
func CopyN(dst, src []byte) (int, error) {
	n, err := LenN(src)
	if err != nil {
		return 0, err
	}
	if n+1 > len(dst) {
		return 0, fmt.Errorf("need %d bytes, have %d: %w", n+1, len(dst), ErrShortBuffer)
	}
	copy(dst, src[:n+1])
	return n, nil
}

// FromString returns s followed by a terminator.
func FromString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// String returns the bytes of b before the first null, or all of b if there is none.
func String(b []byte) string {
	n, err := LenN(b)
	if err != nil {
		return string(b)
	}
	return string(b[:n])
}
