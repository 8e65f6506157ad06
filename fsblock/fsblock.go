package fsblock

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/drumato/osle-sdk/cstr"
)

// Layout of a file block on the boot medium. The OS copies blocks between disk and
// memory without translation, so these offsets are the wire format.
const (
	// Files is the maximum number of records resident on the disk.
	Files = 40

	PathOffset = 0
	PathSize   = 21
	// MaxPathLen is the number of usable path characters; the 21st byte is for the terminator.
	MaxPathLen = PathSize - 1

	FlagsOffset = PathSize
	FlagsSize   = 1

	SizeOffset = FlagsOffset + FlagsSize
	SizeSize   = 2

	HeaderSize = PathSize + FlagsSize + SizeSize
	DataOffset = HeaderSize

	BlockSize = 9216
	DataSize  = BlockSize - HeaderSize
)

// ByteOrder is the order of the size word. The OS runs in x86 real mode and stores
// the word with a 16-bit move.
var ByteOrder = binary.LittleEndian

// Flags is the flag byte of a record. Only bit 7 has a meaning.
type Flags uint8

const (
	FlagExecutable Flags = 0x80
	FlagReserved   Flags = 0x7F
)

func (f Flags) Executable() bool {
	return f&FlagExecutable != 0
}

func (f Flags) String() string {
	if f.Executable() {
		return fmt.Sprintf("x(0x%02X)", uint8(f))
	}
	return fmt.Sprintf("-(0x%02X)", uint8(f))
}

var (
	ErrUnterminatedPath = errors.New("path is not null-terminated within its field")
	ErrPathTooLong      = errors.New("path exceeds 20 characters")
	ErrEmptyPath        = errors.New("path is empty")
	ErrReservedFlags    = errors.New("reserved flag bits are set")
	ErrSizeTooLarge     = errors.New("size exceeds data area")
)

// Block is one fixed-size record exactly as the OS stores it.
type Block [BlockSize]byte

// Header is the decoded form of the first HeaderSize bytes of a block.
type Header struct {
	Path  string `json:"path"`
	Flags Flags  `json:"flags"`
	Size  uint16 `json:"size"`
}

// DecodeHeader decodes the header of raw, which must hold at least HeaderSize bytes.
func DecodeHeader(raw []byte) (Header, error) {
	if len(raw) < HeaderSize {
		return Header{}, fmt.Errorf("header needs %d bytes, got %d", HeaderSize, len(raw))
	}
	path, err := decodePath(raw[PathOffset : PathOffset+PathSize])
	if err != nil {
		return Header{}, err
	}
	return Header{
		Path:  path,
		Flags: Flags(raw[FlagsOffset]),
		Size:  ByteOrder.Uint16(raw[SizeOffset : SizeOffset+SizeSize]),
	}, nil
}

func decodePath(field []byte) (string, error) {
	n, err := cstr.LenN(field)
	if err != nil {
		return "", ErrUnterminatedPath
	}
	return string(field[:n]), nil
}

// CheckPath reports whether p fits the path field. Oversize paths are rejected, never truncated.
func CheckPath(p string) error {
	if p == "" {
		return ErrEmptyPath
	}
	if len(p) > MaxPathLen {
		return fmt.Errorf("%q: %w", p, ErrPathTooLong)
	}
	if cstr.String([]byte(p)) != p {
		return fmt.Errorf("%q contains a null byte", p)
	}
	return nil
}

// Empty reports whether the block is a free slot.
func (b *Block) Empty() bool {
	return b[PathOffset] == 0
}

func (b *Block) Path() (string, error) {
	return decodePath(b[PathOffset : PathOffset+PathSize])
}

// SetPath writes p and its terminator and clears the rest of the field.
func (b *Block) SetPath(p string) error {
	if err := CheckPath(p); err != nil {
		return err
	}
	field := b[PathOffset : PathOffset+PathSize]
	clear(field)
	_, err := cstr.CopyN(field, cstr.FromString(p))
	return err
}

func (b *Block) Flags() Flags {
	return Flags(b[FlagsOffset])
}

func (b *Block) SetFlags(f Flags) {
	b[FlagsOffset] = byte(f)
}

func (b *Block) Executable() bool {
	return b.Flags().Executable()
}

func (b *Block) SetExecutable(x bool) {
	if x {
		b[FlagsOffset] |= byte(FlagExecutable)
	} else {
		b[FlagsOffset] &^= byte(FlagExecutable)
	}
}

func (b *Block) Size() uint16 {
	return ByteOrder.Uint16(b[SizeOffset : SizeOffset+SizeSize])
}

func (b *Block) SetSize(n int) error {
	if n < 0 || n > DataSize {
		return fmt.Errorf("%d bytes: %w", n, ErrSizeTooLarge)
	}
	ByteOrder.PutUint16(b[SizeOffset:SizeOffset+SizeSize], uint16(n))
	return nil
}

// Data returns the whole data area. Bytes past Size are undefined.
func (b *Block) Data() []byte {
	return b[DataOffset:BlockSize]
}

// Content returns the first Size bytes of the data area.
func (b *Block) Content() ([]byte, error) {
	n := int(b.Size())
	if n > DataSize {
		return nil, fmt.Errorf("%d bytes: %w", n, ErrSizeTooLarge)
	}
	return b[DataOffset : DataOffset+n], nil
}

// SetContent copies c into the data area and updates the size field.
func (b *Block) SetContent(c []byte) error {
	if err := b.SetSize(len(c)); err != nil {
		return err
	}
	copy(b.Data(), c)
	return nil
}

func (b *Block) Header() (Header, error) {
	return DecodeHeader(b[:HeaderSize])
}

// Validate reports every layout violation in the block joined into one error.
func (b *Block) Validate() error {
	var errs []error

	p, err := b.Path()
	switch {
	case err != nil:
		errs = append(errs, err)
	case p == "":
		errs = append(errs, ErrEmptyPath)
	}

	if f := b.Flags(); f&FlagReserved != 0 {
		errs = append(errs, fmt.Errorf("flags 0x%02X: %w", uint8(f), ErrReservedFlags))
	}

	if n := b.Size(); int(n) > DataSize {
		errs = append(errs, fmt.Errorf("%d bytes: %w", n, ErrSizeTooLarge))
	}

	return errors.Join(errs...)
}

// New returns a block holding path with cleared flags, zero size and zeroed data.
func New(path string) (*Block, error) {
	var b Block
	if err := b.SetPath(path); err != nil {
		return nil, err
	}
	return &b, nil
}
