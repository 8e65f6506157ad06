// Package disk is the OS-owned file table stored on the boot medium image.
//
// The image is an optional leading boot area followed by fsblock.Files consecutive
// blocks. A slot whose first path byte is null is free. Programs never see this
// package; they reach it through the interrupt ABI.
package disk

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/drumato/osle-sdk/filesystem"
	"github.com/drumato/osle-sdk/fsblock"
)

// FileAreaSize is the number of bytes the file table occupies in the image.
const FileAreaSize = fsblock.Files * fsblock.BlockSize

var (
	ErrNotFound      = errors.New("file not found")
	ErrExists        = errors.New("file already exists")
	ErrTableFull     = errors.New("file table is full")
	ErrBadHandle     = errors.New("handle does not name a file")
	ErrInvalidPath   = errors.New("invalid path")
	ErrInvalidRecord = errors.New("invalid record")
	ErrImageSize     = errors.New("image has unexpected size")
)

// Handle is a file's slot index in the table, 0 through 39.
type Handle uint8

// Entry describes one occupied slot.
type Entry struct {
	Handle     Handle `json:"handle"`
	Path       string `json:"path"`
	Size       int    `json:"size"`
	Executable bool   `json:"executable"`
}

// Disk is the file table of one image. Its methods are safe for concurrent use.
type Disk struct {
	mu     sync.Mutex
	logger *slog.Logger
	store  filesystem.FileSystem
	path   string
	offset int

	// image holds the boot area and the file area exactly as stored.
	image []byte
}

type Option func(*Disk)

// WithOffset places the file area offset bytes into the image.
func WithOffset(offset int) Option {
	return func(d *Disk) {
		d.offset = offset
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Disk) {
		d.logger = logger
	}
}

// Open loads the image at path, or formats a new empty one if it does not exist.
func Open(store filesystem.FileSystem, path string, opts ...Option) (*Disk, error) {
	d := &Disk{
		logger: slog.Default(),
		store:  store,
		path:   path,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.offset < 0 {
		return nil, fmt.Errorf("negative image offset %d", d.offset)
	}

	want := d.offset + FileAreaSize
	if !store.Exists(path) {
		d.image = make([]byte, want)
		if err := d.store.WriteFile(path, d.image, 0o644); err != nil {
			return nil, fmt.Errorf("failed to format image %s: %w", path, err)
		}
		d.logger.Info("formatted disk image", slog.String("path", path), slog.Int("bytes", want))
		return d, nil
	}

	image, err := store.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	if len(image) < want {
		return nil, fmt.Errorf("%s is %d bytes, need at least %d: %w", path, len(image), want, ErrImageSize)
	}
	d.image = image
	d.logger.Debug("opened disk image", slog.String("path", path), slog.Int("files", d.count()))
	return d, nil
}

func (d *Disk) block(image []byte, h Handle) *fsblock.Block {
	start := d.offset + int(h)*fsblock.BlockSize
	return (*fsblock.Block)(image[start : start+fsblock.BlockSize])
}

func (d *Disk) lookup(path string) (Handle, bool) {
	for i := 0; i < fsblock.Files; i++ {
		b := d.block(d.image, Handle(i))
		if b.Empty() {
			continue
		}
		if p, err := b.Path(); err == nil && p == path {
			return Handle(i), true
		}
	}
	return 0, false
}

// commit flushes a modified copy of the image and adopts it only after the store
// accepted it, so a failed flush leaves the table unchanged.
func (d *Disk) commit(next []byte) error {
	if err := d.store.WriteFile(d.path, next, 0o644); err != nil {
		return fmt.Errorf("failed to flush image %s: %w", d.path, err)
	}
	d.image = next
	return nil
}

// Find returns the handle and a copy of the block stored for path.
func (d *Disk) Find(path string) (Handle, *fsblock.Block, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := fsblock.CheckPath(path); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	h, ok := d.lookup(path)
	if !ok {
		return 0, nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	b := *d.block(d.image, h)
	return h, &b, nil
}

// Create allocates the lowest free slot for path and persists an empty record.
func (d *Disk) Create(path string) (Handle, *fsblock.Block, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fresh, err := fsblock.New(path)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if _, ok := d.lookup(path); ok {
		return 0, nil, fmt.Errorf("%s: %w", path, ErrExists)
	}

	slot := -1
	for i := 0; i < fsblock.Files; i++ {
		if d.block(d.image, Handle(i)).Empty() {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, nil, fmt.Errorf("%s: %w", path, ErrTableFull)
	}

	next := append([]byte(nil), d.image...)
	*d.block(next, Handle(slot)) = *fresh
	if err := d.commit(next); err != nil {
		return 0, nil, err
	}
	d.logger.Debug("created file", slog.String("path", path), slog.Int("handle", slot))
	return Handle(slot), fresh, nil
}

// Write replaces the record in slot h with b.
func (d *Disk) Write(h Handle, b *fsblock.Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if int(h) >= fsblock.Files || d.block(d.image, h).Empty() {
		return fmt.Errorf("handle %d: %w", h, ErrBadHandle)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	path, _ := b.Path()
	if other, ok := d.lookup(path); ok && other != h {
		return fmt.Errorf("%s is handle %d: %w", path, other, ErrExists)
	}

	next := append([]byte(nil), d.image...)
	*d.block(next, h) = *b
	if err := d.commit(next); err != nil {
		return err
	}
	d.logger.Debug("wrote file", slog.String("path", path), slog.Int("handle", int(h)), slog.Int("size", int(b.Size())))
	return nil
}

// Read returns a copy of the block in slot h.
func (d *Disk) Read(h Handle) (*fsblock.Block, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if int(h) >= fsblock.Files || d.block(d.image, h).Empty() {
		return nil, fmt.Errorf("handle %d: %w", h, ErrBadHandle)
	}
	b := *d.block(d.image, h)
	return &b, nil
}

// List returns the occupied slots in handle order. Slots with a damaged header are
// reported with an empty path.
func (d *Disk) List() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()

	var entries []Entry
	for i := 0; i < fsblock.Files; i++ {
		b := d.block(d.image, Handle(i))
		if b.Empty() {
			continue
		}
		p, _ := b.Path()
		entries = append(entries, Entry{
			Handle:     Handle(i),
			Path:       p,
			Size:       int(b.Size()),
			Executable: b.Executable(),
		})
	}
	return entries
}

func (d *Disk) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count()
}

func (d *Disk) count() int {
	n := 0
	for i := 0; i < fsblock.Files; i++ {
		if !d.block(d.image, Handle(i)).Empty() {
			n++
		}
	}
	return n
}

// IsNotExist reports whether err means the image or a file in it is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, os.ErrNotExist)
}
