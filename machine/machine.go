// Package machine is a reference host for the OSle interrupt ABI. It plays the OS
// side of every call over a program segment, a disk image and a teletype console,
// which lets programs written against package sdk run and be tested without the
// real kernel.
package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/drumato/osle-sdk/abi"
	"github.com/drumato/osle-sdk/console"
	"github.com/drumato/osle-sdk/disk"
	"github.com/drumato/osle-sdk/fsblock"
	"github.com/drumato/osle-sdk/memory"
	"github.com/drumato/osle-sdk/sdk"
)

var (
	ErrNoReturn = errors.New("program ended without returning to the OS")
	ErrCrashed  = errors.New("program crashed")
	ErrBusy     = errors.New("a program is already running")
)

// Machine implements abi.Invoker. Calls are serialised; only one program runs at a time.
type Machine struct {
	mu      sync.Mutex
	logger  *slog.Logger
	seg     *memory.Segment
	disk    *disk.Disk
	console *console.Console

	running bool
	exited  bool
	// idle is closed when the program started by the last Run has ended.
	idle chan struct{}
}

var _ abi.Invoker = (*Machine)(nil)

type Option func(*Machine)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

func WithSegment(seg *memory.Segment) Option {
	return func(m *Machine) {
		m.seg = seg
	}
}

func New(d *disk.Disk, c *console.Console, opts ...Option) *Machine {
	m := &Machine{
		logger:  slog.Default(),
		seg:     memory.NewSegment(),
		disk:    d,
		console: c,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) Segment() *memory.Segment {
	return m.seg
}

// Invoke runs the handler for v. It must be called from the program goroutine
// started by Run when v is abi.VectorReturn.
func (m *Machine) Invoke(v abi.Vector, r *abi.Regs) {
	switch v {
	case abi.VectorReturn:
		m.handleReturn()
	case abi.VectorVideo:
		m.handleVideo(r)
	case abi.VectorFind, abi.VectorCreate, abi.VectorWrite:
		m.mu.Lock()
		defer m.mu.Unlock()
		var err error
		switch v {
		case abi.VectorFind:
			err = m.handleFind(r)
		case abi.VectorCreate:
			err = m.handleCreate(r)
		case abi.VectorWrite:
			err = m.handleWrite(r)
		}
		r.SetCarry(err != nil)
		if err != nil {
			m.logger.Debug("syscall failed", slog.String("vector", v.String()), slog.Any("error", err))
		} else {
			m.logger.Debug("syscall", slog.String("vector", v.String()), slog.Int("al", int(r.AL())))
		}
	default:
		m.logger.Warn("unhandled interrupt", slog.String("vector", v.String()))
		r.SetCarry(true)
	}
}

func (m *Machine) handleVideo(r *abi.Regs) {
	if r.AH() != abi.TeletypeFunc {
		m.logger.Warn("unsupported video function", slog.Int("ah", int(r.AH())))
		r.SetCarry(true)
		return
	}
	m.console.PutChar(r.AL())
}

// readPath reads a path argument. The kernel scans at most the path field, so an
// unterminated or oversize path fails the call instead of running off.
func (m *Machine) readPath(p memory.Ptr) (string, error) {
	path, err := m.seg.CStringN(p, fsblock.PathSize)
	if err != nil {
		return "", fmt.Errorf("path at %s: %w", p, err)
	}
	return path, nil
}

func (m *Machine) readBlock(p memory.Ptr) *fsblock.Block {
	var b fsblock.Block
	copy(b[:], m.seg.ReadBytes(p, fsblock.BlockSize))
	return &b
}

func (m *Machine) handleFind(r *abi.Regs) error {
	path, err := m.readPath(memory.Ptr(r.DI))
	if err != nil {
		return err
	}
	h, b, err := m.disk.Find(path)
	if err != nil {
		return err
	}
	m.seg.WriteBytes(memory.Ptr(r.BX), b[:])
	r.SetAL(uint8(h))
	return nil
}

func (m *Machine) handleCreate(r *abi.Regs) error {
	path, err := m.readPath(memory.Ptr(r.DI))
	if err != nil {
		return err
	}
	h, b, err := m.disk.Create(path)
	if err != nil {
		return err
	}
	m.seg.WriteBytes(memory.Ptr(r.BX), b[:])
	r.SetAL(uint8(h))
	return nil
}

func (m *Machine) handleWrite(r *abi.Regs) error {
	b := m.readBlock(memory.Ptr(r.BX))
	return m.disk.Write(disk.Handle(r.DL()), b)
}

func (m *Machine) handleReturn() {
	m.mu.Lock()
	running := m.running
	m.exited = true
	m.mu.Unlock()

	if !running {
		panic("machine: return-to-OS outside of Run")
	}
	runtime.Goexit()
}

// Program is a program entry point. It receives the SDK bound to this machine.
type Program func(p *sdk.Program)

// Run loads args into the segment and runs prog on its own goroutine until it
// returns control to the OS. A program that falls off its end is treated as having
// returned, and ErrNoReturn is reported. A panic is reported as ErrCrashed.
//
// A running program cannot be cancelled; ctx only bounds the wait. When ctx is done
// first, Run returns ctx.Err() while the program goes on in the background, and
// further calls fail with ErrBusy until it ends. Wait blocks until then.
func (m *Machine) Run(ctx context.Context, args string, prog Program) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("machine: %w", ErrBusy)
	}
	if err := m.seg.SetArgs(args); err != nil {
		m.mu.Unlock()
		return err
	}
	m.running = true
	m.exited = false
	idle := make(chan struct{})
	m.idle = idle
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "starting program", slog.String("args", args))

	done := make(chan error, 1)
	go func() {
		var err error
		finished := false
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%w: %v", ErrCrashed, rec)
			} else if finished {
				err = ErrNoReturn
			}
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			close(idle)
			done <- err
		}()
		prog(sdk.New(m, m.seg))
		finished = true
	}()

	select {
	case err := <-done:
		if errors.Is(err, ErrNoReturn) {
			m.logger.WarnContext(ctx, "program did not return to the OS")
		}
		if cerr := m.console.Err(); cerr != nil && err == nil {
			err = fmt.Errorf("console: %w", cerr)
		}
		return err
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "stopped waiting for program", slog.Any("error", ctx.Err()))
		return ctx.Err()
	}
}

// Wait blocks until the program started by the last Run has ended, or ctx is done.
func (m *Machine) Wait(ctx context.Context) error {
	m.mu.Lock()
	idle := m.idle
	m.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exited reports whether the last program returned through the return-to-OS call.
func (m *Machine) Exited() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exited
}
