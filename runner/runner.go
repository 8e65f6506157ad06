package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/drumato/osle-sdk/config"
	"github.com/drumato/osle-sdk/console"
	"github.com/drumato/osle-sdk/disk"
	"github.com/drumato/osle-sdk/filesystem"
	"github.com/drumato/osle-sdk/fsblock"
	"github.com/drumato/osle-sdk/machine"
	"github.com/drumato/osle-sdk/memory"
	"github.com/drumato/osle-sdk/sdk"
)

// Fixed locations used by the builder program inside its segment.
const (
	pathPtr   memory.Ptr = 0x0100
	bufferPtr memory.Ptr = 0x1000
)

type Runner struct {
	logger      *slog.Logger
	fsConnector filesystem.FileSystem
	fileReader  config.FileReader
	stdout      io.Writer
}

type RunnerOption func(*Runner)

func New(logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := Runner{
		logger:      logger,
		fsConnector: filesystem.NewDefaultFileSystem(),
		fileReader:  &config.DefaultFileReader{},
		stdout:      io.Discard,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return &r
}

func WithFileSystem(fs filesystem.FileSystem) RunnerOption {
	return func(r *Runner) {
		r.fsConnector = fs
	}
}

func WithFileReader(fr config.FileReader) RunnerOption {
	return func(r *Runner) {
		r.fileReader = fr
	}
}

// WithStdout sets where teletype output of programs goes.
func WithStdout(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.stdout = w
	}
}

// Entry is a file ready to be stored.
type Entry struct {
	Path       string
	Data       []byte
	Executable bool
}

// Run builds or updates the image described by cfg. Files are stored with the same
// find/create/write calls a program would issue.
func (r *Runner) Run(ctx context.Context, cfg config.Config, configDir string) error {
	r.logger.Info("Runner started")
	r.logger.DebugContext(ctx, "Configuration", slog.Any("config", cfg))

	entries := make([]Entry, 0, len(cfg.Files))
	for _, f := range cfg.Files {
		data, err := f.LoadContent(r.fileReader, configDir)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: f.Path, Data: data, Executable: f.Executable})
	}

	mode, err := console.ParseNewlineMode(cfg.Console.Newline)
	if err != nil {
		return err
	}
	m, err := r.Machine(cfg.ImagePath(configDir), cfg.Disk.Offset, mode)
	if err != nil {
		return err
	}
	return r.Store(ctx, m, entries)
}

// Machine opens the image and returns a reference machine over it.
func (r *Runner) Machine(imagePath string, offset int, mode console.NewlineMode) (*machine.Machine, error) {
	if err := r.fsConnector.MkdirAll(filepath.Dir(imagePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory for %s: %w", imagePath, err)
	}
	d, err := disk.Open(r.fsConnector, imagePath, disk.WithOffset(offset), disk.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	return machine.New(d, console.New(r.stdout, mode), machine.WithLogger(r.logger)), nil
}

// Store writes entries through the ABI, replacing files that already exist.
func (r *Runner) Store(ctx context.Context, m *machine.Machine, entries []Entry) error {
	var storeErr error
	err := m.Run(ctx, "", func(p *sdk.Program) {
		for _, e := range entries {
			if storeErr = r.storeOne(ctx, p, e); storeErr != nil {
				break
			}
		}
		p.ReturnToOSle()
	})
	if err != nil {
		return err
	}
	return storeErr
}

func (r *Runner) storeOne(ctx context.Context, p *sdk.Program, e Entry) error {
	if err := fsblock.CheckPath(e.Path); err != nil {
		return fmt.Errorf("failed to store %s: %w", e.Path, err)
	}
	p.Segment().WriteCString(pathPtr, e.Path)

	h, err := p.FindFile(pathPtr, bufferPtr)
	if err != nil {
		r.logger.DebugContext(ctx, "Creating file", slog.String("path", e.Path))
		h, err = p.CreateFile(pathPtr, bufferPtr)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", e.Path, err)
		}
	} else {
		r.logger.DebugContext(ctx, "Replacing file", slog.String("path", e.Path), slog.Int("handle", int(h)))
	}

	buf := p.Buffer(bufferPtr)
	if err := buf.SetContent(e.Data); err != nil {
		return fmt.Errorf("failed to stage %s: %w", e.Path, err)
	}
	var flags fsblock.Flags
	if e.Executable {
		flags = fsblock.FlagExecutable
	}
	buf.SetFlags(flags)

	if err := p.WriteFile(bufferPtr, h); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.Path, err)
	}
	r.logger.InfoContext(ctx, "Stored file", slog.String("path", e.Path), slog.Int("size", len(e.Data)))
	return nil
}
