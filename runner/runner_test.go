package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/drumato/osle-sdk/abi"
	"github.com/drumato/osle-sdk/config"
	"github.com/drumato/osle-sdk/console"
	"github.com/drumato/osle-sdk/disk"
	"github.com/drumato/osle-sdk/filesystem"
	"github.com/drumato/osle-sdk/fsblock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFileReader map[string][]byte

func (m mockFileReader) ReadFile(filename string) ([]byte, error) {
	if data, ok := m[filename]; ok {
		return data, nil
	}
	return nil, os.ErrNotExist
}

func ptr(s string) *string { return &s }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRunner_Run(t *testing.T) {
	fs := filesystem.NewInMemoryFileSystem()
	reader := mockFileReader{"/cfg/bin/hello.bin": {0xB4, 0x0E, 0xCD, 0x20}}

	cfg := config.Config{
		Disk: config.Disk{Image: "out/osle.img"},
		Files: []config.File{
			{Path: "/hello.txt", Content: ptr("hi")},
			{Path: "/bin/hello", Source: ptr("bin/hello.bin"), Executable: true},
		},
	}

	r := New(testLogger(), WithFileSystem(fs), WithFileReader(reader))
	require.NoError(t, r.Run(context.Background(), cfg, "/cfg"))

	d, err := disk.Open(fs, "/cfg/out/osle.img")
	require.NoError(t, err)
	assert.Equal(t, []disk.Entry{
		{Handle: 0, Path: "/hello.txt", Size: 2},
		{Handle: 1, Path: "/bin/hello", Size: 4, Executable: true},
	}, d.List())

	_, b, err := d.Find("/bin/hello")
	require.NoError(t, err)
	content, err := b.Content()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB4, 0x0E, 0xCD, 0x20}, content)
}

func TestRunner_RunReplacesExistingFiles(t *testing.T) {
	fs := filesystem.NewInMemoryFileSystem()
	r := New(testLogger(), WithFileSystem(fs))

	first := config.Config{
		Disk:  config.Disk{Image: "osle.img"},
		Files: []config.File{{Path: "/notes", Content: ptr("a much longer first version")}, {Path: "/keep", Content: ptr("k")}},
	}
	require.NoError(t, r.Run(context.Background(), first, "/w"))

	second := config.Config{
		Disk:  config.Disk{Image: "osle.img"},
		Files: []config.File{{Path: "/notes", Content: ptr("v2")}},
	}
	require.NoError(t, r.Run(context.Background(), second, "/w"))

	d, err := disk.Open(fs, "/w/osle.img")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	h, b, err := d.Find("/notes")
	require.NoError(t, err)
	assert.Equal(t, disk.Handle(0), h)
	content, err := b.Content()
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), content)
}

func TestRunner_RunWithBootArea(t *testing.T) {
	fs := filesystem.NewInMemoryFileSystem()
	r := New(testLogger(), WithFileSystem(fs))

	cfg := config.Config{
		Disk:  config.Disk{Image: "osle.img", Offset: 1024},
		Files: []config.File{{Path: "/a", Content: ptr("x")}},
	}
	require.NoError(t, r.Run(context.Background(), cfg, "/w"))

	image, err := fs.ReadFile("/w/osle.img")
	require.NoError(t, err)
	assert.Len(t, image, 1024+disk.FileAreaSize)
	assert.Equal(t, byte('/'), image[1024])
}

func TestRunner_RunErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.Config
		check func(t *testing.T, err error)
	}{
		{
			name: "missing source",
			cfg: config.Config{
				Disk:  config.Disk{Image: "osle.img"},
				Files: []config.File{{Path: "/a", Source: ptr("missing.bin")}},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, os.ErrNotExist))
			},
		},
		{
			name: "path too long is refused before any interrupt",
			cfg: config.Config{
				Disk:  config.Disk{Image: "osle.img"},
				Files: []config.File{{Path: "/this-path-is-far-too-long", Content: ptr("x")}},
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, fsblock.ErrPathTooLong)
			},
		},
		{
			name: "more files than the table holds",
			cfg: func() config.Config {
				cfg := config.Config{Disk: config.Disk{Image: "osle.img"}}
				for i := 0; i <= fsblock.Files; i++ {
					cfg.Files = append(cfg.Files, config.File{Path: fmt.Sprintf("/f%02d", i), Content: ptr("x")})
				}
				return cfg
			}(),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, abi.ErrCarry)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(testLogger(), WithFileSystem(filesystem.NewInMemoryFileSystem()), WithFileReader(mockFileReader{}))
			err := r.Run(context.Background(), tt.cfg, "/w")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRunner_OnRealFileSystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("read me"), 0o644))

	cfg := config.Config{
		Disk:    config.Disk{Image: "build/osle.img"},
		Console: config.Console{Newline: string(console.NewlineNever)},
		Files:   []config.File{{Path: "/readme.txt", Source: ptr("readme.txt")}},
	}
	require.NoError(t, cfg.ValidateConfig(dir))
	require.NoError(t, New(testLogger()).Run(context.Background(), cfg, dir))

	info, err := os.Stat(filepath.Join(dir, "build", "osle.img"))
	require.NoError(t, err)
	assert.Equal(t, int64(disk.FileAreaSize), info.Size())
}
