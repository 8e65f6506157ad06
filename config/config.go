package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/drumato/osle-sdk/console"
	"github.com/drumato/osle-sdk/fsblock"
	"github.com/drumato/osle-sdk/memory"
	"gopkg.in/yaml.v3"
)

// Config is the manifest of a boot medium image
type Config struct {
	Disk    Disk    `yaml:"disk"`
	Console Console `yaml:"console"`
	Args    string  `yaml:"args"`
	Files   []File  `yaml:"files"`
}

type Disk struct {
	Image string `yaml:"image"`
	// Offset is the size of the boot area in front of the file table
	Offset int `yaml:"offset"`
}

type Console struct {
	Newline string `yaml:"newline"`
}

// File is one record to place on the disk. Exactly one of Source and Content is set.
type File struct {
	Path       string  `yaml:"path"`
	Source     *string `yaml:"source"`
	Content    *string `yaml:"content"`
	Executable bool    `yaml:"executable"`
}

// FileReader interface for reading files (allows dependency injection for testing)
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileReader implements FileReader using standard library
type DefaultFileReader struct{}

func (dfr *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close() // In read-only context, close errors are typically not actionable
	}()
	return io.ReadAll(file)
}

// Load decodes a manifest, rejecting unknown keys
func Load(r io.Reader) (Config, error) {
	cfg := Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, errors.New("config is empty")
		}
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func resolve(configDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(configDir, p)
}

// ImagePath returns the image location, resolving relative paths against configDir
func (c *Config) ImagePath(configDir string) string {
	return resolve(configDir, c.Disk.Image)
}

// LoadContent returns the bytes to store for f
func (f *File) LoadContent(fileReader FileReader, configDir string) ([]byte, error) {
	if f.Content != nil {
		return []byte(*f.Content), nil
	}
	if f.Source == nil {
		return nil, fmt.Errorf("file %s has neither source nor content", f.Path)
	}

	sourcePath := resolve(configDir, *f.Source)
	data, err := fileReader.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source %s for %s: %w", sourcePath, f.Path, err)
	}
	return data, nil
}

// Validate checks the file entry on its own
func (f *File) Validate(fileReader FileReader, configDir string) error {
	if err := fsblock.CheckPath(f.Path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if (f.Source == nil) == (f.Content == nil) {
		return fmt.Errorf("file %s must set exactly one of source and content", f.Path)
	}

	data, err := f.LoadContent(fileReader, configDir)
	if err != nil {
		return err
	}
	if len(data) > fsblock.DataSize {
		return fmt.Errorf("file %s is %d bytes, limit is %d", f.Path, len(data), fsblock.DataSize)
	}
	return nil
}

// ValidateConfig validates the whole manifest before any image is touched
func (c *Config) ValidateConfig(configDir string) error {
	return c.validate(&DefaultFileReader{}, configDir)
}

func (c *Config) validate(fileReader FileReader, configDir string) error {
	if c.Disk.Image == "" {
		return errors.New("disk.image must be set")
	}
	if c.Disk.Offset < 0 {
		return fmt.Errorf("disk.offset must not be negative, got %d", c.Disk.Offset)
	}
	if _, err := console.ParseNewlineMode(c.Console.Newline); err != nil {
		return fmt.Errorf("console.newline: %w", err)
	}
	if len(c.Args) >= memory.ArgsSize {
		return fmt.Errorf("args are %d bytes, the argument buffer holds %d", len(c.Args), memory.ArgsSize-1)
	}
	if len(c.Files) > fsblock.Files {
		return fmt.Errorf("config lists %d files, the disk holds %d", len(c.Files), fsblock.Files)
	}

	seen := map[string]int{}
	for i := range c.Files {
		f := &c.Files[i]
		if prev, dup := seen[f.Path]; dup {
			return fmt.Errorf("files[%d]: path %s duplicates files[%d]", i, f.Path, prev)
		}
		seen[f.Path] = i
		if err := f.Validate(fileReader, configDir); err != nil {
			return fmt.Errorf("files[%d]: %w", i, err)
		}
	}
	return nil
}
