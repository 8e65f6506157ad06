package cmd

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/drumato/osle-sdk/config"
	"github.com/drumato/osle-sdk/console"
	"github.com/drumato/osle-sdk/disk"
	"github.com/drumato/osle-sdk/filesystem"
	"github.com/drumato/osle-sdk/runner"
	"github.com/drumato/osle-sdk/structopt"
	"github.com/drumato/osle-sdk/template"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	c := cobra.Command{
		Use:           "osle",
		Short:         "Build and inspect OSle boot medium images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c.PersistentFlags().Int("offset", 0, "Size in bytes of the boot area in front of the file table")

	c.AddCommand(newBuildCommand())
	c.AddCommand(newListCommand())
	c.AddCommand(newCatCommand())
	c.AddCommand(newPutCommand())
	c.AddCommand(newHelloCommand())
	return &c
}

func newBuildCommand() *cobra.Command {
	c := cobra.Command{
		Use:   "build",
		Short: "Build or update an image from a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFilePath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			valuesPath, err := cmd.Flags().GetString("values")
			if err != nil {
				return err
			}

			cfg, err := loadManifest(configFilePath, valuesPath)
			if err != nil {
				return err
			}
			set, err := flagOverrides(cmd)
			if err != nil {
				return err
			}
			structopt.Overlay(&cfg, &set)

			// Extract config directory for relative path calculations
			configDir := filepath.Dir(configFilePath)

			// Validate configuration before running
			if err := cfg.ValidateConfig(configDir); err != nil {
				slog.Error("Configuration validation failed", "error", err)
				return err
			}

			r := runner.New(slog.Default(), runner.WithStdout(cmd.OutOrStdout()))
			return r.Run(cmd.Context(), cfg, configDir)
		},
	}

	c.Flags().StringP("config", "c", "osle.yaml", "Path to config file")
	c.Flags().String("values", "", "Values file; when set the config is rendered as a template first")
	c.Flags().String("image", "", "Override disk.image from the config")
	return &c
}

// loadManifest reads the config at path, rendering it with valuesPath first when set.
func loadManifest(path, valuesPath string) (cfg config.Config, err error) {
	f, err := os.Open(path)
	if err != nil {
		return config.Config{}, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	raw, err := io.ReadAll(f)
	if err != nil {
		return config.Config{}, err
	}
	if valuesPath == "" {
		if template.HasTemplateVars(raw) {
			return config.Config{}, fmt.Errorf("%s contains template actions; pass --values to render it", path)
		}
		return config.Load(bytes.NewReader(raw))
	}

	rendered, err := template.New(slog.Default()).Render(bytes.NewReader(raw), valuesPath)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(bytes.NewReader(rendered))
}

// overrides mirrors the config fields a flag can set. A nil field was not given on
// the command line; a non-nil one wins over the manifest even when it is zero.
type overrides struct {
	Disk struct {
		Image  *string
		Offset *int
	}
	Console struct {
		Newline *string
	}
	Args *string
}

// flagOverrides collects the config fields set explicitly on the command line.
func flagOverrides(cmd *cobra.Command) (overrides, error) {
	var o overrides
	flags := cmd.Flags()
	changed := func(name string) bool {
		return flags.Lookup(name) != nil && flags.Changed(name)
	}
	if changed("image") {
		v, err := flags.GetString("image")
		if err != nil {
			return o, err
		}
		o.Disk.Image = &v
	}
	if changed("offset") {
		v, err := flags.GetInt("offset")
		if err != nil {
			return o, err
		}
		o.Disk.Offset = &v
	}
	if changed("newline") {
		v, err := flags.GetString("newline")
		if err != nil {
			return o, err
		}
		o.Console.Newline = &v
	}
	if changed("args") {
		v, err := flags.GetString("args")
		if err != nil {
			return o, err
		}
		o.Args = &v
	}
	return o, nil
}

// openExisting opens an image that must already exist; Open would format a missing one.
func openExisting(cmd *cobra.Command, imagePath string) (*disk.Disk, error) {
	offset, err := cmd.Flags().GetInt("offset")
	if err != nil {
		return nil, err
	}
	fs := filesystem.NewDefaultFileSystem()
	if !fs.Exists(imagePath) {
		return nil, fmt.Errorf("image %s does not exist", imagePath)
	}
	return disk.Open(fs, imagePath, disk.WithOffset(offset), disk.WithLogger(slog.Default()))
}

// newRunner returns a runner whose machine prints to the command output.
func newRunner(cmd *cobra.Command) (*runner.Runner, int, console.NewlineMode, error) {
	offset, err := cmd.Flags().GetInt("offset")
	if err != nil {
		return nil, 0, "", err
	}
	newline, err := cmd.Flags().GetString("newline")
	if err != nil {
		return nil, 0, "", err
	}
	mode, err := console.ParseNewlineMode(newline)
	if err != nil {
		return nil, 0, "", err
	}
	return runner.New(slog.Default(), runner.WithStdout(cmd.OutOrStdout())), offset, mode, nil
}
