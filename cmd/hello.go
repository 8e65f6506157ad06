package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/drumato/osle-sdk/config"
	"github.com/drumato/osle-sdk/console"
	"github.com/drumato/osle-sdk/memory"
	"github.com/drumato/osle-sdk/runner"
	"github.com/drumato/osle-sdk/sdk"
	"github.com/drumato/osle-sdk/structopt"
	"github.com/spf13/cobra"
)

const greetingPtr memory.Ptr = 0x0100

// Hello is the example user program: it greets, echoes its arguments with their
// length and returns to the OS.
func Hello(p *sdk.Program) {
	p.Segment().WriteCString(greetingPtr, "Hello, world!")
	p.Println(greetingPtr)

	if p.Args() != "" {
		p.PrintString("args: ")
		p.Println(memory.ArgsOffset)
		p.PrintString("length: ")
		p.PrintHex(p.StringLenght(memory.ArgsOffset))
		p.PrintString("\n")
	}
	p.ReturnToOSle()
}

func newHelloCommand() *cobra.Command {
	c := cobra.Command{
		Use:   "hello [IMAGE]",
		Short: "Run the example program on the reference machine",
		Long: "Run the example program on the reference machine. Image, offset, newline mode\n" +
			"and arguments come from --config when given; flags and IMAGE override them.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			configDir := "."
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				loaded, err := loadManifest(path, "")
				if err != nil {
					return err
				}
				cfg = loaded
				configDir = filepath.Dir(path)
			}

			set, err := flagOverrides(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				set.Disk.Image = &args[0]
			}
			structopt.Overlay(&cfg, &set)
			if cfg.Disk.Image == "" {
				return errors.New("an image is required: pass IMAGE or --config")
			}

			mode, err := console.ParseNewlineMode(cfg.Console.Newline)
			if err != nil {
				return err
			}
			r := runner.New(slog.Default(), runner.WithStdout(cmd.OutOrStdout()))
			m, err := r.Machine(cfg.ImagePath(configDir), cfg.Disk.Offset, mode)
			if err != nil {
				return err
			}
			return m.Run(cmd.Context(), cfg.Args, Hello)
		},
	}

	c.Flags().StringP("config", "c", "", "Path to config file")
	c.Flags().String("args", "", "Argument string placed in the program segment")
	c.Flags().String("newline", "auto", "Teletype newline translation: auto, always or never")
	return &c
}
