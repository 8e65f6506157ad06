package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/drumato/osle-sdk/disk"
	"github.com/drumato/osle-sdk/fsblock"
	"github.com/drumato/osle-sdk/jsonpath"
	"github.com/drumato/osle-sdk/runner"
	"github.com/spf13/cobra"
	kyaml "sigs.k8s.io/yaml"
)

// Listing is the machine-readable form of `osle ls`.
type Listing struct {
	Image    string       `json:"image"`
	Count    int          `json:"count"`
	Capacity int          `json:"capacity"`
	Files    []disk.Entry `json:"files"`
}

func newListCommand() *cobra.Command {
	c := cobra.Command{
		Use:   "ls IMAGE",
		Short: "List the files stored in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openExisting(cmd, args[0])
			if err != nil {
				return err
			}
			entries := d.List()
			listing := Listing{
				Image:    args[0],
				Count:    len(entries),
				Capacity: fsblock.Files,
				Files:    entries,
			}
			if listing.Files == nil {
				listing.Files = []disk.Entry{}
			}

			out := cmd.OutOrStdout()
			if expr, _ := cmd.Flags().GetString("jsonpath"); expr != "" {
				v, err := jsonpath.NewPathEvaluator(slog.Default()).Lookup(listing, expr)
				if err != nil {
					return err
				}
				s, err := jsonpath.Format(v)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, s)
				return err
			}

			format, _ := cmd.Flags().GetString("output")
			switch format {
			case "yaml":
				b, err := kyaml.Marshal(listing)
				if err != nil {
					return fmt.Errorf("failed to marshal listing to yaml: %w", err)
				}
				_, err = out.Write(b)
				return err
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(listing)
			case "", "table":
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "HANDLE\tFLAGS\tSIZE\tPATH")
				for _, e := range entries {
					flags := "-"
					if e.Executable {
						flags = "x"
					}
					fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", e.Handle, flags, e.Size, e.Path)
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
		},
	}

	c.Flags().StringP("output", "o", "table", "Output format: table, yaml or json")
	c.Flags().String("jsonpath", "", "Print the result of a JSONPath expression over the listing")
	return &c
}

func newCatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat IMAGE PATH",
		Short: "Print the content of a file stored in an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openExisting(cmd, args[0])
			if err != nil {
				return err
			}
			_, b, err := d.Find(args[1])
			if err != nil {
				return err
			}
			content, err := b.Content()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
}

func newPutCommand() *cobra.Command {
	c := cobra.Command{
		Use:   "put IMAGE PATH FILE",
		Short: "Store a host file in an image, creating the image if needed",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			executable, err := cmd.Flags().GetBool("exec")
			if err != nil {
				return err
			}
			r, offset, mode, err := newRunner(cmd)
			if err != nil {
				return err
			}
			m, err := r.Machine(args[0], offset, mode)
			if err != nil {
				return err
			}
			return r.Store(cmd.Context(), m, []runner.Entry{{Path: args[1], Data: data, Executable: executable}})
		},
	}

	c.Flags().Bool("exec", false, "Mark the file executable")
	c.Flags().String("newline", "auto", "Teletype newline translation: auto, always or never")
	return &c
}
