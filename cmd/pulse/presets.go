package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/polyinsider/pulse/internal/particle"
)

// presetsCmd lists effect presets as the dashboard would use them, including
// those from a presets file and configured physics.
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List effect presets and validate a presets file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		presets, err := cfg.Presets()
		if err != nil {
			return err
		}
		if cfg.PresetsFile != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n\n", cfg.PresetsFile)
		}
		return printPresets(cmd.OutOrStdout(), presets)
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}

func printPresets(w io.Writer, presets particle.Presets) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tCOUNT\tRATE\tSPEED\tLIFE\tGRAVITY\tFRICTION\tCOLORS")
	for _, name := range presets.Names() {
		p := presets[name]
		e := p.Emitter
		fmt.Fprintf(tw, "%s\t%s\t%d\t%g/s\t%g-%g\t%g-%g\t%g\t%g\t%d\n",
			name,
			e.Type,
			p.Count,
			e.Rate,
			e.Speed.Min, e.Speed.Max,
			e.Life.Min, e.Life.Max,
			p.Gravity,
			p.Friction,
			len(e.Colors),
		)
	}
	return tw.Flush()
}
