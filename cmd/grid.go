// File: cmd/grid.go
package cmd

import (
	"fmt"
	"image"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/grid"
)

// newGridCmd creates the `grid` command, which prints the cell geometry the
// session would use. Handy for checking what a coordinate like "ab07" means
// on a given display before running anything.
func newGridCmd() *cobra.Command {
	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "Prints the session grid geometry for a display size",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("session.rows", cmd.Flags().Lookup("rows")); err != nil {
				return err
			}
			return viper.BindPFlag("session.cols", cmd.Flags().Lookup("cols"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			width, _ := cmd.Flags().GetInt("width")
			height, _ := cmd.Flags().GetInt("height")
			cell, _ := cmd.Flags().GetString("cell")

			g, err := grid.Build(image.Rect(0, 0, width, height), cfg.Session.Rows, cfg.Session.Cols)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			last := grid.Label(g.Rows()-1, g.Cols()-1)
			fmt.Fprintf(out, "display  %dx%d\n", width, height)
			fmt.Fprintf(out, "grid     %d rows x %d cols (aa01 .. %s)\n", g.Rows(), g.Cols(), last)
			fmt.Fprintf(out, "cell     ~%dx%d px\n", width/g.Cols(), height/g.Rows())

			if cell != "" {
				pt, err := g.Resolve(cell)
				if err != nil {
					return err
				}
				rect, _ := g.CellRect(cell)
				fmt.Fprintf(out, "%s     center (%d,%d), rect %v\n", cell, pt.X, pt.Y, rect)
			}
			return nil
		},
	}

	gridCmd.Flags().Int("width", 1920, "Display width in pixels.")
	gridCmd.Flags().Int("height", 1080, "Display height in pixels.")
	gridCmd.Flags().Int("rows", 0, "Grid rows. (Overrides config/env)")
	gridCmd.Flags().Int("cols", 0, "Grid columns. (Overrides config/env)")
	gridCmd.Flags().String("cell", "", "Resolve a specific cell reference, e.g. ab07.")

	return gridCmd
}
