package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewLayersCommand creates the layers command.
func NewLayersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Show the translation layers",
		Long: `Order discovered models into translation layers.

Layer 1 contains models with no cross-model dependencies; each later layer
contains models whose dependencies are fully satisfied by earlier layers.
A dependency cycle collapses the remaining models into one final layer.`,
		RunE: runLayers,
	}
	return cmd
}

func runLayers(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := cc.Engine.Discover(); err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	deps := cc.Engine.DependencyMap()
	layers := cc.Engine.Layers()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Layer", "Model", "Depends On"})

	for _, layer := range layers {
		for _, name := range layer.Models {
			t.AppendRow(table.Row{
				layer.Index,
				name,
				strings.Join(deps.Records[name].DependsOn, ", "),
			})
		}
		t.AppendSeparator()
	}

	t.SetStyle(table.StyleLight)
	t.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d models in %d layers\n", len(deps.Names), len(layers))
	return nil
}
