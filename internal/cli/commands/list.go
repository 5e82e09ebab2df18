package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all models and their dependencies",
		RunE:  runList,
	}
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := cc.Engine.Discover(); err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	deps := cc.Engine.DependencyMap()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Model", "Entities", "Measures", "Depends On"})

	for _, m := range cc.Engine.Models() {
		rec := deps.Records[m.Name]
		t.AppendRow(table.Row{
			m.Name,
			len(m.Entities),
			len(m.Measures),
			strings.Join(rec.DependsOn, ", "),
		})
	}

	t.SetStyle(table.StyleLight)
	t.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d models total\n", len(cc.Engine.Models()))
	return nil
}
