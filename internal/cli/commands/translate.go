package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semabridge/internal/translate"
)

// NewTranslateCommand creates the translate command.
func NewTranslateCommand() *cobra.Command {
	var asFilter bool
	var modelName string

	cmd := &cobra.Command{
		Use:   "translate <expression>",
		Short: "Translate a single expression to target syntax",
		Long: `Translate one raw expression to target formula syntax and print the
result. Useful for debugging model definitions.`,
		Example: `  semabridge translate "CASE WHEN status = 'done' THEN 1 ELSE 0 END"
  semabridge translate --filter --model orders "{{ Dimension('order_id__status') }} = 'done'"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			tr := translate.New(cfg.DisplayNames)

			var out string
			if asFilter {
				out = tr.TranslateFilter(args[0], modelName)
			} else {
				out = tr.Translate(args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asFilter, "filter", false, "Translate as a filter clause")
	cmd.Flags().StringVar(&modelName, "model", "", "Model name for filter translation")

	return cmd
}
