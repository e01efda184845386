package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse TEXT...",
	Short: "Suggest title, amount and category for a free-text spend",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := newParser(cmd.Context())
		if err != nil {
			return err
		}
		res, err := p.Parse(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
