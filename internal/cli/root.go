package cli

import (
	"github.com/spf13/cobra"

	"khata/internal/config"
	"khata/internal/log"
)

// env is the configuration shared by every subcommand, filled in before any
// of them runs.
var env struct {
	file   string
	cfg    *config.Config
	policy config.ReportPolicy
	logger *log.Logger
}

var rootCmd = &cobra.Command{
	Use:   "khata",
	Short: "Ledger and reporting engine for suppliers, loans and spends",
	Long: `khata records supplier purchases and payments, money lent to and
borrowed from people, and personal spends, and derives balances, outstanding
lists, period totals, category breakdowns and a dashboard summary from them.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env.file, "env-file", "", "Load environment variables from this file (default ./.env if present)")
}

func setup(cmd *cobra.Command, args []string) error {
	if err := LoadEnvFile(env.file); err != nil {
		return err
	}
	cfg, policy, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	env.cfg, env.policy = cfg, policy
	env.logger = SetupLogger(cfg)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
