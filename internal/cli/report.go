package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"khata/internal/core"
	"khata/internal/report"
	"khata/internal/services"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a report for one owner as JSON",
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Dashboard summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReports(cmd, func(reports *services.ReportService, ownerID string) (any, error) {
			sum, err := reports.Summary(cmd.Context(), ownerID)
			if err != nil {
				return nil, err
			}
			sum.TopCategories = report.Rounded(sum.TopCategories)
			return sum, nil
		})
	},
}

var reportOutstandingCmd = &cobra.Command{
	Use:   "outstanding",
	Short: "Ranked non-zero balances of suppliers or persons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		k := core.CounterpartyKind(strings.ToLower(kind))
		if !k.Valid() {
			return fmt.Errorf("invalid kind %q: must be supplier or person", kind)
		}
		return withReports(cmd, func(reports *services.ReportService, ownerID string) (any, error) {
			return reports.Outstanding(cmd.Context(), ownerID, k, reports.Policy().RankPolicy())
		})
	},
}

var reportDuesCmd = &cobra.Command{
	Use:   "dues",
	Short: "Supplier balances that are overdue or due soon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("within-days")
		return withReports(cmd, func(reports *services.ReportService, ownerID string) (any, error) {
			return reports.Dues(cmd.Context(), ownerID, services.WindowChecker{SoonDays: days})
		})
	},
}

var reportCrossCheckCmd = &cobra.Command{
	Use:   "crosscheck",
	Short: "Entities whose balance disagrees with their monthly totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReports(cmd, func(reports *services.ReportService, ownerID string) (any, error) {
			return reports.CrossCheck(cmd.Context(), ownerID)
		})
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportSummaryCmd, reportOutstandingCmd, reportDuesCmd, reportCrossCheckCmd)
	reportCmd.PersistentFlags().String("owner", "", "Owner whose records are reported (required)")
	_ = reportCmd.MarkPersistentFlagRequired("owner")
	reportOutstandingCmd.Flags().String("kind", string(core.Supplier), "supplier or person")
	reportDuesCmd.Flags().Int("within-days", 7, "Days ahead that count as due soon")
}

func withReports(cmd *cobra.Command, fn func(*services.ReportService, string) (any, error)) error {
	ownerID, _ := cmd.Flags().GetString("owner")
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := fn(a.reports, strings.TrimSpace(ownerID))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), v)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
