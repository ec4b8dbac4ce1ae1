package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reunite-labs/petmatch/internal/model"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Manage lost and found reports",
}

// -- reports import --

var reportsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import reports from a JSON file",
	Long:  "Reads a JSON array of reports and inserts them. Useful for loading shelter intake batches.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "reports import: read file")
		}

		var reports []model.Report
		if err := json.Unmarshal(data, &reports); err != nil {
			return eris.Wrap(err, "reports import: parse JSON")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		imported := 0
		for _, r := range reports {
			if r.ReportType != model.ReportTypeLost && r.ReportType != model.ReportTypeFound {
				zap.L().Warn("skipping report with invalid type",
					zap.String("report_type", string(r.ReportType)))
				continue
			}
			if r.ReporterID == "" || r.Species == "" {
				zap.L().Warn("skipping report missing reporter_id or species")
				continue
			}
			if _, err := st.CreateReport(ctx, r); err != nil {
				return eris.Wrap(err, "reports import: insert")
			}
			imported++
		}

		zap.L().Info("reports imported",
			zap.Int("imported", imported),
			zap.Int("skipped", len(reports)-imported))
		return nil
	},
}

// -- reports show --

var reportsShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show full details of a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		report, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "reports show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// -- reports resolve --

var reportsResolveCmd = &cobra.Command{
	Use:   "resolve <report-id>",
	Short: "Mark a report resolved so it leaves the matching pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.ResolveReport(ctx, args[0]); err != nil {
			return eris.Wrap(err, "reports resolve")
		}

		zap.L().Info("report resolved", zap.String("report_id", args[0]))
		return nil
	},
}

func init() {
	reportsCmd.AddCommand(reportsImportCmd)
	reportsCmd.AddCommand(reportsShowCmd)
	reportsCmd.AddCommand(reportsResolveCmd)
	rootCmd.AddCommand(reportsCmd)
}
