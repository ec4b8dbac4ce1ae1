package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reunite-labs/petmatch/internal/export"
	"github.com/reunite-labs/petmatch/internal/model"
	"github.com/reunite-labs/petmatch/internal/store"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect and review match alerts",
	Long:  "Commands for listing, reviewing, and exporting match alerts.",
}

// -- alerts list --

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List match alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		alerts, err := st.ListAlerts(ctx, alertFilterFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "alerts list")
		}

		if len(alerts) == 0 {
			fmt.Fprintln(os.Stderr, "No alerts found.")
			return nil
		}

		format, _ := cmd.Flags().GetString("output")
		return writeAlerts(os.Stdout, alerts, format)
	},
}

// -- alerts show --

var alertsShowCmd = &cobra.Command{
	Use:   "show <alert-id>",
	Short: "Show full details of an alert",
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

		alert, err := st.GetAlert(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "alerts show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(alert)
	},
}

// -- alerts dismiss / confirm --

func alertStatusCmd(use, short string, status model.AlertStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
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

			if err := st.SetAlertStatus(ctx, args[0], status); err != nil {
				return eris.Wrapf(err, "alerts %s", status)
			}

			zap.L().Info("alert updated",
				zap.String("alert_id", args[0]),
				zap.String("status", string(status)))
			return nil
		},
	}
}

// -- alerts export --

var alertsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export match alerts to an XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		alerts, err := st.ListAlerts(ctx, alertFilterFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "alerts export")
		}

		out, _ := cmd.Flags().GetString("out")
		if err := export.WriteAlertsXLSX(out, alerts); err != nil {
			return err
		}

		zap.L().Info("alerts exported",
			zap.String("file", out),
			zap.Int("count", len(alerts)))
		return nil
	},
}

func alertFilterFromFlags(cmd *cobra.Command) store.AlertFilter {
	user, _ := cmd.Flags().GetString("user")
	lost, _ := cmd.Flags().GetString("lost")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	return store.AlertFilter{
		UserID:       user,
		LostReportID: lost,
		Status:       model.AlertStatus(status),
		Limit:        limit,
	}
}

func addAlertFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "filter by owner user ID")
	cmd.Flags().String("lost", "", "filter by lost report ID")
	cmd.Flags().String("status", "", "filter by alert status (pending, dismissed, confirmed)")
	cmd.Flags().Int("limit", 50, "max number of alerts")
}

func init() {
	addAlertFilterFlags(alertsListCmd)
	alertsListCmd.Flags().String("output", "table", "output format (table, json, yaml)")

	addAlertFilterFlags(alertsExportCmd)
	alertsExportCmd.Flags().String("out", "alerts.xlsx", "output file path")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsShowCmd)
	alertsCmd.AddCommand(alertStatusCmd("dismiss <alert-id>", "Dismiss a pending alert", model.AlertStatusDismissed))
	alertsCmd.AddCommand(alertStatusCmd("confirm <alert-id>", "Confirm a pending alert as a reunion", model.AlertStatusConfirmed))
	alertsCmd.AddCommand(alertsExportCmd)
	rootCmd.AddCommand(alertsCmd)
}
