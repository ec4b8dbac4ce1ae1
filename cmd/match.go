package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reunite-labs/petmatch/internal/model"
)

var matchOutput string

var matchCmd = &cobra.Command{
	Use:   "match <lost-report-id>",
	Short: "Run matching for a single lost report",
	Long:  "Scores every open found report of the same species against the lost report and persists an alert for each candidate at or above the minimum score.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		alerts, err := env.Matcher.RunMatching(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "match")
		}

		if len(alerts) == 0 {
			fmt.Fprintln(os.Stderr, "No matches found.")
			return nil
		}

		return writeAlerts(os.Stdout, alerts, matchOutput)
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchOutput, "output", "table", "output format (table, json, yaml)")
	rootCmd.AddCommand(matchCmd)
}

// writeAlerts renders alerts in the requested format.
func writeAlerts(out io.Writer, alerts []model.MatchAlert, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(alerts)
	case "yaml":
		return yaml.NewEncoder(out).Encode(alerts)
	case "table", "":
		formatAlertsTable(out, alerts)
		return nil
	default:
		return eris.Errorf("unsupported output format: %s", format)
	}
}

// formatAlertsTable writes a tabular list of alerts to out.
func formatAlertsTable(out io.Writer, alerts []model.MatchAlert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tLOST\tFOUND\tSCORE\tLEVEL\tSTATUS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t-----\t-----\t------\t-------")

	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			truncateID(a.ID),
			truncateID(a.LostReportID),
			truncateID(a.FoundReportID),
			a.MatchScore,
			a.MatchLevel,
			a.Status,
			a.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
