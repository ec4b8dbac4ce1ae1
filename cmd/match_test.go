package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/reunite-labs/petmatch/internal/model"
)

func sampleAlerts() []model.MatchAlert {
	return []model.MatchAlert{
		{
			ID:            "aaaaaaaa-1111-2222-3333-444444444444",
			UserID:        "owner",
			LostReportID:  "llllllll-1111-2222-3333-444444444444",
			FoundReportID: "ffffffff-1111-2222-3333-444444444444",
			MatchScore:    90,
			MatchLevel:    model.MatchLevelHigh,
			Status:        model.AlertStatusPending,
			CreatedAt:     time.Date(2026, 6, 5, 9, 30, 0, 0, time.UTC),
		},
	}
}

func TestWriteAlertsTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeAlerts(&buf, sampleAlerts(), "table"))

	out := buf.String()
	assert.Contains(t, out, "SCORE")
	assert.Contains(t, out, "aaaaaaaa")
	assert.Contains(t, out, "90")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "2026-06-05 09:30")
	// IDs are truncated for display.
	assert.NotContains(t, out, "aaaaaaaa-1111")
}

func TestWriteAlertsJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeAlerts(&buf, sampleAlerts(), "json"))

	var decoded []model.MatchAlert
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, 90, decoded[0].MatchScore)
}

func TestWriteAlertsYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeAlerts(&buf, sampleAlerts(), "yaml"))

	var decoded []model.MatchAlert
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, model.MatchLevelHigh, decoded[0].MatchLevel)
}

func TestWriteAlertsUnknownFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := writeAlerts(&buf, sampleAlerts(), "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestTruncateID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "aaaaaaaa", truncateID("aaaaaaaa-1111-2222"))
	assert.Equal(t, "short", truncateID("short"))
}
