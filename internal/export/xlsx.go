// Package export writes match alerts to spreadsheet files for sharing
// with shelters and rescue groups.
package export

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/reunite-labs/petmatch/internal/model"
)

var alertHeader = []string{
	"Alert ID", "User ID", "Lost Report", "Found Report",
	"Score", "Level", "Status",
	"Species Match", "Breed Match", "Visual Tier", "Visual Similarity",
	"Distance (km)", "Days Apart", "Created",
}

// WriteAlertsXLSX writes alerts to an XLSX file at path, one row per
// alert with the score breakdown flattened into columns.
func WriteAlertsXLSX(path string, alerts []model.MatchAlert) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Match Alerts")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range alertHeader {
		header.AddCell().SetString(h)
	}

	for _, a := range alerts {
		row := sheet.AddRow()
		row.AddCell().SetString(a.ID)
		row.AddCell().SetString(a.UserID)
		row.AddCell().SetString(a.LostReportID)
		row.AddCell().SetString(a.FoundReportID)
		row.AddCell().SetInt(a.MatchScore)
		row.AddCell().SetString(string(a.MatchLevel))
		row.AddCell().SetString(string(a.Status))
		row.AddCell().SetString(strconv.FormatBool(a.MatchDetails.SpeciesMatch))
		row.AddCell().SetString(strconv.FormatBool(a.MatchDetails.BreedMatch))
		row.AddCell().SetString(string(a.MatchDetails.VisualTier))
		row.AddCell().SetString(formatOptFloat(a.MatchDetails.VisualSimilarity, "%.4f"))
		row.AddCell().SetString(formatOptFloat(a.MatchDetails.DistanceKm, "%.1f"))
		row.AddCell().SetString(formatOptInt(a.MatchDetails.DaysDifference))
		row.AddCell().SetString(a.CreatedAt.Format("2006-01-02 15:04"))
	}

	return eris.Wrap(f.Save(path), "xlsx: save file")
}

func formatOptFloat(v *float64, format string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}

func formatOptInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
