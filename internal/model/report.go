package model

import "time"

// ReportType distinguishes a lost-pet report from a found-pet sighting.
type ReportType string

const (
	ReportTypeLost  ReportType = "lost"
	ReportTypeFound ReportType = "found"
)

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	ReportStatusOpen     ReportStatus = "open"
	ReportStatusResolved ReportStatus = "resolved"
)

// Report is a user-submitted lost or found pet sighting.
type Report struct {
	ID         string       `json:"id"`
	ReportType ReportType   `json:"report_type"`
	Status     ReportStatus `json:"status"`
	ReporterID string       `json:"reporter_id"`

	Species string `json:"species"`
	Breed   string `json:"breed,omitempty"`
	Color   string `json:"color,omitempty"`
	Sex     string `json:"sex,omitempty"`

	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// OccurredAt is when the animal was lost/found, not when the record
	// was created.
	OccurredAt *time.Time `json:"occurred_at,omitempty"`

	// ImageVector is the visual embedding of the primary photo. Nil until
	// first computed; never recomputed for the same photo.
	ImageVector []float64 `json:"image_vector,omitempty"`

	// Photos is ordered; the first entry is the primary photo.
	Photos []string `json:"photos,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCoordinates reports whether the report carries a usable lat/lon pair.
func (r Report) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// PrimaryPhoto returns the first photo reference, or "" when none exist.
func (r Report) PrimaryPhoto() string {
	if len(r.Photos) == 0 {
		return ""
	}
	return r.Photos[0]
}
