// Package store persists reports and match alerts. Two drivers implement
// the same interface: an embedded SQLite database and PostgreSQL.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/reunite-labs/petmatch/internal/model"
)

// ErrNotFound is returned when the referenced report or alert does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrInvalidTransition is returned when a match alert status change is not
// allowed: only pending alerts may move to dismissed or confirmed.
var ErrInvalidTransition = eris.New("store: invalid status transition")

// AlertFilter specifies criteria for listing match alerts.
type AlertFilter struct {
	UserID       string            `json:"user_id,omitempty"`
	LostReportID string            `json:"lost_report_id,omitempty"`
	Status       model.AlertStatus `json:"status,omitempty"`
	Limit        int               `json:"limit,omitempty"`
	Offset       int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the matching engine.
type Store interface {
	// Reports
	CreateReport(ctx context.Context, r model.Report) (*model.Report, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListOpenLostReports(ctx context.Context) ([]model.Report, error)
	// FindCandidates returns open found-type reports with the same species
	// as the lost report, excluding the lost reporter's own reports.
	FindCandidates(ctx context.Context, lost model.Report) ([]model.Report, error)
	// SetReportVector stores the image embedding for a report. Vectors are
	// immutable: a report that already has one is left unchanged.
	SetReportVector(ctx context.Context, reportID string, vec []float64) error
	ResolveReport(ctx context.Context, reportID string) error

	// Match alerts
	// CreateAlertIfAbsent inserts the alert unless one already exists for
	// the same (lost, found) pair, in which case the existing alert is
	// returned unchanged. The returned bool reports whether a row was
	// created. The check-then-insert is atomic at the database layer.
	CreateAlertIfAbsent(ctx context.Context, alert model.MatchAlert) (*model.MatchAlert, bool, error)
	GetAlert(ctx context.Context, id string) (*model.MatchAlert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]model.MatchAlert, error)
	// SetAlertStatus applies a review decision. Legal transitions are
	// pending->dismissed and pending->confirmed only.
	SetAlertStatus(ctx context.Context, alertID string, status model.AlertStatus) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
