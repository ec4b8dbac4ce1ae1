package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/reunite-labs/petmatch/internal/model"
)

// Pool is the subset of pgxpool.Pool the store relies on. pgxmock
// satisfies it too, which keeps the tests free of a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the given DSN and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	report_type  TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'open',
	reporter_id  TEXT NOT NULL,
	species      TEXT NOT NULL DEFAULT '',
	breed        TEXT NOT NULL DEFAULT '',
	color        TEXT NOT NULL DEFAULT '',
	sex          TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	latitude     DOUBLE PRECISION,
	longitude    DOUBLE PRECISION,
	occurred_at  TIMESTAMPTZ,
	image_vector JSONB,
	photos       JSONB NOT NULL DEFAULT '[]',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS match_alerts (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	lost_report_id  TEXT NOT NULL REFERENCES reports(id),
	found_report_id TEXT NOT NULL REFERENCES reports(id),
	match_score     INTEGER NOT NULL,
	match_level     TEXT NOT NULL,
	match_details   JSONB NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (lost_report_id, found_report_id)
);

CREATE INDEX IF NOT EXISTS idx_reports_candidates ON reports(report_type, status, species);
CREATE INDEX IF NOT EXISTS idx_reports_reporter ON reports(reporter_id);
CREATE INDEX IF NOT EXISTS idx_match_alerts_user ON match_alerts(user_id);
CREATE INDEX IF NOT EXISTS idx_match_alerts_lost ON match_alerts(lost_report_id);
CREATE INDEX IF NOT EXISTS idx_match_alerts_status ON match_alerts(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateReport(ctx context.Context, r model.Report) (*model.Report, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = model.ReportStatusOpen
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	vecJSON, photosJSON, err := marshalReportJSON(r)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, report_type, status, reporter_id, species, breed, color, sex,
			address, latitude, longitude, occurred_at, image_vector, photos, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, string(r.ReportType), string(r.Status), r.ReporterID,
		r.Species, r.Breed, r.Color, r.Sex,
		r.Address, r.Latitude, r.Longitude, r.OccurredAt,
		vecJSON, photosJSON, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert report")
	}
	return &r, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	return scanPgReport(row)
}

func (s *PostgresStore) ListOpenLostReports(ctx context.Context) ([]model.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE report_type = $1 AND status = $2
		 ORDER BY created_at`,
		string(model.ReportTypeLost), string(model.ReportStatusOpen),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list open lost reports")
	}
	return collectPgReports(rows)
}

func (s *PostgresStore) FindCandidates(ctx context.Context, lost model.Report) ([]model.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE report_type = $1 AND status = $2 AND species = $3 AND reporter_id != $4
		 ORDER BY created_at`,
		string(model.ReportTypeFound), string(model.ReportStatusOpen),
		lost.Species, lost.ReporterID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find candidates")
	}
	return collectPgReports(rows)
}

func (s *PostgresStore) SetReportVector(ctx context.Context, reportID string, vec []float64) error {
	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal vector")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET image_vector = $1, updated_at = $2
		 WHERE id = $3 AND image_vector IS NULL`,
		string(vecJSON), time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set report vector %s", reportID)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetReport(ctx, reportID); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ResolveReport(ctx context.Context, reportID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET status = $1, updated_at = $2 WHERE id = $3`,
		string(model.ReportStatusResolved), time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve report %s", reportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "report %s", reportID)
	}
	return nil
}

func (s *PostgresStore) CreateAlertIfAbsent(ctx context.Context, alert model.MatchAlert) (*model.MatchAlert, bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	alert.Status = model.AlertStatusPending
	now := time.Now().UTC()
	alert.CreatedAt = now
	alert.UpdatedAt = now

	detailsJSON, err := json.Marshal(alert.MatchDetails)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: marshal match details")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO match_alerts (id, user_id, lost_report_id, found_report_id,
			match_score, match_level, match_details, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (lost_report_id, found_report_id) DO NOTHING`,
		alert.ID, alert.UserID, alert.LostReportID, alert.FoundReportID,
		alert.MatchScore, string(alert.MatchLevel), string(detailsJSON),
		string(alert.Status), alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: insert match alert")
	}

	if tag.RowsAffected() == 0 {
		row := s.pool.QueryRow(ctx,
			`SELECT `+alertColumns+` FROM match_alerts
			 WHERE lost_report_id = $1 AND found_report_id = $2`,
			alert.LostReportID, alert.FoundReportID)
		existing, err := scanPgAlert(row)
		return existing, false, err
	}
	return &alert, true, nil
}

func (s *PostgresStore) GetAlert(ctx context.Context, id string) (*model.MatchAlert, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM match_alerts WHERE id = $1`, id)
	return scanPgAlert(row)
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.MatchAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM match_alerts
		 WHERE ($1 = '' OR user_id = $1)
		   AND ($2 = '' OR lost_report_id = $2)
		   AND ($3 = '' OR status = $3)
		 ORDER BY match_score DESC, created_at DESC, id
		 LIMIT $4 OFFSET $5`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, query,
		filter.UserID, filter.LostReportID, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list alerts")
	}
	defer rows.Close()

	var alerts []model.MatchAlert
	for rows.Next() {
		a, err := scanPgAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, eris.Wrap(rows.Err(), "postgres: list alerts iterate")
}

func (s *PostgresStore) SetAlertStatus(ctx context.Context, alertID string, status model.AlertStatus) error {
	if !status.Terminal() {
		return eris.Wrapf(ErrInvalidTransition, "target status %q", status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE match_alerts SET status = $1, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		string(status), time.Now().UTC(), alertID, string(model.AlertStatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set alert status %s", alertID)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.GetAlert(ctx, alertID)
		if err != nil {
			return err
		}
		return eris.Wrapf(ErrInvalidTransition, "alert %s is %s", alertID, existing.Status)
	}
	return nil
}

func scanPgReport(row pgx.Row) (*model.Report, error) {
	var r model.Report
	var reportType, status string
	var vecJSON *string
	var photosJSON string

	err := row.Scan(&r.ID, &reportType, &status, &r.ReporterID,
		&r.Species, &r.Breed, &r.Color, &r.Sex,
		&r.Address, &r.Latitude, &r.Longitude, &r.OccurredAt, &vecJSON, &photosJSON,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "report")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan report")
	}

	r.ReportType = model.ReportType(reportType)
	r.Status = model.ReportStatus(status)
	if vecJSON != nil {
		if err := json.Unmarshal([]byte(*vecJSON), &r.ImageVector); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal vector")
		}
	}
	if err := json.Unmarshal([]byte(photosJSON), &r.Photos); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal photos")
	}
	return &r, nil
}

func collectPgReports(rows pgx.Rows) ([]model.Report, error) {
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanPgReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: iterate reports")
}

func scanPgAlert(row pgx.Row) (*model.MatchAlert, error) {
	var a model.MatchAlert
	var level, status, detailsJSON string

	err := row.Scan(&a.ID, &a.UserID, &a.LostReportID, &a.FoundReportID,
		&a.MatchScore, &level, &detailsJSON, &status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "match alert")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan alert")
	}

	a.MatchLevel = model.MatchLevel(level)
	a.Status = model.AlertStatus(status)
	if err := json.Unmarshal([]byte(detailsJSON), &a.MatchDetails); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal match details")
	}
	return &a, nil
}
