package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/reunite-labs/petmatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	latitude     REAL,
	longitude    REAL,
	occurred_at  DATETIME,
	image_vector TEXT,
	photos       TEXT NOT NULL DEFAULT '[]',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS match_alerts (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	lost_report_id  TEXT NOT NULL REFERENCES reports(id),
	found_report_id TEXT NOT NULL REFERENCES reports(id),
	match_score     INTEGER NOT NULL,
	match_level     TEXT NOT NULL,
	match_details   TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (lost_report_id, found_report_id)
);

CREATE INDEX IF NOT EXISTS idx_reports_candidates ON reports(report_type, status, species);
CREATE INDEX IF NOT EXISTS idx_reports_reporter ON reports(reporter_id);
CREATE INDEX IF NOT EXISTS idx_match_alerts_user ON match_alerts(user_id);
CREATE INDEX IF NOT EXISTS idx_match_alerts_lost ON match_alerts(lost_report_id);
CREATE INDEX IF NOT EXISTS idx_match_alerts_status ON match_alerts(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const reportColumns = `id, report_type, status, reporter_id, species, breed, color, sex,
	address, latitude, longitude, occurred_at, image_vector, photos, created_at, updated_at`

func (s *SQLiteStore) CreateReport(ctx context.Context, r model.Report) (*model.Report, error) {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, report_type, status, reporter_id, species, breed, color, sex,
			address, latitude, longitude, occurred_at, image_vector, photos, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.ReportType), string(r.Status), r.ReporterID,
		r.Species, r.Breed, r.Color, r.Sex,
		r.Address, nullFloat(r.Latitude), nullFloat(r.Longitude), nullTime(r.OccurredAt),
		vecJSON, photosJSON, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert report")
	}
	return &r, nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	return scanReport(row)
}

func (s *SQLiteStore) ListOpenLostReports(ctx context.Context) ([]model.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE report_type = ? AND status = ?
		 ORDER BY created_at`,
		string(model.ReportTypeLost), string(model.ReportStatusOpen),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list open lost reports")
	}
	return collectReports(rows)
}

func (s *SQLiteStore) FindCandidates(ctx context.Context, lost model.Report) ([]model.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE report_type = ? AND status = ? AND species = ? AND reporter_id != ?
		 ORDER BY created_at`,
		string(model.ReportTypeFound), string(model.ReportStatusOpen),
		lost.Species, lost.ReporterID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find candidates")
	}
	return collectReports(rows)
}

func (s *SQLiteStore) SetReportVector(ctx context.Context, reportID string, vec []float64) error {
	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal vector")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET image_vector = ?, updated_at = ?
		 WHERE id = ? AND image_vector IS NULL`,
		string(vecJSON), time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set report vector %s", reportID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Either the report is missing or the vector was already set.
		// The latter is a no-op: vectors are immutable.
		if _, err := s.GetReport(ctx, reportID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ResolveReport(ctx context.Context, reportID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.ReportStatusResolved), time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve report %s", reportID)
	}
	return checkRowsAffected(res, "report", reportID)
}

const alertColumns = `id, user_id, lost_report_id, found_report_id, match_score,
	match_level, match_details, status, created_at, updated_at`

func (s *SQLiteStore) CreateAlertIfAbsent(ctx context.Context, alert model.MatchAlert) (*model.MatchAlert, bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	alert.Status = model.AlertStatusPending
	now := time.Now().UTC()
	alert.CreatedAt = now
	alert.UpdatedAt = now

	detailsJSON, err := json.Marshal(alert.MatchDetails)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: marshal match details")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO match_alerts (id, user_id, lost_report_id, found_report_id,
			match_score, match_level, match_details, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (lost_report_id, found_report_id) DO NOTHING`,
		alert.ID, alert.UserID, alert.LostReportID, alert.FoundReportID,
		alert.MatchScore, string(alert.MatchLevel), string(detailsJSON),
		string(alert.Status), alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: insert match alert")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		existing, err := s.getAlertByPair(ctx, alert.LostReportID, alert.FoundReportID)
		return existing, false, err
	}
	return &alert, true, nil
}

func (s *SQLiteStore) getAlertByPair(ctx context.Context, lostID, foundID string) (*model.MatchAlert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM match_alerts
		 WHERE lost_report_id = ? AND found_report_id = ?`,
		lostID, foundID)
	return scanAlert(row)
}

func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (*model.MatchAlert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM match_alerts WHERE id = ?`, id)
	return scanAlert(row)
}

func (s *SQLiteStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.MatchAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM match_alerts WHERE 1=1`
	var args []any

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.LostReportID != "" {
		query += ` AND lost_report_id = ?`
		args = append(args, filter.LostReportID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY match_score DESC, created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list alerts")
	}
	defer rows.Close()

	var alerts []model.MatchAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, eris.Wrap(rows.Err(), "sqlite: list alerts iterate")
}

func (s *SQLiteStore) SetAlertStatus(ctx context.Context, alertID string, status model.AlertStatus) error {
	if !status.Terminal() {
		return eris.Wrapf(ErrInvalidTransition, "target status %q", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE match_alerts SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), time.Now().UTC(), alertID, string(model.AlertStatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set alert status %s", alertID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		existing, err := s.GetAlert(ctx, alertID)
		if err != nil {
			return err
		}
		return eris.Wrapf(ErrInvalidTransition, "alert %s is %s", alertID, existing.Status)
	}
	return nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func marshalReportJSON(r model.Report) (vecJSON any, photosJSON string, err error) {
	if r.ImageVector != nil {
		b, err := json.Marshal(r.ImageVector)
		if err != nil {
			return nil, "", eris.Wrap(err, "sqlite: marshal vector")
		}
		vecJSON = string(b)
	}
	b, err := json.Marshal(r.Photos)
	if err != nil {
		return nil, "", eris.Wrap(err, "sqlite: marshal photos")
	}
	return vecJSON, string(b), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReport(row scannable) (*model.Report, error) {
	var r model.Report
	var reportType, status string
	var lat, lon sql.NullFloat64
	var occurredAt sql.NullTime
	var vecJSON sql.NullString
	var photosJSON string

	err := row.Scan(&r.ID, &reportType, &status, &r.ReporterID,
		&r.Species, &r.Breed, &r.Color, &r.Sex,
		&r.Address, &lat, &lon, &occurredAt, &vecJSON, &photosJSON,
		&r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "report")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan report")
	}

	r.ReportType = model.ReportType(reportType)
	r.Status = model.ReportStatus(status)
	if lat.Valid {
		r.Latitude = &lat.Float64
	}
	if lon.Valid {
		r.Longitude = &lon.Float64
	}
	if occurredAt.Valid {
		t := occurredAt.Time
		r.OccurredAt = &t
	}
	if vecJSON.Valid {
		if err := json.Unmarshal([]byte(vecJSON.String), &r.ImageVector); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal vector")
		}
	}
	if err := json.Unmarshal([]byte(photosJSON), &r.Photos); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal photos")
	}
	return &r, nil
}

func collectReports(rows *sql.Rows) ([]model.Report, error) {
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: iterate reports")
}

func scanAlert(row scannable) (*model.MatchAlert, error) {
	var a model.MatchAlert
	var level, status, detailsJSON string

	err := row.Scan(&a.ID, &a.UserID, &a.LostReportID, &a.FoundReportID,
		&a.MatchScore, &level, &detailsJSON, &status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "match alert")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan alert")
	}

	a.MatchLevel = model.MatchLevel(level)
	a.Status = model.AlertStatus(status)
	if err := json.Unmarshal([]byte(detailsJSON), &a.MatchDetails); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal match details")
	}
	return &a, nil
}
