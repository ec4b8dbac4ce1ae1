// Package matcher orchestrates a matching run: embedding reports,
// selecting candidates, scoring, optional vision verification, and
// persisting match alerts.
package matcher

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reunite-labs/petmatch/internal/config"
	"github.com/reunite-labs/petmatch/internal/model"
	"github.com/reunite-labs/petmatch/internal/scorer"
	"github.com/reunite-labs/petmatch/internal/store"
	"github.com/reunite-labs/petmatch/pkg/embedding"
	"github.com/reunite-labs/petmatch/pkg/vision"
)

// ErrInvalidInput marks a matching request that cannot be served, such as
// a found report or a resolved report passed as the lost side.
var ErrInvalidInput = eris.New("matcher: invalid input")

// Matcher runs the end-to-end matching flow for lost reports.
type Matcher struct {
	store    store.Store
	embedder embedding.Client
	verifier vision.Client
	fetcher  PhotoFetcher
	engine   *scorer.Engine
	cfg      config.MatchingConfig
}

// Option customizes a Matcher.
type Option func(*Matcher)

// WithVerifier enables the vision-verification pass for borderline
// candidates. The fetcher retrieves photo bytes for the provider.
func WithVerifier(v vision.Client, f PhotoFetcher) Option {
	return func(m *Matcher) {
		m.verifier = v
		m.fetcher = f
	}
}

// New creates a Matcher. The verifier is optional; without it borderline
// candidates are persisted unverified.
func New(s store.Store, e embedding.Client, engine *scorer.Engine, cfg config.MatchingConfig, opts ...Option) *Matcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RunTimeoutSecs <= 0 {
		cfg.RunTimeoutSecs = 30
	}
	m := &Matcher{
		store:    s,
		embedder: e,
		engine:   engine,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunMatching scores all open found reports of the same species against
// the given lost report and persists an alert per candidate at or above
// the minimum score. Returns the alerts for this lost report in score
// order, previously created ones included.
func (m *Matcher) RunMatching(ctx context.Context, lostReportID string) ([]model.MatchAlert, error) {
	// The run timeout bounds external provider calls only. Store
	// operations stay on the caller's context, so a slow embedding or
	// vision provider degrades candidates to attribute-only scoring
	// instead of failing the whole run.
	provCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.RunTimeoutSecs)*time.Second)
	defer cancel()

	lost, err := m.store.GetReport(ctx, lostReportID)
	if err != nil {
		return nil, err
	}
	if lost.ReportType != model.ReportTypeLost {
		return nil, eris.Wrapf(ErrInvalidInput, "report %s is %s, not lost", lost.ID, lost.ReportType)
	}
	if lost.Status != model.ReportStatusOpen {
		return nil, eris.Wrapf(ErrInvalidInput, "report %s is %s", lost.ID, lost.Status)
	}

	m.ensureVector(ctx, provCtx, lost)

	found, err := m.store.FindCandidates(ctx, *lost)
	if err != nil {
		return nil, err
	}

	zap.L().Info("matching run started",
		zap.String("lost_report_id", lost.ID),
		zap.Int("candidates", len(found)))

	var mu sync.Mutex
	var scored []scorer.Candidate

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrent)

	for i := range found {
		cand := found[i]
		g.Go(func() error {
			m.ensureVector(gctx, provCtx, &cand)
			res := m.engine.Score(*lost, cand)
			if res.Score < m.cfg.MinScore {
				return nil
			}
			mu.Lock()
			scored = append(scored, scorer.Candidate{Report: cand, Result: res})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scorer.SortCandidates(scored)

	alerts := make([]model.MatchAlert, 0, len(scored))
	created := 0
	for _, c := range scored {
		if m.engine.Borderline(c.Result.Score, m.cfg.BorderlineMargin) {
			m.verify(provCtx, *lost, c.Report, &c.Result.Details)
		}

		alert, isNew, err := m.store.CreateAlertIfAbsent(ctx, model.MatchAlert{
			UserID:        lost.ReporterID,
			LostReportID:  lost.ID,
			FoundReportID: c.Report.ID,
			MatchScore:    c.Result.Score,
			MatchLevel:    c.Result.Level,
			MatchDetails:  c.Result.Details,
		})
		if err != nil {
			return nil, err
		}
		if isNew {
			created++
		}
		alerts = append(alerts, *alert)
	}

	zap.L().Info("matching run finished",
		zap.String("lost_report_id", lost.ID),
		zap.Int("matched", len(alerts)),
		zap.Int("created", created))

	return alerts, nil
}

// RescanOpenReports runs matching for every open lost report. Individual
// failures are logged and skipped so one bad report cannot stall the
// sweep. Returns the number of reports scanned.
func (m *Matcher) RescanOpenReports(ctx context.Context) (int, error) {
	open, err := m.store.ListOpenLostReports(ctx)
	if err != nil {
		return 0, err
	}

	scanned := 0
	for _, r := range open {
		if ctx.Err() != nil {
			return scanned, eris.Wrap(ctx.Err(), "rescan interrupted")
		}
		if _, err := m.RunMatching(ctx, r.ID); err != nil {
			zap.L().Warn("rescan: matching failed",
				zap.String("lost_report_id", r.ID),
				zap.Error(err))
			continue
		}
		scanned++
	}
	return scanned, nil
}

// ensureVector computes and persists the report's image embedding when it
// is missing. The provider call runs under provCtx (the run budget); the
// persistence write runs under ctx. Embedding failures, budget exhaustion
// included, degrade the report to attribute-only scoring.
func (m *Matcher) ensureVector(ctx, provCtx context.Context, r *model.Report) {
	if len(r.ImageVector) > 0 || m.embedder == nil {
		return
	}
	photo := r.PrimaryPhoto()
	if photo == "" {
		return
	}

	vec, err := m.embedder.Embed(provCtx, photo)
	if err != nil {
		zap.L().Warn("embedding unavailable, scoring without visual similarity",
			zap.String("report_id", r.ID),
			zap.Error(err))
		return
	}
	if err := m.store.SetReportVector(ctx, r.ID, vec); err != nil {
		zap.L().Warn("failed to persist image vector",
			zap.String("report_id", r.ID),
			zap.Error(err))
	}
	r.ImageVector = vec
}

// verify runs the vision provider on the two primary photos and attaches
// the verdict to the match details. Failures leave the details unchanged.
func (m *Matcher) verify(ctx context.Context, lost, found model.Report, details *model.MatchDetails) {
	if m.verifier == nil || m.fetcher == nil {
		return
	}
	lostPhoto, foundPhoto := lost.PrimaryPhoto(), found.PrimaryPhoto()
	if lostPhoto == "" || foundPhoto == "" {
		return
	}

	lostData, mediaType, err := m.fetcher.Fetch(ctx, lostPhoto)
	if err != nil {
		zap.L().Warn("verification skipped: fetch lost photo", zap.Error(err))
		return
	}
	foundData, _, err := m.fetcher.Fetch(ctx, foundPhoto)
	if err != nil {
		zap.L().Warn("verification skipped: fetch found photo", zap.Error(err))
		return
	}

	summary, err := m.verifier.Verify(ctx, lostData, foundData, mediaType)
	if err != nil {
		zap.L().Warn("verification failed",
			zap.String("lost_report_id", lost.ID),
			zap.String("found_report_id", found.ID),
			zap.Error(err))
		return
	}
	details.Verification = summary
}
