package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reunite-labs/petmatch/internal/matcher"
	"github.com/reunite-labs/petmatch/internal/model"
	"github.com/reunite-labs/petmatch/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the matching webhook server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(ctx, env.Store, env.Matcher),
		}

		go waitShutdown(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

const shutdownGrace = 10 * time.Second

// waitShutdown blocks until ctx is canceled, then drains the server. The
// drain gets its own deadline because ctx is already dead by the time
// Shutdown runs; reusing it would abort in-flight requests immediately.
func waitShutdown(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

// buildRouter assembles the HTTP API. Split out from the command so the
// handlers are testable without binding a socket. ctx bounds the
// asynchronous matching runs kicked off by the webhook, not individual
// requests.
func buildRouter(ctx context.Context, st store.Store, m *matcher.Matcher) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhook/match", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			LostReportID string `json:"lost_report_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if body.LostReportID == "" {
			http.Error(w, `{"error":"lost_report_id is required"}`, http.StatusBadRequest)
			return
		}

		// Run matching asynchronously; the webhook caller only needs the
		// request acknowledged.
		go func() {
			if m == nil {
				return
			}
			alerts, err := m.RunMatching(ctx, body.LostReportID)
			if err != nil {
				zap.L().Error("webhook matching failed",
					zap.String("lost_report_id", body.LostReportID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("webhook matching complete",
				zap.String("lost_report_id", body.LostReportID),
				zap.Int("matched", len(alerts)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":         "accepted",
			"lost_report_id": body.LostReportID,
		})
	})

	r.Post("/reports", func(w http.ResponseWriter, req *http.Request) {
		var report model.Report
		if err := json.NewDecoder(req.Body).Decode(&report); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if report.ReportType != model.ReportTypeLost && report.ReportType != model.ReportTypeFound {
			http.Error(w, `{"error":"report_type must be lost or found"}`, http.StatusBadRequest)
			return
		}
		if report.ReporterID == "" || report.Species == "" {
			http.Error(w, `{"error":"reporter_id and species are required"}`, http.StatusBadRequest)
			return
		}

		created, err := st.CreateReport(req.Context(), report)
		if err != nil {
			zap.L().Error("create report failed", zap.Error(err))
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	})

	r.Get("/alerts", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filter := store.AlertFilter{
			UserID:       q.Get("user_id"),
			LostReportID: q.Get("lost_report_id"),
			Status:       model.AlertStatus(q.Get("status")),
		}
		if limit := q.Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n < 0 {
				http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}

		alerts, err := st.ListAlerts(req.Context(), filter)
		if err != nil {
			zap.L().Error("list alerts failed", zap.Error(err))
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		if alerts == nil {
			alerts = []model.MatchAlert{}
		}
		writeJSON(w, http.StatusOK, alerts)
	})

	r.Post("/alerts/{id}/status", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Status model.AlertStatus `json:"status"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		id := chi.URLParam(req, "id")
		err := st.SetAlertStatus(req.Context(), id, body.Status)
		switch {
		case err == nil:
		case eris.Is(err, store.ErrNotFound):
			http.Error(w, `{"error":"alert not found"}`, http.StatusNotFound)
			return
		case eris.Is(err, store.ErrInvalidTransition):
			http.Error(w, `{"error":"invalid status transition"}`, http.StatusConflict)
			return
		default:
			zap.L().Error("set alert status failed", zap.Error(err))
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}

		alert, err := st.GetAlert(req.Context(), id)
		if err != nil {
			zap.L().Error("get alert failed", zap.Error(err))
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, alert)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
