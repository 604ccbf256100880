// Package control implements component J (the control/drain HTTP API)
// and component K (live notification push), grounded on the teacher's
// Server/SetupRoutes/WSManager trio (internal/adapters/web) but narrowed
// to the drain/reload/health surface spec §6 calls for.
package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultDrainLimit = 100

// notificationDrainer is the narrow view over ports.NotificationRepository
// this package needs.
type notificationDrainer interface {
	DrainNotifications(ctx context.Context, limit int) ([]domain.Notification, error)
}

// Reloader lets the control API trigger an out-of-cadence rule reload +
// violation pass, e.g. after an operator edits a rule table.
type Reloader interface {
	Run(ctx context.Context)
}

// reportGenerator aggregates recent notifications into a violation
// report, implemented by internal/core/services/reportgen.Generator.
type reportGenerator interface {
	Generate(ctx context.Context, since time.Time) (*domain.ViolationReport, error)
}

// reportExporter renders a violation report to a downloadable format,
// implemented by internal/adapters/reporting.PDFExporter.
type reportExporter interface {
	ExportViolationReport(report *domain.ViolationReport) ([]byte, error)
}

// Server exposes the control/drain HTTP surface of §6, the WebSocket
// push endpoint of component K, and the on-demand report export of
// component L.
type Server struct {
	Addr     string
	drain    notificationDrainer
	reload   Reloader
	hub      *Hub
	reports  reportGenerator
	exporter reportExporter
	log      *slog.Logger
	srv      *http.Server
}

// NewServer constructs a control Server.
func NewServer(addr string, drain notificationDrainer, reload Reloader, hub *Hub, reportGen reportGenerator, exporter reportExporter, log *slog.Logger) *Server {
	return &Server{Addr: addr, drain: drain, reload: reload, hub: hub, reports: reportGen, exporter: exporter, log: log}
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/v1/violations/drain", s.handleDrain).Methods(http.MethodPost)
	r.HandleFunc("/v1/rules/reload", s.handleReload).Methods(http.MethodPost)
	r.HandleFunc("/v1/reports/violations", s.handleReport).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.HandleWebSocket)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleDrain implements the POST /v1/violations/drain?limit=N operation
// of §6: at most limit unprocessed notifications, flipped to processed,
// in one call.
func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	limit := defaultDrainLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	notifications, err := s.drain.DrainNotifications(r.Context(), limit)
	if err != nil {
		s.log.Error("drain notifications failed", "error", err.Error())
		http.Error(w, "drain failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(notifications); err != nil {
		s.log.Error("encode drain response failed", "error", err.Error())
	}
}

// handleReload triggers an immediate out-of-cadence H1-H5 pass.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.reload.Run(r.Context())
	w.WriteHeader(http.StatusAccepted)
}

const defaultReportWindow = 24 * time.Hour

// handleReport implements GET /v1/reports/violations?window=24h,
// component L's on-demand path: aggregate recent notifications into a
// domain.ViolationReport and render it to PDF.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	window := defaultReportWindow
	if q := r.URL.Query().Get("window"); q != "" {
		if d, err := time.ParseDuration(q); err == nil && d > 0 {
			window = d
		}
	}

	report, err := s.reports.Generate(r.Context(), time.Now().Add(-window))
	if err != nil {
		s.log.Error("generate violation report failed", "error", err.Error())
		http.Error(w, "report generation failed", http.StatusInternalServerError)
		return
	}

	pdfBytes, err := s.exporter.ExportViolationReport(report)
	if err != nil {
		s.log.Error("export violation report failed", "error", err.Error())
		http.Error(w, "report export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="violation-report.pdf"`)
	_, _ = w.Write(pdfBytes)
}

// Run starts the HTTP server and blocks until ctx is canceled or the
// server fails, matching the teacher's graceful-shutdown Run pattern.
func (s *Server) Run(ctx context.Context) error {
	instrumented := otelhttp.NewHandler(s.routes(), "sentinel-control")
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           instrumented,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("control server shutdown error", "error", err.Error())
		}
	}()

	s.log.Info("control server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
