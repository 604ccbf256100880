// Package app assembles the engine's components into a runnable whole,
// the way the teacher's cmd/wmap/main.go wires sniffer, services, and
// web server — but as an explicit Engine handle instead of inline main()
// wiring, so main stays a thin bootstrap and tests can construct an
// Engine without a live network or database.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/beaconsentry/engine/internal/adapters/control"
	"github.com/beaconsentry/engine/internal/adapters/receiver"
	"github.com/beaconsentry/engine/internal/adapters/reporting"
	"github.com/beaconsentry/engine/internal/adapters/storage"
	"github.com/beaconsentry/engine/internal/adapters/workerpool"
	"github.com/beaconsentry/engine/internal/config"
	"github.com/beaconsentry/engine/internal/core/services/geofence"
	"github.com/beaconsentry/engine/internal/core/services/ingest"
	"github.com/beaconsentry/engine/internal/core/services/reportgen"
	"github.com/beaconsentry/engine/internal/core/services/retention"
	"github.com/beaconsentry/engine/internal/core/services/summarizer"
	"github.com/beaconsentry/engine/internal/core/services/violation"
	"github.com/beaconsentry/engine/internal/telemetry"
)

// Engine holds every wired component and the worker pool the receiver
// depends on; the receiver's memory pool is owned by the receiver.
type Engine struct {
	cfg *config.Config
	log *slog.Logger

	store    *storage.Adapter
	conn     *net.UDPConn
	workers  *workerpool.Pool
	fences   *geofence.Evaluator
	persist  *ingest.Persister
	recv     *receiver.Receiver
	summar   *summarizer.Summarizer
	ident    *violation.Identifier
	retain   *retention.Retention
	hub      *control.Hub
	control  *control.Server
	reportGe *reportgen.Generator
	exporter *reporting.PDFExporter
}

// New constructs an Engine from configuration, dialing the database and
// binding the UDP socket. Nothing is started until Run is called.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Engine, error) {
	telemetry.InitMetrics()

	store, err := storage.Open(ctx, cfg.DatabaseDSN, cfg.DBPoolSize, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	addr := &net.UDPAddr{Port: cfg.RecvPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("bind udp receiver: %w", err)
	}

	pool := receiver.NewPool(cfg.MemPoolSlots)
	workers := workerpool.New(ctx, cfg.NumberWorkerThreads, cfg.WorkerQueueDepth)

	fences := geofence.New(store, store, cfg.DecisionThreshold,
		time.Duration(cfg.GranularityForContinuousViolationSec)*time.Second)

	persist := ingest.New(store, store, store, fences, cfg.IsEnabledPanicMonitoring, log)
	recv := receiver.New(conn, pool, workers, persist, log)

	summar := summarizer.New(store, summarizer.Config{
		PrefilterWindow:         time.Duration(cfg.DatabasePreFilterTimeWindowSec) * time.Second,
		RSSITolerance:           cfg.RSSIDifferenceOfLocationAccuracyTolerance,
		BaseLocationWindow:      time.Duration(cfg.TimeIntervalSec) * time.Second,
		BaseLocationToleranceMM: cfg.BaseLocationToleranceInMillimeter,
	}, log)

	hub := control.NewHub(log)

	ident := violation.New(store, store, fences, hub, violation.Config{
		LocalOffset: time.Duration(cfg.ServerLocaltimeAgainstUTCInHour) * time.Hour,
		Lookback:    time.Duration(cfg.GranularityForContinuousViolationSec) * time.Second * 4,
		DedupWindow: time.Duration(cfg.GranularityForContinuousViolationSec) * time.Second,
	}, log)

	retain := retention.New(store, retention.Config{
		RetentionAge: time.Duration(cfg.RetentionHours) * time.Hour,
	}, log)

	reportGen := reportgen.New(store, cfg.OrganizationName)
	exporter := reporting.NewPDFExporter()
	ctrl := control.NewServer(cfg.ControlAddr, store, ident, hub, reportGen, exporter, log)

	return &Engine{
		cfg: cfg, log: log,
		store: store, conn: conn, workers: workers,
		fences: fences, persist: persist, recv: recv,
		summar: summar, ident: ident, retain: retain,
		hub: hub, control: ctrl,
		reportGe: reportGen, exporter: exporter,
	}, nil
}

// Run starts every background loop and blocks until ctx is canceled.
// Components are stopped in reverse dependency order on shutdown.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.fences.Reload(ctx); err != nil {
		e.log.Warn("initial geo-fence rule load failed", "error", err.Error())
	}

	e.summar.Start(ctx, e.cfg.SummarizerInterval)
	e.ident.Start(ctx, e.cfg.ViolationInterval)
	e.retain.Start(ctx, e.cfg.RetentionInterval)

	go e.recv.Run(ctx)
	go e.runReportLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := e.control.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		e.log.Error("control server failed", "error", err.Error())
	}

	e.shutdown()
	return nil
}

// runReportLoop periodically writes a violation-summary PDF to
// cfg.ReportOutputDir, the scheduled counterpart to the on-demand
// /v1/reports/violations endpoint.
func (e *Engine) runReportLoop(ctx context.Context) {
	if e.cfg.ReportInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.writeReport(ctx)
		}
	}
}

func (e *Engine) writeReport(ctx context.Context) {
	report, err := e.reportGe.Generate(ctx, time.Now().Add(-e.cfg.ReportInterval))
	if err != nil {
		e.log.Warn("scheduled report generation failed", "error", err.Error())
		return
	}
	pdfBytes, err := e.exporter.ExportViolationReport(report)
	if err != nil {
		e.log.Warn("scheduled report export failed", "error", err.Error())
		return
	}
	if err := os.MkdirAll(e.cfg.ReportOutputDir, 0o755); err != nil {
		e.log.Warn("report output directory creation failed", "error", err.Error())
		return
	}
	path := filepath.Join(e.cfg.ReportOutputDir, fmt.Sprintf("violation-report-%s.pdf", report.Metadata.ID))
	if err := os.WriteFile(path, pdfBytes, 0o644); err != nil {
		e.log.Warn("scheduled report write failed", "error", err.Error())
	}
}

func (e *Engine) shutdown() {
	e.workers.Destroy()
	if err := e.conn.Close(); err != nil {
		e.log.Warn("udp socket close error", "error", err.Error())
	}
	if err := e.store.Close(); err != nil {
		e.log.Warn("storage close error", "error", err.Error())
	}
}
