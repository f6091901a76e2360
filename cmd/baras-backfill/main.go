// Command baras-backfill replays a directory of historical combat logs
// through the same parsing path as the live agent, writing one columnar
// archive per file (§5 "Parallel background work" / "historical
// ingestion runs through the same Reader/Parser path as live ingestion,
// but fully parallel across files since there is no shared state").
//
// Adapted from the teacher's cmd/server/main.go startup sequence
// (load config, build logger, log each stage) but trimmed to a
// run-to-completion batch job instead of a long-lived server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/backfill"
	"github.com/baras-app/baras/internal/columnar"
	"github.com/baras-app/baras/internal/combatlog"
	"github.com/baras-app/baras/internal/config"
	"github.com/baras-app/baras/internal/entity"
	"github.com/baras-app/baras/internal/intern"
	"github.com/baras-app/baras/internal/logging"
)

var (
	configPath = flag.String("config", "config.yaml", "path to configuration file")
	logDir     = flag.String("log-dir", "", "directory of historical combat logs to replay")
	sessionID  = flag.String("session", "", "session id to tag archives with (defaults to a generated id)")
)

func main() {
	flag.Parse()

	if *logDir == "" {
		fmt.Fprintln(os.Stderr, "usage: baras-backfill -log-dir <dir> [-config config.yaml] [-session id]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sid := *sessionID
	if sid == "" {
		sid = fmt.Sprintf("backfill-%d", time.Now().UnixNano())
	}

	logger.Info("starting baras backfill",
		zap.String("log_dir", *logDir),
		zap.String("session", sid),
		zap.Int("workers", cfg.Backfill.Workers),
	)

	entries, err := os.ReadDir(*logDir)
	if err != nil {
		logger.Fatal("failed to read log directory", zap.Error(err))
	}

	anchor := time.Now()
	var jobs []backfill.Job
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		jobs = append(jobs, backfill.Job{
			Path:       filepath.Join(*logDir, e.Name()),
			SessionID:  sid,
			AnchorDate: anchor,
		})
	}
	logger.Info("discovered historical logs", zap.Int("count", len(jobs)))

	pool := backfill.New(cfg.Backfill.Workers, logger)

	ingest := newArchiveIngester(cfg.Writer.DataRoot, sid, cfg.Writer.RowGroupSize, cfg.Writer.Compression, logger)
	defer ingest.closeAll()

	ctx := context.Background()
	start := time.Now()
	results, err := pool.Run(ctx, jobs, ingest.process)
	if err != nil {
		logger.Warn("backfill run ended early", zap.Error(err))
	}

	var totalLines, totalFailed int64
	var fileFailed int
	for _, r := range results {
		totalLines += r.LineCount
		totalFailed += r.ParseFail
		if r.Err != nil {
			fileFailed++
			logger.Warn("file backfill failed", zap.String("path", r.Job.Path), zap.Error(r.Err))
		}
	}

	logger.Info("baras backfill complete",
		zap.Int("files", len(jobs)),
		zap.Int("files_failed", fileFailed),
		zap.Int64("lines_processed", totalLines),
		zap.Int64("parse_failures", totalFailed),
		zap.Duration("duration", time.Since(start)),
	)
}

// archiveIngester adapts backfill.ProcessFunc onto per-file columnar
// writers, keyed by the historical file's own path since a backfill job
// has no boss-encounter boundaries of its own — one archive per source
// file rather than per encounter.
type archiveIngester struct {
	dataRoot     string
	sessionID    string
	rowGroupSize int
	compression  string
	logger       *zap.Logger

	mu      sync.Mutex
	writers map[string]*columnar.Writer
}

func newArchiveIngester(dataRoot, sessionID string, rowGroupSize int, compression string, logger *zap.Logger) *archiveIngester {
	return &archiveIngester{
		dataRoot: dataRoot, sessionID: sessionID,
		rowGroupSize: rowGroupSize, compression: compression, logger: logger,
		writers: make(map[string]*columnar.Writer),
	}
}

// process appends one archive row per parsed event. Each worker gets its
// own Writer for its own job.Path, so the map access only needs a mutex
// for the (rare) case of two jobs racing on first-touch creation.
func (a *archiveIngester) process(job backfill.Job, lineNumber int64, ev combatlog.CombatEvent, in *intern.Interner) error {
	archiveID := archiveIDFor(job.Path)

	a.mu.Lock()
	w, ok := a.writers[archiveID]
	if !ok {
		newWriter, err := columnar.New(a.dataRoot, a.sessionID, archiveID, a.rowGroupSize, a.compression, a.logger)
		if err != nil {
			a.mu.Unlock()
			return fmt.Errorf("open archive for %s: %w", job.Path, err)
		}
		a.writers[archiveID] = newWriter
		w = newWriter
	}
	a.mu.Unlock()

	return w.Append(columnar.Row{
		TimestampMicros: ev.Time.UnixMicro(),
		SourceID:        entityID(ev.Source),
		TargetID:        entityID(ev.Target),
		AbilityID:       ev.Ability.ID,
		Kind:            uint8(ev.Kind),
		Amount:          ev.Detail.Amount,
		Flags:           uint8(ev.Detail.Flags),
		ShieldDelta:     ev.Detail.ShieldDelta,
		HPCurrent:       ev.Detail.HPCurrent,
		HPMax:           ev.Detail.HPMax,
	})
}

func entityID(e entity.Entity) int64 {
	if e.Kind == entity.KindNpc {
		return e.TemplateID
	}
	return e.ID
}

// archiveIDFor derives a stable archive name from the historical file's
// own base name, stripped of its extension.
func archiveIDFor(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func (a *archiveIngester) closeAll() {
	for id, w := range a.writers {
		if err := w.Finalize(); err != nil {
			a.logger.Warn("failed to finalize backfill archive", zap.String("archive", id), zap.Error(err))
		}
	}
}
