// Command baras-agent is the live ingestion pipeline (§5): one
// single-threaded task per attached combat log running
// Reader -> Parser -> EventProcessor -> columnar.Writer, with produced
// signals fanned out to websocket consumers through internal/transport.
//
// Adapted from the teacher's cmd/server/main.go: the same
// flag-configured entrypoint, sequential "initialize X, log it" startup
// sequence, and signal-driven graceful shutdown, retargeted from a gRPC
// game server onto a single polling ingestion loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/columnar"
	"github.com/baras-app/baras/internal/combatlog"
	"github.com/baras-app/baras/internal/combatlog/parser"
	"github.com/baras-app/baras/internal/combatlog/reader"
	"github.com/baras-app/baras/internal/config"
	"github.com/baras-app/baras/internal/definitions"
	"github.com/baras-app/baras/internal/encounter"
	"github.com/baras-app/baras/internal/entity"
	"github.com/baras-app/baras/internal/intern"
	"github.com/baras-app/baras/internal/logging"
	"github.com/baras-app/baras/internal/processor"
	"github.com/baras-app/baras/internal/session"
	"github.com/baras-app/baras/internal/signal"
	"github.com/baras-app/baras/internal/transport"
)

var (
	configPath = flag.String("config", "config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

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

	logger.Info("starting baras agent",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logPath, err := newestLogFile(cfg.Reader.WatchDir)
	if err != nil {
		logger.Fatal("failed to locate a combat log to attach", zap.Error(err))
	}
	logger.Info("attaching to combat log", zap.String("path", logPath))

	r, err := reader.Attach(logPath, cfg.Reader.OffsetDir, cfg.Reader.MaxLineBytes, logger)
	if err != nil {
		logger.Fatal("failed to attach reader", zap.Error(err))
	}
	defer r.Close()

	in := intern.New()
	pr := parser.New(in, time.Now(), logger)
	proc := processor.New(in, cfg.Effects.AoeRefreshWindow, logger)
	loader := definitions.NewLoader(cfg.Definitions.Root, logger)
	logger.Info("definitions loader initialized", zap.String("root", cfg.Definitions.Root))

	hub := transport.NewHub(cfg.Transport.ConsumerBuffer, logger)
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	httpServer := &http.Server{Addr: cfg.Transport.ListenAddr, Handler: mux}
	go func() {
		logger.Info("starting websocket transport", zap.String("address", cfg.Transport.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("websocket transport error", zap.Error(err))
		}
	}()

	cache := session.New(uuid.NewString())

	writers := make(map[string]*columnar.Writer) // keyed by encounter id

	pipeline := &agentPipeline{
		cfg: cfg, logger: logger, in: in, parser: pr, proc: proc,
		loader: loader, hub: hub, cache: cache, writers: writers,
	}

	pollTicker := time.NewTicker(cfg.Reader.PollInterval)
	defer pollTicker.Stop()
	sweepTicker := time.NewTicker(cfg.Effects.SweepInterval)
	defer sweepTicker.Stop()

	logger.Info("baras agent initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Transport.ListenAddr),
	)

runLoop:
	for {
		select {
		case <-pollTicker.C:
			if err := pipeline.pollOnce(r); err != nil {
				if _, rotated := err.(*reader.Rotated); rotated {
					logger.Warn("combat log rotated, reattaching", zap.Error(err))
					next, findErr := newestLogFile(cfg.Reader.WatchDir)
					if findErr != nil {
						logger.Error("failed to locate replacement log", zap.Error(findErr))
						continue
					}
					newReader, attachErr := reader.Attach(next, cfg.Reader.OffsetDir, cfg.Reader.MaxLineBytes, logger)
					if attachErr != nil {
						logger.Error("failed to reattach reader", zap.Error(attachErr))
						continue
					}
					r.Close()
					r = newReader
					continue
				}
				logger.Warn("reader poll failed", zap.Error(err))
			}

		case <-sweepTicker.C:
			pipeline.deliver(proc.Tick(time.Now()))

		case sig := <-sigChan:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
			break runLoop
		}
	}

	logger.Info("shutting down gracefully...")
	for id, w := range writers {
		if err := w.Finalize(); err != nil {
			logger.Warn("failed to finalize archive on shutdown", zap.String("encounter", id), zap.Error(err))
		}
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("baras agent stopped")
}

// agentPipeline bundles the per-process singletons the poll loop needs;
// it owns no goroutine of its own, every call runs on the main loop.
type agentPipeline struct {
	cfg    *config.Config
	logger *zap.Logger
	in     *intern.Interner
	parser *parser.Parser
	proc   *processor.Processor
	loader *definitions.Loader
	hub    *transport.Hub
	cache  *session.Cache

	writers map[string]*columnar.Writer
	lineNo  int64
}

// pollOnce drains whatever new lines the reader has, parses and
// processes each one in order, and routes the produced signals to
// archive writing and the websocket transport.
func (a *agentPipeline) pollOnce(r *reader.Reader) error {
	lines, err := r.Poll()
	if err != nil {
		return err
	}

	for _, line := range lines {
		a.lineNo++
		ev, ok := a.parser.ParseLine(a.lineNo, line)
		if !ok {
			continue
		}

		if ev.Kind == combatlog.KindAreaChange && a.cache.Active != nil {
			a.finalizeActiveWriter()
		}

		sigs := a.proc.Process(ev, a.cache)

		if ev.Kind == combatlog.KindAreaChange {
			a.loadAreaDefinitions(a.cache.Area)
		}

		a.appendRows(ev, sigs)
		a.deliver(sigs)

		for _, s := range sigs {
			if s.Kind == signal.KindCombatEnded {
				a.finalizeActiveWriter()
			}
		}
	}
	return nil
}

func (a *agentPipeline) loadAreaDefinitions(areaID string) {
	if areaID == "" {
		return
	}
	defs, ok := a.loader.Get(areaID)
	if !ok {
		loaded, err := a.loader.Load(areaID)
		if err != nil {
			a.logger.Warn("failed to load definitions for area", zap.String("area", areaID), zap.Error(err))
			return
		}
		defs = loaded
	}
	a.cache.Definitions = defs
}

// appendRows writes one columnar row per processed event, opening a
// fresh Writer the first time an encounter is seen.
func (a *agentPipeline) appendRows(ev combatlog.CombatEvent, sigs []signal.Signal) {
	if a.cache.Active == nil {
		return
	}
	w, ok := a.writers[a.cache.Active.ID]
	if !ok {
		newWriter, err := columnar.New(a.cfg.Writer.DataRoot, a.cache.SessionID, a.cache.Active.ID,
			a.cfg.Writer.RowGroupSize, a.cfg.Writer.Compression, a.logger)
		if err != nil {
			a.logger.Warn("failed to open encounter archive", zap.String("encounter", a.cache.Active.ID), zap.Error(err))
			return
		}
		a.writers[a.cache.Active.ID] = newWriter
		w = newWriter
	}

	row := rowFromEvent(ev)
	if err := w.Append(row); err != nil {
		a.logger.Warn("failed to append archive row", zap.String("encounter", a.cache.Active.ID), zap.Error(err))
	}
}

func (a *agentPipeline) finalizeActiveWriter() {
	if a.cache.Active == nil {
		return
	}
	w, ok := a.writers[a.cache.Active.ID]
	if !ok {
		return
	}

	outcome := "wipe"
	if a.cache.Active.Outcome == encounter.OutcomeKill {
		outcome = "kill"
	}
	bossIDs := make([]int64, 0, len(a.cache.Active.Bosses))
	for _, bs := range a.cache.Active.Bosses {
		bossIDs = append(bossIDs, bs.Entity.TemplateID)
	}
	w.SetMetadata(a.cache.SessionID, a.cache.Area, a.cache.Active.StartedAt, a.cache.Active.EndedAt, outcome, bossIDs)

	if err := w.Finalize(); err != nil {
		a.logger.Warn("failed to finalize encounter archive", zap.String("encounter", a.cache.Active.ID), zap.Error(err))
	}
	delete(a.writers, a.cache.Active.ID)
}

func (a *agentPipeline) deliver(sigs []signal.Signal) {
	if len(sigs) == 0 {
		return
	}
	a.hub.PollSignals(sigs)
}

func rowFromEvent(ev combatlog.CombatEvent) columnar.Row {
	return columnar.Row{
		TimestampMicros: ev.Time.UnixMicro(),
		SourceID:        entityID(ev.Source),
		TargetID:        entityID(ev.Target),
		AbilityID:       ev.Ability.ID,
		Kind:            uint8(ev.Kind),
		Amount:          ev.Detail.Amount,
		Flags:           uint8(ev.Detail.Flags),
		ShieldDelta:     ev.Detail.ShieldDelta,
		SourceX:         ev.SourcePos.X,
		SourceY:         ev.SourcePos.Y,
		SourceZ:         ev.SourcePos.Z,
		TargetX:         ev.TargetPos.X,
		TargetY:         ev.TargetPos.Y,
		TargetZ:         ev.TargetPos.Z,
		HPCurrent:       ev.Detail.HPCurrent,
		HPMax:           ev.Detail.HPMax,
	}
}

func entityID(e entity.Entity) int64 {
	if e.Kind == entity.KindNpc {
		return e.TemplateID
	}
	return e.ID
}

// newestLogFile picks the most recently modified regular file in dir,
// the combat log currently being written by the game client.
func newestLogFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read watch dir %s: %w", dir, err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no combat log files found in %s", dir)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.After(candidates[j].modTime) })
	return candidates[0].path, nil
}
