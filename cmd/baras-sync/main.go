// Command baras-sync mirrors finalized encounter manifests from the
// columnar archive tree into the Postgres analytics store, so
// QueryEncounter (§6) can find an encounter's archive file without
// scanning the whole data root.
//
// Adapted from the teacher's scripts/import_cards.go: same
// connect-then-batch-import CLI shape (progress reporting, batched
// transactional writes), without a final row-count verification, retargeted
// from a one-shot CSV-to-Postgres loader onto a directory of
// `<data_root>/<session_id>/<encounter_id>.parquet.manifest.json`
// side-cars produced by internal/columnar.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/analytics"
	"github.com/baras-app/baras/internal/columnar"
	"github.com/baras-app/baras/internal/config"
	"github.com/baras-app/baras/internal/logging"
)

func main() {
	ctx := context.Background()

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.Analytics.Enabled {
		fmt.Println("analytics mirror disabled in config (analytics.enabled=false); nothing to sync")
		return
	}

	fmt.Println("=== BARAS Analytics Sync ===")
	fmt.Printf("Data root: %s\n", cfg.Writer.DataRoot)
	fmt.Printf("Connecting to analytics database...\n")

	store, err := analytics.Open(ctx, cfg.Analytics.DSN, logger)
	if err != nil {
		log.Fatalf("failed to connect to analytics database: %v", err)
	}
	defer store.Close()
	fmt.Println("connection established")

	manifestPaths, err := findManifests(cfg.Writer.DataRoot)
	if err != nil {
		log.Fatalf("failed to scan data root: %v", err)
	}
	fmt.Printf("found %d manifest(s)\n", len(manifestPaths))

	records := make([]analytics.EncounterRecord, 0, len(manifestPaths))
	var loadFailed int
	for _, mp := range manifestPaths {
		rec, err := loadRecord(mp)
		if err != nil {
			logger.Warn("skipping unreadable manifest", zap.Error(err), zap.String("path", mp))
			loadFailed++
			continue
		}
		records = append(records, rec)
	}
	fmt.Printf("parsed %d valid manifest(s)\n", len(records))

	fmt.Println("syncing to analytics store...")
	batchSize := 1000
	var imported, failed int
	start := time.Now()

	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		n, f, err := store.Ingest(ctx, batch)
		if err != nil {
			log.Printf("batch sync failed: %v", err)
			failed += len(batch)
			continue
		}
		imported += n
		failed += f

		fmt.Printf("progress: %d/%d encounters synced\n", imported, len(records))
	}

	duration := time.Since(start)
	fmt.Println("\n=== Sync Complete ===")
	fmt.Printf("synced: %d encounters\n", imported)
	if failed+loadFailed > 0 {
		fmt.Printf("failed: %d encounters (%d unreadable, %d rejected)\n", failed+loadFailed, loadFailed, failed)
	}
	fmt.Printf("time taken: %s\n", duration)
}

// findManifests walks dataRoot for every *.parquet.manifest.json side-car
// produced by internal/columnar.Writer.Finalize.
func findManifests(dataRoot string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dataRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".manifest.json") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func loadRecord(manifestPath string) (analytics.EncounterRecord, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return analytics.EncounterRecord{}, err
	}
	var m columnar.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return analytics.EncounterRecord{}, err
	}

	archivePath := strings.TrimSuffix(manifestPath, ".manifest.json")
	sessionID := filepath.Base(filepath.Dir(manifestPath))

	return analytics.EncounterRecord{
		EncounterID: m.EncounterID,
		SessionID:   firstNonEmpty(m.SessionID, sessionID),
		AreaID:      m.AreaID,
		StartedAt:   m.StartedAt,
		EndedAt:     m.EndedAt,
		Outcome:     m.Outcome,
		BossIDs:     m.BossIDs,
		ArchivePath: archivePath,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
