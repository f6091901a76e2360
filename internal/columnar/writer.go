// Package columnar implements the per-encounter columnar archive (§4.6):
// parquet-go-backed row-group batching, block compression, a blake2b
// footer checksum for crash detection, and rename-on-close atomicity.
//
// Grounded on parquet-go (github.com/parquet-go/parquet-go), the columnar
// library used elsewhere in the retrieval pack (gravitational-teleport,
// YANGGMM-matrixone) for exactly this shape of append-then-finalize
// per-file archive. blake2b (golang.org/x/crypto/blake2b) supplies the
// footer checksum; no library in the pack offers a ready-made
// crash-detection footer, so the checksum side-file is hand-rolled on top
// of the teacher's atomic-rename discipline — see DESIGN.md.
package columnar

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/baras-app/baras/internal/errs"
)

// SchemaVersion is written into every manifest so future readers can
// detect a format change (§4.6 "Schema versioned by a file-level key").
const SchemaVersion = 1

// Manifest is the side-car JSON describing one encounter's archive file
// and its crash-safety state.
type Manifest struct {
	EncounterID   string    `json:"encounter_id"`
	SchemaVersion int       `json:"schema_version"`
	RowCount      int64     `json:"row_count"`
	Checksum      string    `json:"checksum_blake2b256"`
	Degraded      bool      `json:"degraded"`
	SessionID     string    `json:"session_id,omitempty"`
	AreaID        string    `json:"area_id,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	EndedAt       time.Time `json:"ended_at,omitempty"`
	Outcome       string    `json:"outcome,omitempty"`
	BossIDs       []int64   `json:"boss_ids,omitempty"`
}

// Writer accumulates rows for one encounter and flushes them in
// row-group-sized batches to a temp file, finalized atomically by Finalize.
type Writer struct {
	logger       *zap.Logger
	dataRoot     string
	sessionID    string
	encounterID  string
	rowGroupSize int
	compression  string

	tmpPath   string
	finalPath string
	file      *os.File
	pw        *parquet.GenericWriter[Row]
	buf       []Row
	rowCount  int64
	hasher    hash.Hash
	meta      Manifest
}

// SetMetadata attaches encounter-level bookkeeping (area, times, outcome,
// bosses) that Finalize copies into the manifest for cmd/baras-sync to
// mirror into the analytics store, without the writer itself needing to
// know about internal/encounter.
func (w *Writer) SetMetadata(sessionID, areaID string, startedAt, endedAt time.Time, outcome string, bossIDs []int64) {
	w.meta = Manifest{SessionID: sessionID, AreaID: areaID, StartedAt: startedAt, EndedAt: endedAt, Outcome: outcome, BossIDs: bossIDs}
}

// New opens a new Writer for encounterID under dataRoot/sessionID/,
// per §6's on-disk layout `<data_root>/<session_id>/<encounter_id>.<ext>`.
func New(dataRoot, sessionID, encounterID string, rowGroupSize int, compression string, logger *zap.Logger) (*Writer, error) {
	dir := filepath.Join(dataRoot, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.New(errs.KindWriter, "create encounter archive directory", err, "dir", dir)
	}

	finalPath := filepath.Join(dir, encounterID+".parquet")
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, errs.New(errs.KindWriter, "create temp archive file", err, "path", tmpPath)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		f.Close()
		return nil, errs.New(errs.KindWriter, "init checksum hasher", err)
	}

	opts := []parquet.WriterOption{parquet.SchemaOf(Row{}), parquet.Compression(codecFor(compression))}
	pw := parquet.NewGenericWriter[Row](f, opts...)

	return &Writer{
		logger: logger, dataRoot: dataRoot, sessionID: sessionID, encounterID: encounterID,
		rowGroupSize: rowGroupSize, compression: compression,
		tmpPath: tmpPath, finalPath: finalPath, file: f, pw: pw,
		hasher: h,
	}, nil
}

// Append buffers one row, flushing a row group to disk once the
// configured threshold is reached (§4.6 "Batching").
func (w *Writer) Append(r Row) error {
	w.buf = append(w.buf, r)
	if len(w.buf) >= w.rowGroupSize {
		return w.flush()
	}
	return nil
}

func (w *Writer) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	n, err := w.pw.Write(w.buf)
	if err != nil {
		return errs.New(errs.KindWriter, "write row group", err, "encounter", w.encounterID)
	}
	w.rowCount += int64(n)
	w.buf = w.buf[:0]
	return nil
}

// Finalize flushes any remaining buffered rows, writes the parquet
// footer, computes the checksum manifest, and atomically renames the
// temp file into place (§4.6 "Atomicity").
func (w *Writer) Finalize() error {
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.pw.Close(); err != nil {
		return errs.New(errs.KindWriter, "close parquet writer", err, "encounter", w.encounterID)
	}

	if _, err := w.file.Seek(0, 0); err == nil {
		_, _ = io.Copy(w.hasher, w.file)
	}
	if err := w.file.Close(); err != nil {
		return errs.New(errs.KindWriter, "close archive file", err, "encounter", w.encounterID)
	}

	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		return errs.New(errs.KindWriter, "rename archive into place", err, "from", w.tmpPath, "to", w.finalPath)
	}

	manifest := w.meta
	manifest.EncounterID = w.encounterID
	manifest.SchemaVersion = SchemaVersion
	manifest.RowCount = w.rowCount
	manifest.Checksum = hex.EncodeToString(w.hasher.Sum(nil))
	return writeManifest(w.finalPath, manifest)
}

// Abort closes the writer and its temp file without finalizing, used on pipeline
// cancellation (§5 "on cancellation it flushes open writers and aborts").
// A writer that is cancelled mid-encounter leaves its temp file on disk,
// detectable as a partial archive the way any crash would leave one.
func (w *Writer) Abort() {
	_ = w.pw.Close()
	_ = w.file.Close()
}

func writeManifest(finalPath string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errs.New(errs.KindWriter, "marshal manifest", err, "encounter", m.EncounterID)
	}
	manifestPath := finalPath + ".manifest.json"
	tmp := manifestPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.New(errs.KindWriter, "write manifest", err, "path", manifestPath)
	}
	if err := os.Rename(tmp, manifestPath); err != nil {
		return errs.New(errs.KindWriter, "rename manifest into place", err, "path", manifestPath)
	}
	return nil
}

// codecFor maps the config string (§6 "zstd, snappy, uncompressed") onto
// parquet-go's built-in codecs; integer columns still get RLE/bit-packing
// from the library's default encoding regardless of block codec, and the
// effect_name column is dictionary-encoded via its struct tag.
func codecFor(name string) parquet.Compression {
	switch name {
	case "snappy":
		return &parquet.Snappy
	case "uncompressed":
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}

// LoadManifest reads back a finalized encounter's manifest, reporting
// Degraded if the manifest is absent or unreadable (a crash left a bare
// .tmp file behind) or the archive file is missing. The archive's size
// and checksum are not compared against the manifest.
func LoadManifest(finalPath string) (Manifest, error) {
	manifestPath := finalPath + ".manifest.json"
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return Manifest{Degraded: true}, fmt.Errorf("read manifest %s: %w", manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{Degraded: true}, fmt.Errorf("parse manifest %s: %w", manifestPath, err)
	}
	if _, err := os.Stat(finalPath); err != nil {
		m.Degraded = true
	}
	return m, nil
}
