// Package reader implements the memory-mapped tailing reader (§4.1):
// attach to the active combat log, yield complete lines as the writer
// appends to the file, and detect truncation/rotation so the caller can
// attach a fresh Reader.
//
// Grounded on github.com/edsrzf/mmap-go, the mmap library the retrieval
// pack's manifests show in active use (steveyegge-beads, AKJUS-bsc-erigon,
// bobanetwork-erigon, okx-cdk-erigon) — see DESIGN.md.
package reader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/edsrzf/mmap-go"
	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/errs"
)

const defaultMaxLineBytes = 64 * 1024

// Reader memory-maps an active log file and yields complete lines as the
// file grows. It is restartable: the consumed cursor is persisted under
// offsetDir so a reattach resumes rather than re-delivering the file from
// byte zero.
type Reader struct {
	path      string
	offsetDir string
	maxLine   int

	logger *zap.Logger

	file    *os.File
	info    os.FileInfo
	mapping mmap.MMap
	mapped  int64 // bytes currently mapped

	cursor int64  // bytes consumed up to the last delivered newline
	buf    []byte // partial trailing line carried across polls

	// pending holds lines already scanned out of the range mapped at
	// Attach time but not yet handed to a caller; the first Poll drains
	// it before checking for further growth.
	pending [][]byte
}

// Rotated is returned by Poll when the underlying file was replaced or
// truncated; the stream ends cleanly and the caller should Attach a new
// Reader (§4.1 "a RotationNoticed signal terminates the stream cleanly").
type Rotated struct {
	Reason string
}

func (r *Rotated) Error() string { return "log rotated: " + r.Reason }

// Attach opens and memory-maps path read-only, resuming from a
// previously persisted cursor if one exists under offsetDir.
func Attach(path, offsetDir string, maxLineBytes int, logger *zap.Logger) (*Reader, error) {
	if maxLineBytes <= 0 {
		maxLineBytes = defaultMaxLineBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.KindReader, "open log file", err, "path", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.New(errs.KindReader, "stat log file", err, "path", path)
	}

	r := &Reader{
		path:      path,
		offsetDir: offsetDir,
		maxLine:   maxLineBytes,
		logger:    logger,
		file:      f,
		info:      info,
	}

	if off, ok := r.loadOffset(); ok && off <= info.Size() {
		r.cursor = off
	}

	if err := r.remap(); err != nil {
		f.Close()
		return nil, err
	}

	// Whatever is already between the resumed cursor and the just-mapped
	// end of file was never scanned — scan it now so Attach's first
	// Poll delivers it instead of silently treating it as "no growth".
	r.pending = r.scanNewLines()

	return r, nil
}

// Poll checks whether the mapped file has grown, scans any new bytes for
// complete lines, and returns them. A *Rotated error means the stream is
// over; any other error is a one-off §7 ReaderError and polling may
// continue on the next tick.
func (r *Reader) Poll() ([][]byte, error) {
	if len(r.pending) > 0 {
		lines := r.pending
		r.pending = nil
		return lines, nil
	}

	info, err := os.Stat(r.path)
	if err != nil {
		return nil, errs.New(errs.KindReader, "stat log file", err, "path", r.path)
	}

	if !os.SameFile(info, r.info) {
		return nil, &Rotated{Reason: "file replaced"}
	}
	if info.Size() < r.cursor {
		return nil, &Rotated{Reason: "file truncated"}
	}
	if info.Size() == r.mapped {
		return nil, nil
	}

	r.info = info
	if err := r.remap(); err != nil {
		return nil, err
	}

	return r.scanNewLines(), nil
}

// remap (re)maps the file from zero to its current size. mmap-go maps a
// fixed window at call time, so growth is picked up by unmap + remap
// rather than by touching the existing mapping.
func (r *Reader) remap() error {
	if r.mapping != nil {
		if err := r.mapping.Unmap(); err != nil {
			return errs.New(errs.KindReader, "unmap log file", err, "path", r.path)
		}
		r.mapping = nil
	}

	if r.info.Size() == 0 {
		r.mapped = 0
		return nil
	}

	m, err := mmap.MapRegion(r.file, int(r.info.Size()), mmap.RDONLY, 0, 0)
	if err != nil {
		return errs.New(errs.KindReader, "mmap log file", err, "path", r.path)
	}
	r.mapping = m
	r.mapped = r.info.Size()
	return nil
}

// scanNewLines byte-scans from the current cursor to the end of the
// mapping, yielding every complete (newline-terminated) line and
// buffering a trailing partial line for the next poll.
func (r *Reader) scanNewLines() [][]byte {
	var lines [][]byte

	data := r.mapping[r.cursor:]
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			r.buf = append(r.buf[:0], data...)
			r.cursor = r.mapped
			break
		}

		raw := data[:idx]
		data = data[idx+1:]
		r.cursor += int64(idx) + 1

		var line []byte
		if len(r.buf) > 0 {
			line = append(append([]byte(nil), r.buf...), raw...)
			r.buf = r.buf[:0]
		} else {
			line = append([]byte(nil), raw...)
		}

		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}

		if len(line) > r.maxLine {
			if r.logger != nil {
				r.logger.Warn("discarding oversized log line",
					zap.Int("length", len(line)),
					zap.Int("max", r.maxLine),
				)
			}
			continue
		}

		lines = append(lines, sanitizeUTF8(line))
	}

	r.persistOffset()
	return lines
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD so the parser
// never receives invalid text (§4.1 "Edge policies").
func sanitizeUTF8(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	var out []byte
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			out = append(out, []byte(string(utf8.RuneError))...)
			b = b[1:]
			continue
		}
		out = append(out, b[:size]...)
		b = b[size:]
	}
	return out
}

// Close releases the mapping and persists the final cursor.
func (r *Reader) Close() error {
	r.persistOffset()
	if r.mapping != nil {
		_ = r.mapping.Unmap()
	}
	return r.file.Close()
}

func (r *Reader) offsetFile() string {
	return filepath.Join(r.offsetDir, fmt.Sprintf("%x.offset", hashPath(r.path)))
}

func (r *Reader) persistOffset() {
	if r.offsetDir == "" {
		return
	}
	if err := os.MkdirAll(r.offsetDir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(r.offsetFile(), []byte(strconv.FormatInt(r.cursor, 10)), 0o644)
}

func (r *Reader) loadOffset() (int64, bool) {
	if r.offsetDir == "" {
		return 0, false
	}
	data, err := os.ReadFile(r.offsetFile())
	if err != nil {
		return 0, false
	}
	off, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return off, true
}

// hashPath derives a stable filename for the offset file from the log
// path without pulling in a hashing dependency just for this.
func hashPath(path string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(path); i++ {
		h ^= uint64(path[i])
		h *= 1099511628211
	}
	return h
}
