package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAttach_DeliversContentAlreadyPresentAtAttachTime(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "combat.log", "line one\nline two\n")

	r, err := Attach(path, "", 0, nil)
	require.NoError(t, err)
	defer r.Close()

	lines, err := r.Poll()
	require.NoError(t, err)
	require.Len(t, lines, 2, "lines present at attach time must be delivered by the first Poll")
	assert.Equal(t, "line one", string(lines[0]))
	assert.Equal(t, "line two", string(lines[1]))
}

func TestAttach_EmptyFileYieldsNoLinesUntilGrowth(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "combat.log", "")

	r, err := Attach(path, "", 0, nil)
	require.NoError(t, err)
	defer r.Close()

	lines, err := r.Poll()
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.NoError(t, os.WriteFile(path, []byte("first line\n"), 0o644))
	lines, err = r.Poll()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "first line", string(lines[0]))
}

func TestPoll_BuffersTrailingPartialLineAcrossPolls(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "combat.log", "complete line\npartial-")

	r, err := Attach(path, "", 0, nil)
	require.NoError(t, err)
	defer r.Close()

	lines, err := r.Poll()
	require.NoError(t, err)
	require.Len(t, lines, 1, "the trailing partial line must not be delivered yet")
	assert.Equal(t, "complete line", string(lines[0]))

	require.NoError(t, os.WriteFile(path, []byte("complete line\npartial-line finished\n"), 0o644))
	lines, err = r.Poll()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "partial-line finished", string(lines[0]))
}

func TestPoll_DetectsTruncationMidLine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "combat.log", "line one\nline two\nline three\n")

	r, err := Attach(path, "", 0, nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Poll()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("short\n"), 0o644))
	_, err = r.Poll()
	require.Error(t, err)
	var rotated *Rotated
	require.ErrorAs(t, err, &rotated)
	assert.Equal(t, "file truncated", rotated.Reason)
}

func TestPoll_DetectsFileReplacement(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "combat.log", "line one\n")

	r, err := Attach(path, "", 0, nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Poll()
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	writeFile(t, dir, "combat.log", "a brand new file\n")

	_, err = r.Poll()
	require.Error(t, err)
	var rotated *Rotated
	require.ErrorAs(t, err, &rotated)
	assert.Equal(t, "file replaced", rotated.Reason)
}

func TestAttach_ReattachIsIdempotentViaPersistedOffset(t *testing.T) {
	dir := t.TempDir()
	offsetDir := filepath.Join(dir, "offsets")
	path := writeFile(t, dir, "combat.log", "line one\nline two\n")

	r1, err := Attach(path, offsetDir, 0, nil)
	require.NoError(t, err)
	lines, err := r1.Poll()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.NoError(t, r1.Close())

	// Reattaching against the same file with no growth must not
	// re-deliver already-consumed lines.
	r2, err := Attach(path, offsetDir, 0, nil)
	require.NoError(t, err)
	defer r2.Close()

	lines, err = r2.Poll()
	require.NoError(t, err)
	assert.Empty(t, lines, "reattach must resume from the persisted cursor, not redeliver from byte zero")

	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\nline three\n"), 0o644))
	lines, err = r2.Poll()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "line three", string(lines[0]))
}

func TestScanNewLines_DropsOversizedLine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "combat.log", "ok\nthis-line-is-too-long\nok2\n")

	r, err := Attach(path, "", 10, nil)
	require.NoError(t, err)
	defer r.Close()

	lines, err := r.Poll()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "ok", string(lines[0]))
	assert.Equal(t, "ok2", string(lines[1]))
}
