package backfill

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/combatlog"
	"github.com/baras-app/baras/internal/intern"
)

func writeLogFile(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "combat.log")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPool_RunProcessesValidLinesAndCountsParseFailures(t *testing.T) {
	path := writeLogFile(t,
		"[00:00:01.000] [P|Tester|1] [] [] [ENTER_COMBAT]",
		"this line is garbage and has no brackets",
		"[00:00:02.000] [P|Tester|1] [] [] [EXIT_COMBAT]",
	)

	p := New(2, zap.NewNop())
	var processed []combatlog.Kind
	process := func(job Job, lineNumber int64, ev combatlog.CombatEvent, in *intern.Interner) error {
		processed = append(processed, ev.Kind)
		return nil
	}

	results, err := p.Run(context.Background(), []Job{{Path: path, SessionID: "sess-1", AnchorDate: time.Now()}}, process)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, int64(3), results[0].LineCount)
	assert.Equal(t, int64(1), results[0].ParseFail)
	assert.NoError(t, results[0].Err)
	assert.ElementsMatch(t, []combatlog.Kind{combatlog.KindEnterCombat, combatlog.KindExitCombat}, processed)
}

func TestPool_RunRecordsPerJobErrorOnAttachFailure(t *testing.T) {
	p := New(1, zap.NewNop())
	jobs := []Job{{Path: "/nonexistent/path/combat.log", SessionID: "sess-1"}}

	results, _ := p.Run(context.Background(), jobs, nil)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestPool_RunHandlesMultipleJobsIndependently(t *testing.T) {
	pathA := writeLogFile(t, "[00:00:01.000] [P|A|1] [] [] [ENTER_COMBAT]")
	pathB := writeLogFile(t, "[00:00:01.000] [P|B|2] [] [] [ENTER_COMBAT]")

	p := New(1, zap.NewNop())
	jobs := []Job{
		{Path: pathA, SessionID: "sess-a"},
		{Path: pathB, SessionID: "sess-b"},
	}

	results, err := p.Run(context.Background(), jobs, func(job Job, lineNumber int64, ev combatlog.CombatEvent, in *intern.Interner) error {
		return nil
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "sess-a", results[0].Job.SessionID)
	assert.Equal(t, "sess-b", results[1].Job.SessionID)
	assert.Equal(t, int64(1), results[0].LineCount)
	assert.Equal(t, int64(1), results[1].LineCount)
}

func TestPool_NewClampsNonPositiveWorkersToOne(t *testing.T) {
	p := New(0, zap.NewNop())
	assert.Equal(t, 1, p.workers)
}
