package definitions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeAreaFiles(t *testing.T, root, areaID string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, areaID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestLoader_LoadValidAreaCachesSnapshot(t *testing.T) {
	root := t.TempDir()
	writeAreaFiles(t, root, "dread-fortress", map[string]string{
		"bosses.yaml": `
bosses:
  - id: dread_master
    template_ids: [1001]
    counters: [adds_killed]
`,
		"counters.yaml": `
counters:
  - id: adds_killed
    initial: 0
`,
	})

	loader := NewLoader(root, zap.NewNop())
	set, err := loader.Load("dread-fortress")
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.Equal(t, "dread-fortress", set.AreaID)
	assert.Len(t, set.Bosses, 1)
	assert.Equal(t, "dread_master", set.Bosses[0].ID)

	cached, ok := loader.Get("dread-fortress")
	require.True(t, ok)
	assert.Same(t, set, cached)
}

func TestLoader_LoadRejectsInvalidSetKeepsPreviousSnapshot(t *testing.T) {
	root := t.TempDir()
	writeAreaFiles(t, root, "styrak", map[string]string{
		"bosses.yaml": `
bosses:
  - id: styrak
    template_ids: [2001]
`,
	})

	loader := NewLoader(root, zap.NewNop())
	first, err := loader.Load("styrak")
	require.NoError(t, err)

	// Overwrite with a bosses.yaml that references a counter that doesn't
	// exist — this must fail validation and leave the cache untouched.
	writeAreaFiles(t, root, "styrak", map[string]string{
		"bosses.yaml": `
bosses:
  - id: styrak
    template_ids: [2001]
    counters: [nonexistent]
`,
	})

	_, err = loader.Load("styrak")
	require.Error(t, err)

	cached, ok := loader.Get("styrak")
	require.True(t, ok)
	assert.Same(t, first, cached)
}

func TestLoader_LoadMissingAreaDirectoryFails(t *testing.T) {
	loader := NewLoader(t.TempDir(), zap.NewNop())
	_, err := loader.Load("no-such-area")
	assert.Error(t, err)
}
