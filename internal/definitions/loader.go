package definitions

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/baras-app/baras/internal/errs"
)

// Loader reads one DefinitionSet per area from a directory tree rooted at
// BaseDir, <BaseDir>/<areaID>/{bosses,effects,timers,counters,challenges}.yaml.
// A successfully validated set is swapped in atomically; a set that fails
// validation never replaces the previous snapshot (§4.7 "a definition
// that fails validation is rejected... the previous snapshot... remains
// active"), matching the teacher's registry pattern of a mutex-guarded
// map (davidmovas-Depthborn internal/core/skill/registry.go) generalized
// to per-area snapshots instead of per-id entries.
type Loader struct {
	baseDir string
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string]*DefinitionSet
}

// NewLoader constructs a Loader rooted at baseDir.
func NewLoader(baseDir string, logger *zap.Logger) *Loader {
	return &Loader{baseDir: baseDir, logger: logger, cache: make(map[string]*DefinitionSet)}
}

// Get returns the currently active snapshot for an area, if one has been
// loaded, without touching disk.
func (l *Loader) Get(areaID string) (*DefinitionSet, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	set, ok := l.cache[areaID]
	return set, ok
}

// Load reads and validates the area's definition files and, on success,
// swaps the cached snapshot. On failure it logs the error and returns the
// previously cached snapshot (possibly nil, if this is the first load).
func (l *Loader) Load(areaID string) (*DefinitionSet, error) {
	set, err := l.loadAndValidate(areaID)
	if err != nil {
		if l.logger != nil {
			l.logger.Error("definition load rejected, keeping previous snapshot",
				zap.String("area", areaID), zap.Error(err))
		}
		prev, _ := l.Get(areaID)
		return prev, err
	}

	l.mu.Lock()
	l.cache[areaID] = set
	l.mu.Unlock()
	return set, nil
}

func (l *Loader) loadAndValidate(areaID string) (*DefinitionSet, error) {
	dir := filepath.Join(l.baseDir, areaID)
	info, statErr := os.Stat(dir)
	if statErr != nil || !info.IsDir() {
		return nil, errs.New(errs.KindDefinition, "area definition directory not found", statErr, "area", areaID, "dir", dir)
	}

	set := &DefinitionSet{
		AreaID:     areaID,
		Effects:    make(map[string]EffectDefinition),
		Timers:     make(map[string]TimerDefinition),
		Counters:   make(map[string]CounterDefinition),
		Challenges: make(map[string]ChallengeDefinition),
	}

	if err := loadYAMLIfExists(filepath.Join(dir, "bosses.yaml"), func(data []byte) error {
		var f bossFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return err
		}
		for _, b := range f.Bosses {
			set.Bosses = append(set.Bosses, convertBoss(b))
		}
		return nil
	}); err != nil {
		return nil, errs.New(errs.KindDefinition, "failed to load bosses.yaml", err, "area", areaID)
	}

	if err := loadYAMLIfExists(filepath.Join(dir, "effects.yaml"), func(data []byte) error {
		var f effectFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return err
		}
		for _, e := range f.Effects {
			set.Effects[e.Name] = convertEffect(e)
		}
		return nil
	}); err != nil {
		return nil, errs.New(errs.KindDefinition, "failed to load effects.yaml", err, "area", areaID)
	}

	if err := loadYAMLIfExists(filepath.Join(dir, "timers.yaml"), func(data []byte) error {
		var f timerFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return err
		}
		for _, t := range f.Timers {
			if _, dup := set.Timers[t.ID]; dup {
				if l.logger != nil {
					l.logger.Warn("duplicate timer id, keeping first loaded",
						zap.String("area", areaID), zap.String("timer_id", t.ID))
				}
				continue
			}
			set.Timers[t.ID] = convertTimer(t)
		}
		return nil
	}); err != nil {
		return nil, errs.New(errs.KindDefinition, "failed to load timers.yaml", err, "area", areaID)
	}

	if err := loadYAMLIfExists(filepath.Join(dir, "counters.yaml"), func(data []byte) error {
		var f counterFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return err
		}
		for _, c := range f.Counters {
			set.Counters[c.ID] = convertCounter(c)
		}
		return nil
	}); err != nil {
		return nil, errs.New(errs.KindDefinition, "failed to load counters.yaml", err, "area", areaID)
	}

	if err := loadYAMLIfExists(filepath.Join(dir, "challenges.yaml"), func(data []byte) error {
		var f challengeFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return err
		}
		for _, c := range f.Challenges {
			set.Challenges[c.ID] = convertChallenge(c)
		}
		return nil
	}); err != nil {
		return nil, errs.New(errs.KindDefinition, "failed to load challenges.yaml", err, "area", areaID)
	}

	if err := validate(set); err != nil {
		return nil, err
	}
	return set, nil
}

func loadYAMLIfExists(path string, apply func([]byte) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	return apply(data)
}
