package counters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/definitions"
	"github.com/baras-app/baras/internal/intern"
	"github.com/baras-app/baras/internal/signal"
)

func TestTracker_EnsureSeedsInitialValue(t *testing.T) {
	tr := New(zap.NewNop())
	tr.Ensure(100, definitions.CounterDefinition{ID: "adds_killed", Initial: 5})
	assert.Equal(t, int64(5), tr.Value(100, "adds_killed"))
}

func TestTracker_ApplyIncrementsOnMatchingTrigger(t *testing.T) {
	tr := New(zap.NewNop())
	in := intern.New()

	defs := map[string]definitions.CounterDefinition{
		"adds_killed": {
			ID:      "adds_killed",
			Initial: 0,
			Rules: []definitions.CounterRule{
				{Trigger: definitions.Trigger{Kind: definitions.TriggerNpcAppears, TemplateID: 42}, Delta: 1},
			},
		},
	}

	sig := signal.Signal{Kind: signal.KindNpcFirstSeen, TemplateID: 42, EventTime: time.Now()}
	out := tr.Apply(100, defs, sig, in)

	require.Len(t, out, 1)
	assert.Equal(t, signal.KindCounterUpdated, out[0].Kind)
	assert.Equal(t, int64(1), out[0].CounterValue)
	assert.Equal(t, int64(1), tr.Value(100, "adds_killed"))
}

func TestTracker_ApplyIgnoresNonMatchingSignal(t *testing.T) {
	tr := New(zap.NewNop())
	in := intern.New()

	defs := map[string]definitions.CounterDefinition{
		"adds_killed": {
			ID: "adds_killed",
			Rules: []definitions.CounterRule{
				{Trigger: definitions.Trigger{Kind: definitions.TriggerNpcAppears, TemplateID: 42}, Delta: 1},
			},
		},
	}

	sig := signal.Signal{Kind: signal.KindNpcFirstSeen, TemplateID: 99, EventTime: time.Now()}
	out := tr.Apply(100, defs, sig, in)

	assert.Empty(t, out)
	assert.Equal(t, int64(0), tr.Value(100, "adds_killed"))
}

func TestTracker_ResetOnPhaseRestoresInitial(t *testing.T) {
	tr := New(zap.NewNop())
	defs := map[string]definitions.CounterDefinition{
		"stacks": {ID: "stacks", Initial: 2},
	}
	tr.Ensure(100, defs["stacks"])
	tr.values[key{BossID: 100, ID: "stacks"}].Value = 9

	tr.ResetOnPhase(100, []string{"stacks"}, defs)
	assert.Equal(t, int64(2), tr.Value(100, "stacks"))
}

func TestTracker_ResetOnEncounterOnlyResetsDeclaredCounters(t *testing.T) {
	tr := New(zap.NewNop())
	defs := map[string]definitions.CounterDefinition{
		"per_encounter": {ID: "per_encounter", Initial: 0, ResetOn: definitions.ResetOnEncounter},
		"permanent":     {ID: "permanent", Initial: 0, ResetOn: definitions.ResetNever},
	}
	tr.Ensure(100, defs["per_encounter"])
	tr.Ensure(100, defs["permanent"])
	tr.values[key{BossID: 100, ID: "per_encounter"}].Value = 7
	tr.values[key{BossID: 100, ID: "permanent"}].Value = 7

	tr.ResetOnEncounter(defs)

	assert.Equal(t, int64(0), tr.Value(100, "per_encounter"))
	assert.Equal(t, int64(7), tr.Value(100, "permanent"))
}

func TestTracker_AnyOfTriggerMatchesEitherBranch(t *testing.T) {
	tr := New(zap.NewNop())
	in := intern.New()

	defs := map[string]definitions.CounterDefinition{
		"either": {
			ID: "either",
			Rules: []definitions.CounterRule{{
				Trigger: definitions.Trigger{Kind: definitions.TriggerAnyOf, AnyOf: []definitions.Trigger{
					{Kind: definitions.TriggerNpcAppears, TemplateID: 1},
					{Kind: definitions.TriggerNpcAppears, TemplateID: 2},
				}},
				Delta: 1,
			}},
		},
	}

	sig := signal.Signal{Kind: signal.KindNpcFirstSeen, TemplateID: 2, EventTime: time.Now()}
	out := tr.Apply(100, defs, sig, in)

	require.Len(t, out, 1)
	assert.Equal(t, int64(1), tr.Value(100, "either"))
}
