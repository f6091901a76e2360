package timers

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

func TestManager_EvaluateStartsTimerOnMatchingTrigger(t *testing.T) {
	m := New(zap.NewNop())
	in := intern.New()
	defs := map[string]definitions.TimerDefinition{
		"enrage": {ID: "enrage", Duration: 30 * time.Second, Trigger: definitions.Trigger{Kind: definitions.TriggerCombatStart}},
	}

	now := time.Now()
	sig := signal.Signal{Kind: signal.KindCombatStarted, EventTime: now}
	out := m.Evaluate(defs, sig, now, in)

	require.Len(t, out, 1)
	assert.Equal(t, signal.KindTimerStarted, out[0].Kind)
	assert.Equal(t, 30*time.Second, out[0].TimerRemaining)
}

func TestManager_RefreshPolicyIgnoreDropsSecondStart(t *testing.T) {
	m := New(zap.NewNop())
	in := intern.New()
	defs := map[string]definitions.TimerDefinition{
		"enrage": {
			ID: "enrage", Duration: 10 * time.Second,
			Trigger:       definitions.Trigger{Kind: definitions.TriggerCombatStart},
			RefreshPolicy: definitions.RefreshIgnore,
		},
	}
	now := time.Now()
	sig := signal.Signal{Kind: signal.KindCombatStarted, EventTime: now}

	first := m.Evaluate(defs, sig, now, in)
	require.Len(t, first, 1)

	second := m.Evaluate(defs, sig, now.Add(time.Second), in)
	assert.Empty(t, second)
}

func TestManager_RefreshPolicyRefreshExtendsExpiry(t *testing.T) {
	m := New(zap.NewNop())
	in := intern.New()
	defs := map[string]definitions.TimerDefinition{
		"dot": {
			ID: "dot", Duration: 10 * time.Second,
			Trigger:       definitions.Trigger{Kind: definitions.TriggerCombatStart},
			RefreshPolicy: definitions.RefreshRefresh,
		},
	}
	now := time.Now()
	sig := signal.Signal{Kind: signal.KindCombatStarted, EventTime: now}

	m.Evaluate(defs, sig, now, in)
	out := m.Evaluate(defs, sig, now.Add(5*time.Second), in)

	require.Len(t, out, 1)
	assert.Equal(t, signal.KindTimerRefreshed, out[0].Kind)
}

func TestManager_ChainChildStartsWhenParentExpires(t *testing.T) {
	m := New(zap.NewNop())
	in := intern.New()
	defs := map[string]definitions.TimerDefinition{
		"parent": {
			ID: "parent", Duration: time.Second,
			Trigger:       definitions.Trigger{Kind: definitions.TriggerCombatStart},
			ChainChildren: []string{"child"},
		},
		"child": {
			ID: "child", Duration: 5 * time.Second,
			Trigger: definitions.Trigger{Kind: definitions.TriggerTimerExpires, ParentTimer: "parent"},
		},
	}
	now := time.Now()
	start := m.Evaluate(defs, signal.Signal{Kind: signal.KindCombatStarted, EventTime: now}, now, in)
	require.Len(t, start, 1)

	// Advance past the parent's expiry; the single Evaluate call both
	// expires the parent and starts its chain child in the same tick.
	later := now.Add(2 * time.Second)
	out := m.Evaluate(defs, signal.Signal{Kind: signal.KindTargetCleared, EventTime: later}, later, in)

	var sawExpired, sawChildStarted bool
	for _, s := range out {
		if s.Kind == signal.KindTimerExpired {
			sawExpired = true
		}
		if s.Kind == signal.KindTimerStarted {
			sawChildStarted = true
		}
	}
	assert.True(t, sawExpired, "expected parent TimerExpired signal")
	assert.True(t, sawChildStarted, "expected child timer to start from the chain")
}

func TestManager_SnapshotOrdersByRemainingAscending(t *testing.T) {
	m := New(zap.NewNop())
	in := intern.New()
	defs := map[string]definitions.TimerDefinition{
		"long":  {ID: "long", Duration: 30 * time.Second, Display: definitions.DisplayA, Trigger: definitions.Trigger{Kind: definitions.TriggerCombatStart}},
		"short": {ID: "short", Duration: 5 * time.Second, Display: definitions.DisplayA, Trigger: definitions.Trigger{Kind: definitions.TriggerNpcAppears, TemplateID: 1}},
	}
	now := time.Now()
	m.Evaluate(defs, signal.Signal{Kind: signal.KindCombatStarted, EventTime: now}, now, in)
	m.Evaluate(defs, signal.Signal{Kind: signal.KindNpcFirstSeen, TemplateID: 1, EventTime: now}, now, in)

	snap := m.Snapshot(definitions.DisplayA, now)
	require.Len(t, snap, 2)
	assert.Equal(t, "short", snap[0].DefID)
	assert.Equal(t, "long", snap[1].DefID)
}
