// Package counters implements per-boss numeric counters: declarative
// increment/decrement/reset rules evaluated against the signal stream
// (§4.3 "Counters"). Keyed `(boss_id, counter_id)`, one Counters
// collection per CombatEncounter.
//
// Grounded on the teacher's Counter/Counters collection
// (internal/game/counters/counter.go) — same map-of-named-values shape,
// generalized from MTG's fixed counter-type vocabulary to BARAS's
// declarative, per-boss counter ids, and from "clamp at zero" semantics
// to signed deltas (a boss counter like a DPS-check tally can go
// negative on a correcting signal).
package counters

import (
	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/definitions"
	"github.com/baras-app/baras/internal/intern"
	"github.com/baras-app/baras/internal/signal"
)

// key identifies one counter instance within an encounter.
type key struct {
	BossID int64
	ID     string
}

// Counter is a single named running value.
type Counter struct {
	ID    string
	Value int64
}

// Tracker owns every active counter for one encounter and evaluates the
// declared rules against the incoming signal stream.
type Tracker struct {
	logger *zap.Logger
	values map[key]*Counter
}

// New creates an empty Tracker.
func New(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger, values: make(map[key]*Counter)}
}

// Ensure makes sure bossID's counter def.ID exists, seeding it at
// def.Initial if this is the first sighting.
func (t *Tracker) Ensure(bossID int64, def definitions.CounterDefinition) {
	k := key{BossID: bossID, ID: def.ID}
	if _, ok := t.values[k]; ok {
		return
	}
	t.values[k] = &Counter{ID: def.ID, Value: def.Initial}
}

// Value returns the current value of a counter, or 0 if it doesn't exist
// yet.
func (t *Tracker) Value(bossID int64, id string) int64 {
	if c, ok := t.values[key{BossID: bossID, ID: id}]; ok {
		return c.Value
	}
	return 0
}

// Apply evaluates sig against every rule of every known counter
// definition for bossID, applying matching deltas, and returns one
// CounterUpdated signal per counter with at least one matching rule (even
// when the matched deltas sum to zero).
func (t *Tracker) Apply(bossID int64, defs map[string]definitions.CounterDefinition, sig signal.Signal, in *intern.Interner) []signal.Signal {
	var out []signal.Signal
	for _, def := range defs {
		t.Ensure(bossID, def)
		k := key{BossID: bossID, ID: def.ID}
		c := t.values[k]

		var delta int64
		matched := false
		for _, rule := range def.Rules {
			if matchesTrigger(rule.Trigger, sig, in) {
				delta += rule.Delta
				matched = true
			}
		}
		if !matched {
			continue
		}
		c.Value += delta
		out = append(out, signal.Signal{
			Kind:          signal.KindCounterUpdated,
			EventTime:     sig.EventTime,
			CounterBossID: bossID,
			CounterID:     in.Intern(def.ID),
			CounterValue:  c.Value,
		})
	}
	return out
}

// ResetOnPhase resets every counter named in ids back to its declared
// initial value (§4.3 "reset rules: ... on-phase").
func (t *Tracker) ResetOnPhase(bossID int64, ids []string, defs map[string]definitions.CounterDefinition) {
	for _, id := range ids {
		def, ok := defs[id]
		if !ok {
			continue
		}
		k := key{BossID: bossID, ID: id}
		if c, ok := t.values[k]; ok {
			c.Value = def.Initial
		}
	}
}

// ResetOnEncounter resets every counter declared reset_on: encounter to
// its declared initial value.
func (t *Tracker) ResetOnEncounter(defs map[string]definitions.CounterDefinition) {
	for k, c := range t.values {
		if def, ok := defs[k.ID]; ok && def.ResetOn == definitions.ResetOnEncounter {
			c.Value = def.Initial
		}
	}
}

// ResetOnTimer resets counters whose reset rule is tied to timerID
// expiring to their declared initial value.
func (t *Tracker) ResetOnTimer(timerID string, defs map[string]definitions.CounterDefinition) {
	for k, c := range t.values {
		def, ok := defs[k.ID]
		if !ok || def.ResetOn != definitions.ResetOnTimer {
			continue
		}
		for _, rule := range def.Rules {
			if rule.Trigger.Kind == definitions.TriggerTimerExpires && rule.Trigger.ParentTimer == timerID {
				c.Value = def.Initial
			}
		}
	}
}

func matchesTrigger(tr definitions.Trigger, sig signal.Signal, in *intern.Interner) bool {
	switch tr.Kind {
	case definitions.TriggerAnyOf:
		for _, sub := range tr.AnyOf {
			if matchesTrigger(sub, sig, in) {
				return true
			}
		}
		return false
	case definitions.TriggerAbilityCast:
		return sig.Kind == signal.KindAbilityCast && (tr.AbilityID == 0 || sig.AbilityID == tr.AbilityID)
	case definitions.TriggerEffectApplied:
		return (sig.Kind == signal.KindEffectApplied || sig.Kind == signal.KindEffectRefreshed) &&
			(tr.EffectName == "" || in.Lookup(sig.Effect) == tr.EffectName)
	case definitions.TriggerEffectRemoved:
		return sig.Kind == signal.KindEffectRemoved &&
			(tr.EffectName == "" || in.Lookup(sig.Effect) == tr.EffectName)
	case definitions.TriggerNpcAppears:
		return sig.Kind == signal.KindNpcFirstSeen && (tr.TemplateID == 0 || sig.TemplateID == tr.TemplateID)
	case definitions.TriggerPhaseEnded:
		return sig.Kind == signal.KindPhaseChanged && (tr.PhaseID == "" || in.Lookup(sig.FromPhase) == tr.PhaseID)
	case definitions.TriggerTimerExpires:
		return sig.Kind == signal.KindTimerExpired && (tr.ParentTimer == "" || in.Lookup(sig.TimerDefID) == tr.ParentTimer)
	case definitions.TriggerCombatStart:
		return sig.Kind == signal.KindCombatStarted
	default:
		return false
	}
}
