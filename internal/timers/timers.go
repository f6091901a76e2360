// Package timers implements the TimerManager (§4.5): trigger evaluation,
// chained-timer two-phase resolution, refresh policies, cancellation, and
// per-target display snapshots.
//
// Grounded on the teacher's rules.TriggerManager (deleted after
// extraction — formerly internal/game/rules/trigger.go): a mutex-guarded
// map of registered items evaluated in one pass per event, each producing
// zero or more follow-on items; uuid.NewString() stamps instance
// identity the same way the teacher stamps StackItem/trigger ids.
package timers

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/definitions"
	"github.com/baras-app/baras/internal/intern"
	"github.com/baras-app/baras/internal/signal"
)

// instanceKey identifies one active timer: (definition_id, target_scope)
// per §3 "ActiveTimer ... identified by (definition_id, target_scope)".
type instanceKey struct {
	DefID       string
	TargetScope string
}

// Instance is one running timer.
type Instance struct {
	ID         string
	DefID      string
	TargetScope string
	StartedAt  time.Time
	ExpiresAt  time.Time
	Def        definitions.TimerDefinition
}

func (i *Instance) Remaining(now time.Time) time.Duration {
	if now.After(i.ExpiresAt) {
		return 0
	}
	return i.ExpiresAt.Sub(now)
}

// Manager owns every active timer instance for one encounter/session.
type Manager struct {
	logger *zap.Logger
	active map[instanceKey]*Instance
}

// New creates an empty Manager.
func New(logger *zap.Logger) *Manager {
	return &Manager{logger: logger, active: make(map[instanceKey]*Instance)}
}

// Evaluate runs one signal through every definition, starting/chaining/
// cancelling timers as their triggers dictate, and returns the signals
// produced by doing so. Evaluation is two-phase (§4.5 "Chained timers"):
// first collect every timer this signal expires on its own, emit
// TimerExpired for each, then evaluate chain children against those
// expirations within the same call so a chain resolves in one tick.
func (m *Manager) Evaluate(defs map[string]definitions.TimerDefinition, sig signal.Signal, now time.Time, in *intern.Interner) []signal.Signal {
	var out []signal.Signal

	expiredThisTick := m.sweepExpired(now)
	for _, inst := range expiredThisTick {
		out = append(out, signal.Signal{
			Kind: signal.KindTimerExpired, EventTime: now,
			TimerDefID: in.Intern(inst.DefID), TimerInstance: inst.ID,
		})
	}

	startedThisTick := make(map[string]bool)
	for _, def := range defs {
		if matchesTrigger(def.Trigger, sig, in) {
			if s, started := m.start(def, sig, now); started {
				out = append(out, s)
				startedThisTick[def.ID] = true
			}
		}
		if def.CancelTrigger != nil && matchesTrigger(*def.CancelTrigger, sig, in) {
			m.cancel(def.ID, scopeFor(sig, def))
		}
	}

	// Chain resolution: for every timer that expired this tick, start its
	// chain children using a synthetic TimerExpired signal as the trigger
	// basis.
	for _, inst := range expiredThisTick {
		for _, childID := range inst.Def.ChainChildren {
			childDef, ok := defs[childID]
			if !ok || startedThisTick[childID] {
				continue
			}
			expiredSig := signal.Signal{Kind: signal.KindTimerExpired, EventTime: now, TimerDefID: in.Intern(inst.DefID)}
			if s, started := m.start(childDef, expiredSig, now); started {
				out = append(out, s)
				startedThisTick[childID] = true
			}
		}
	}

	return out
}

func (m *Manager) start(def definitions.TimerDefinition, sig signal.Signal, now time.Time) (signal.Signal, bool) {
	scope := scopeFor(sig, def)
	k := instanceKey{DefID: def.ID, TargetScope: scope}

	expiresAt := now.Add(def.Duration)
	if existing, ok := m.active[k]; ok {
		switch def.RefreshPolicy {
		case definitions.RefreshIgnore:
			return signal.Signal{}, false
		case definitions.RefreshKeepLonger:
			if existing.ExpiresAt.After(expiresAt) {
				return signal.Signal{}, false
			}
		case definitions.RefreshRefresh:
			existing.StartedAt = now
			existing.ExpiresAt = expiresAt
			return signal.Signal{
				Kind: signal.KindTimerRefreshed, EventTime: now,
				TimerDefID: intern.Zero, TimerInstance: existing.ID,
				TimerRemaining: existing.Remaining(now), TimerTarget: string(def.Display),
			}, true
		case definitions.RefreshReplace:
			// fall through: cancel old, start new below
		}
	}

	inst := &Instance{
		ID: uuid.NewString(), DefID: def.ID, TargetScope: scope,
		StartedAt: now, ExpiresAt: expiresAt, Def: def,
	}
	m.active[k] = inst
	return signal.Signal{
		Kind: signal.KindTimerStarted, EventTime: now,
		TimerInstance: inst.ID, TimerRemaining: def.Duration, TimerTarget: string(def.Display),
	}, true
}

func (m *Manager) cancel(defID, scope string) {
	delete(m.active, instanceKey{DefID: defID, TargetScope: scope})
}

// CancelAll cancels every timer whose definition has
// cancel_on_encounter_end set (§4.5 "Cancellation"), called on
// CombatEnded.
func (m *Manager) CancelAll(defs map[string]definitions.TimerDefinition) {
	for k, inst := range m.active {
		if def, ok := defs[inst.DefID]; ok && def.CancelOnEncounterEnd {
			delete(m.active, k)
		}
	}
}

// sweepExpired removes and returns every instance whose expires_at has
// passed as of now. An expired instance lives exactly one tick so chain
// children can observe it (§3 "ActiveTimer ... a timer in Expired state
// lives one tick").
func (m *Manager) sweepExpired(now time.Time) []*Instance {
	var expired []*Instance
	for k, inst := range m.active {
		if !now.Before(inst.ExpiresAt) {
			expired = append(expired, inst)
			delete(m.active, k)
		}
	}
	return expired
}

// Snapshot returns the active timers for one display target ordered by
// remaining time ascending, for overlay rendering (§4.5 "Display
// routing").
func (m *Manager) Snapshot(target definitions.DisplayTarget, now time.Time) []*Instance {
	var out []*Instance
	for _, inst := range m.active {
		if inst.Def.Display == target {
			out = append(out, inst)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Remaining(now) < out[j-1].Remaining(now); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func scopeFor(sig signal.Signal, def definitions.TimerDefinition) string {
	if def.Trigger.SourceScope == "player" {
		return "player"
	}
	return "encounter"
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
	case definitions.TriggerCombatStart:
		return sig.Kind == signal.KindCombatStarted
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
	default:
		return false
	}
}
