// Package processor implements EventProcessor (§4.3): the event-to-signal
// state machine owning encounter lifecycle, phase transitions, and counter
// wiring. Challenges are not evaluated here: no challenge state is
// accumulated and no ChallengeProgressed signal is emitted. Besides the
// SessionCache it's handed, Process reads and updates the Processor's own
// effect, timer and counter trackers, and new encounters get random uuid
// ids, so the same (event, cache) pair does not always yield identical
// signals.
package processor

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/combatlog"
	"github.com/baras-app/baras/internal/counters"
	"github.com/baras-app/baras/internal/definitions"
	"github.com/baras-app/baras/internal/effects"
	"github.com/baras-app/baras/internal/encounter"
	"github.com/baras-app/baras/internal/entity"
	"github.com/baras-app/baras/internal/errs"
	"github.com/baras-app/baras/internal/intern"
	"github.com/baras-app/baras/internal/session"
	"github.com/baras-app/baras/internal/signal"
	"github.com/baras-app/baras/internal/timers"
)

// Processor owns one session's worth of state machine components. It is
// not goroutine-safe — one Processor per pipeline task (§5).
type Processor struct {
	interner *intern.Interner
	logger   *zap.Logger

	effects *effects.Tracker
	timers  *timers.Manager
	counters *counters.Tracker
}

// New creates a Processor. aoeWindow is forwarded to the effect tracker
// (config.EffectsConfig.AoeRefreshWindow).
func New(interner *intern.Interner, aoeWindow time.Duration, logger *zap.Logger) *Processor {
	return &Processor{
		interner: interner,
		logger:   logger,
		effects:  effects.New(aoeWindow, logger),
		timers:   timers.New(logger),
		counters: counters.New(logger),
	}
}

// Process applies one CombatEvent to cache and returns the signals it
// produces, in a fixed component order: EventProcessor's own lifecycle,
// NPC-sighting and HP/phase signals first, then EffectTracker, then
// counter updates, then TimerManager. Counters and timers both observe
// every signal produced before them for this event, since they can
// trigger off CombatStarted/PhaseChanged/etc., not only off raw log
// events.
func (p *Processor) Process(ev combatlog.CombatEvent, cache *session.Cache) []signal.Signal {
	var out []signal.Signal

	switch ev.Kind {
	case combatlog.KindLoginInfo:
		cache.Player.Name = ev.Source.Name
		cache.Player.ID = ev.Source.ID

	case combatlog.KindAreaChange:
		out = append(out, p.handleAreaChange(ev, cache)...)

	case combatlog.KindEnterCombat:
		out = append(out, p.handleEnterCombat(ev, cache)...)

	case combatlog.KindExitCombat:
		out = append(out, p.handleExitCombat(ev, cache)...)

	case combatlog.KindTargetSet:
		cache.SetTarget(ev.Target)
		out = append(out, signal.Signal{Kind: signal.KindTargetChanged, EventTime: ev.Time, Target: ev.Target})

	case combatlog.KindTargetCleared:
		cache.ClearTarget()
		out = append(out, signal.Signal{Kind: signal.KindTargetCleared, EventTime: ev.Time})

	case combatlog.KindDeath:
		out = append(out, p.handleDeath(ev, cache)...)

	case combatlog.KindRevive:
		out = append(out, p.handleRevive(ev, cache)...)

	case combatlog.KindAbilityActivate:
		out = append(out, signal.Signal{
			Kind: signal.KindAbilityCast, EventTime: ev.Time,
			Source: ev.Source, Target: ev.Target, AbilityID: ev.Ability.ID,
		})
	}

	if cache.Active != nil {
		out = append(out, p.noteFirstSighting(ev, cache)...)
		out = append(out, p.maybeUpdateHP(ev, cache)...)
	}

	out = append(out, p.handleEffects(ev, cache)...)

	// Counters and timers react to every signal produced so far this
	// event, not only to the raw log event.
	if cache.Active != nil && cache.Definitions != nil {
		for _, bs := range cache.Active.Bosses {
			for _, sig := range append([]signal.Signal(nil), out...) {
				out = append(out, p.counters.Apply(bs.Entity.TemplateID, cache.Definitions.Counters, sig, p.interner)...)
			}
		}
	}
	if cache.Definitions != nil {
		for _, sig := range append([]signal.Signal(nil), out...) {
			out = append(out, p.timers.Evaluate(cache.Definitions.Timers, sig, ev.Time, p.interner)...)
		}
	}

	return out
}

func (p *Processor) handleAreaChange(ev combatlog.CombatEvent, cache *session.Cache) []signal.Signal {
	var out []signal.Signal
	if cache.Active != nil {
		cache.Active.Finalize(ev.Time)
		cache.Active.Outcome = encounter.OutcomeWipe
		out = append(out, signal.Signal{Kind: signal.KindCombatEnded, EventTime: ev.Time, Outcome: signal.OutcomeWipe})
	}
	newArea := p.interner.Lookup(ev.Ability.Name) // area name carried in the ability-name slot by convention
	cache.ResetArea(newArea)
	return out
}

func (p *Processor) handleEnterCombat(ev combatlog.CombatEvent, cache *session.Cache) []signal.Signal {
	if cache.Active != nil {
		return nil // idempotent, per §4.3
	}
	cache.Active = encounter.New(uuid.NewString(), cache.Area, ev.Time)
	return []signal.Signal{{Kind: signal.KindCombatStarted, EventTime: ev.Time}}
}

func (p *Processor) handleExitCombat(ev combatlog.CombatEvent, cache *session.Cache) []signal.Signal {
	if cache.Active == nil {
		return nil
	}
	cache.Active.Finalize(ev.Time)
	outcome := signal.OutcomeWipe
	if cache.Active.Outcome == encounter.OutcomeKill {
		outcome = signal.OutcomeKill
	}
	cache.Active.WriterOpen = false
	sig := signal.Signal{Kind: signal.KindCombatEnded, EventTime: ev.Time, Outcome: outcome}
	p.timers.CancelAll(definitionsOrEmpty(cache))
	cache.Active = nil
	return []signal.Signal{sig}
}

func (p *Processor) handleDeath(ev combatlog.CombatEvent, cache *session.Cache) []signal.Signal {
	out := []signal.Signal{{Kind: signal.KindEntityDeath, EventTime: ev.Time, Target: ev.Target}}
	out = append(out, p.effects.OnDeath(ev.Target, ev.Time)...)
	if cache.Active != nil {
		if bs, ok := cache.Active.Bosses[ev.Target.Key()]; ok {
			bs.Died = true
			bs.Revived = false
		}
		if ev.Target.Kind == entity.KindPlayer {
			if pm := cache.Active.PlayerMetricsFor(ev.Target); pm != nil {
				pm.Deaths++
			}
		}
	}
	return out
}

func (p *Processor) handleRevive(ev combatlog.CombatEvent, cache *session.Cache) []signal.Signal {
	if cache.Active != nil {
		if bs, ok := cache.Active.Bosses[ev.Target.Key()]; ok {
			bs.Revived = true
		}
	}
	return []signal.Signal{{Kind: signal.KindEntityRevived, EventTime: ev.Time, Target: ev.Target}}
}

// noteFirstSighting detects a new NPC in the current encounter and, if
// its template matches a loaded boss definition, registers it (§4.3 "NPC
// first sighting").
func (p *Processor) noteFirstSighting(ev combatlog.CombatEvent, cache *session.Cache) []signal.Signal {
	var out []signal.Signal
	for _, e := range [2]entity.Entity{ev.Source, ev.Target} {
		if e.Kind != entity.KindNpc || e.IsEmpty() {
			continue
		}
		if !cache.NoteSighting(e) {
			continue
		}
		out = append(out, signal.Signal{Kind: signal.KindNpcFirstSeen, EventTime: ev.Time, Target: e, TemplateID: e.TemplateID})

		if cache.Definitions == nil {
			continue
		}
		if def, ok := encounter.ResolveBossForNpc(e.TemplateID, cache.Definitions.Bosses); ok {
			if _, already := cache.Active.Bosses[e.Key()]; !already {
				cache.Active.RegisterBoss(e, def)
				out = append(out, signal.Signal{Kind: signal.KindBossEncounterDetected, EventTime: ev.Time, Target: e, BossID: e.TemplateID})
			}
		}
	}
	return out
}

// maybeUpdateHP applies an HP-carrying event to a registered boss's
// tracker and evaluates phase transitions (§4.3 "Target HP update").
func (p *Processor) maybeUpdateHP(ev combatlog.CombatEvent, cache *session.Cache) []signal.Signal {
	if ev.Detail.HPMax == 0 {
		return nil
	}
	bs, ok := cache.Active.Bosses[ev.Target.Key()]
	if !ok {
		return nil
	}
	bs.HPCurrent, bs.HPMax = ev.Detail.HPCurrent, ev.Detail.HPMax
	if bs.HPCurrent <= 0 {
		bs.Died = true
	}

	out := []signal.Signal{{Kind: signal.KindBossHpChanged, EventTime: ev.Time, Target: ev.Target, BossID: bs.Entity.TemplateID, HpPct: bs.HPPercent()}}
	out = append(out, p.evaluatePhaseTransitions(ev, cache, bs)...)
	return out
}

// evaluatePhaseTransitions picks at most one transition per event using
// the deterministic priority explicit-external > HP > NPC > effect >
// elapsed (§4.3 "Phases").
func (p *Processor) evaluatePhaseTransitions(ev combatlog.CombatEvent, cache *session.Cache, bs *encounter.BossState) []signal.Signal {
	var current *definitions.PhaseDefinition
	for i := range bs.Def.Phases {
		if bs.Def.Phases[i].ID == bs.CurrentPhase {
			current = &bs.Def.Phases[i]
			break
		}
	}
	if current == nil {
		return nil
	}

	best := pickTransition(current.Transitions, ev, bs)
	if best == nil {
		return nil
	}

	fromPhase := bs.CurrentPhase
	bs.EnterPhase(best.ToPhase, ev.Time)
	if len(best.ResetCounters) > 0 {
		p.counters.ResetOnPhase(bs.Entity.TemplateID, best.ResetCounters, cache.Definitions.Counters)
	}

	return []signal.Signal{{
		Kind: signal.KindPhaseChanged, EventTime: ev.Time, Target: bs.Entity,
		BossID: bs.Entity.TemplateID, FromPhase: p.interner.Intern(fromPhase), ToPhase: p.interner.Intern(best.ToPhase),
	}}
}

var transitionPriority = map[definitions.PhaseTransitionKind]int{
	definitions.TransitionExternalSignal:      0,
	definitions.TransitionHpThreshold:         1,
	definitions.TransitionNpcSpawned:          2,
	definitions.TransitionNpcDied:             2,
	definitions.TransitionEffectAppliedOnBoss: 3,
	definitions.TransitionElapsedSincePhase:   4,
}

func pickTransition(candidates []definitions.PhaseTransition, ev combatlog.CombatEvent, bs *encounter.BossState) *definitions.PhaseTransition {
	var best *definitions.PhaseTransition
	bestPrio := 1 << 30
	for i := range candidates {
		t := &candidates[i]
		if !transitionFires(t, ev, bs) {
			continue
		}
		if prio := transitionPriority[t.Kind]; prio < bestPrio {
			bestPrio = prio
			best = t
		}
	}
	return best
}

func transitionFires(t *definitions.PhaseTransition, ev combatlog.CombatEvent, bs *encounter.BossState) bool {
	switch t.Kind {
	case definitions.TransitionHpThreshold:
		return bs.HPPercent()*100 <= t.HpPct
	case definitions.TransitionElapsedSincePhase:
		return bs.TimeSincePhaseStart(ev.Time) >= time.Duration(t.ElapsedSec)*time.Second
	case definitions.TransitionNpcSpawned:
		return ev.Kind == combatlog.KindEnterCombat && ev.Target.TemplateID == t.TemplateID
	case definitions.TransitionNpcDied:
		return ev.Kind == combatlog.KindDeath && ev.Target.TemplateID == t.TemplateID
	case definitions.TransitionEffectAppliedOnBoss:
		return (ev.Kind == combatlog.KindEffectApplyBegin || ev.Kind == combatlog.KindEffectRefresh) &&
			ev.Target.Kind == entity.KindNpc
	default:
		return false
	}
}

func (p *Processor) handleEffects(ev combatlog.CombatEvent, cache *session.Cache) []signal.Signal {
	var def definitions.EffectDefinition
	if cache.Definitions != nil {
		def = cache.Definitions.Effects[p.interner.Lookup(ev.Detail.EffectName)]
	}

	switch ev.Kind {
	case combatlog.KindEffectApplyBegin:
		return p.effects.Apply(ev.Target, ev.Source, ev.Detail.EffectName, ev.Time, def, false, ev.Detail.Charges)
	case combatlog.KindEffectRefresh:
		return p.effects.Apply(ev.Target, ev.Source, ev.Detail.EffectName, ev.Time, def, true, ev.Detail.Charges)
	case combatlog.KindEffectApplyEnd:
		return p.effects.Remove(ev.Target, ev.Detail.EffectName, ev.Time)
	default:
		return nil
	}
}

// Tick runs periodic sweeps (effect expiry, pending AoE bucket flush)
// that aren't tied to a specific log line, driven by a periodic ticker
// (cmd/baras-agent uses config.EffectsConfig.SweepInterval) rather than
// by incoming events.
func (p *Processor) Tick(now time.Time) []signal.Signal {
	return p.effects.Sweep(now)
}

func definitionsOrEmpty(cache *session.Cache) map[string]definitions.TimerDefinition {
	if cache.Definitions == nil {
		return nil
	}
	return cache.Definitions.Timers
}

// StateInvariantViolation builds the structured error for a precondition
// violation (e.g. a BossHp event for an encounter that already ended),
// logged and dropped rather than panicking (§4.3 "Failure semantics").
func StateInvariantViolation(message string, kv ...any) *errs.BarasError {
	return errs.New(errs.KindStateInvariant, message, nil, kv...)
}
