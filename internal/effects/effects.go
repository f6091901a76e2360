// Package effects implements the EffectTracker (§4.4): the set of active
// (target, effect) pairs, AoE-refresh correlation, expiry sweeps, and
// death/revive persistence rules.
//
// Grounded on the teacher's rules.Watcher family (deleted after
// extraction — formerly internal/game/rules/watcher.go): a registry of
// active instances keyed by identity, ticked once per event/interval,
// removed when a condition is met. Generalized here from "ability
// watches a turn-scoped condition" to "effect watches a target/name pair
// against an expiry clock."
package effects

import (
	"time"

	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/definitions"
	"github.com/baras-app/baras/internal/entity"
	"github.com/baras-app/baras/internal/intern"
	"github.com/baras-app/baras/internal/signal"
)

// Key identifies one active effect: (target, effect name), per §3
// "ActiveEffect ... identified by (target_entity, effect_name_interned)".
type Key struct {
	Target entity.Key
	Effect intern.IStr
}

// Active is one tracked effect instance.
type Active struct {
	Target           entity.Entity
	Source           entity.Entity
	Effect           intern.IStr
	AppliedAt        time.Time
	ExpiresAt        time.Time // zero means no automatic expiry
	Charges          int32
	PersistPastDeath bool
}

// aoeBucket accumulates targets refreshed by the same source within the
// tolerance window before being flushed as one coalesced signal (§4.4
// "AoE refresh correlation").
type aoeBucket struct {
	source    entity.Entity
	effect    intern.IStr
	opened    time.Time
	targets   []entity.Entity
}

// Tracker owns every active effect for one encounter/session.
type Tracker struct {
	logger *zap.Logger
	window time.Duration

	active map[Key]*Active
	pending map[entity.Key]map[intern.IStr]*aoeBucket // keyed by source then effect
}

// New creates a Tracker with the given AoE coalescing tolerance window
// (config.EffectsConfig.AoeRefreshWindow, 5-25ms per §4.4).
func New(window time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		logger:  logger,
		window:  window,
		active:  make(map[Key]*Active),
		pending: make(map[entity.Key]map[intern.IStr]*aoeBucket),
	}
}

// Apply handles one EffectApplyBegin/EffectApplyEnd/EffectRefresh event
// and returns the signals it produces. now is the event's own timestamp
// — the tracker's notion of time always comes from the log, never the
// wall clock, so replay and live ingestion behave identically.
func (t *Tracker) Apply(target, source entity.Entity, effect intern.IStr, now time.Time, def definitions.EffectDefinition, isRefresh bool, charges int32) []signal.Signal {
	k := Key{Target: target.Key(), Effect: effect}

	existing, ok := t.active[k]
	if !ok {
		var expiresAt time.Time
		if def.Duration > 0 {
			expiresAt = now.Add(def.Duration)
		}
		t.active[k] = &Active{
			Target: target, Source: source, Effect: effect,
			AppliedAt: now, ExpiresAt: expiresAt, Charges: charges,
			PersistPastDeath: def.PersistPastDeath,
		}
		return []signal.Signal{{Kind: signal.KindEffectApplied, EventTime: now, Target: target, Source: source, Effect: effect}}
	}

	// Re-apply on an existing key: update in place (§4.4 "updates
	// timestamps and charges in place").
	existing.AppliedAt = now
	existing.Charges = charges
	if def.Duration > 0 {
		existing.ExpiresAt = now.Add(def.Duration)
	}

	if !isRefresh {
		return []signal.Signal{{Kind: signal.KindEffectApplied, EventTime: now, Target: target, Source: source, Effect: effect}}
	}
	return t.coalesceRefresh(target, source, effect, now)
}

// coalesceRefresh buckets simultaneous per-target AoE refreshes from the
// same source+effect and flushes a single EffectRefreshed signal once the
// tolerance window has elapsed for that bucket — callers must call Sweep
// periodically to flush buckets whose window has closed without a new
// refresh extending it.
func (t *Tracker) coalesceRefresh(target, source entity.Entity, effect intern.IStr, now time.Time) []signal.Signal {
	sk := source.Key()
	byEffect, ok := t.pending[sk]
	if !ok {
		byEffect = make(map[intern.IStr]*aoeBucket)
		t.pending[sk] = byEffect
	}

	bucket, ok := byEffect[effect]
	if !ok {
		byEffect[effect] = &aoeBucket{source: source, effect: effect, opened: now, targets: []entity.Entity{target}}
		return nil
	}

	if now.Sub(bucket.opened) > t.window {
		// Window closed; flush the old bucket and open a fresh one for
		// this target.
		out := t.flushBucket(sk, bucket)
		byEffect[effect] = &aoeBucket{source: source, effect: effect, opened: now, targets: []entity.Entity{target}}
		return out
	}

	bucket.targets = append(bucket.targets, target)
	return nil
}

func (t *Tracker) flushBucket(sk entity.Key, b *aoeBucket) []signal.Signal {
	delete(t.pending[sk], b.effect)
	if len(t.pending[sk]) == 0 {
		delete(t.pending, sk)
	}
	return []signal.Signal{{
		Kind: signal.KindEffectRefreshed, EventTime: b.opened,
		Source: b.source, Effect: b.effect, TargetsBatch: b.targets,
	}}
}

// Sweep flushes any pending AoE buckets whose tolerance window has
// elapsed as of now, and expires every active effect whose expires_at has
// passed, emitting EffectRemoved(reason=Expired) for each (§4.4
// "Expiry").
func (t *Tracker) Sweep(now time.Time) []signal.Signal {
	var out []signal.Signal

	for sk, byEffect := range t.pending {
		for eff, bucket := range byEffect {
			if now.Sub(bucket.opened) > t.window {
				out = append(out, t.flushBucket(sk, byEffect[eff])...)
			}
		}
	}

	for k, a := range t.active {
		if a.ExpiresAt.IsZero() || now.Before(a.ExpiresAt) {
			continue
		}
		out = append(out, signal.Signal{
			Kind: signal.KindEffectRemoved, EventTime: now,
			Target: a.Target, Source: a.Source, Effect: a.Effect,
			RemovalReason: signal.ReasonExpired,
		})
		delete(t.active, k)
	}
	return out
}

// Remove handles an explicit effect-removed event from the log (a
// dispel), emitting EffectRemoved(reason=Dispelled).
func (t *Tracker) Remove(target entity.Entity, effect intern.IStr, now time.Time) []signal.Signal {
	k := Key{Target: target.Key(), Effect: effect}
	a, ok := t.active[k]
	if !ok {
		return nil
	}
	delete(t.active, k)
	return []signal.Signal{{
		Kind: signal.KindEffectRemoved, EventTime: now,
		Target: a.Target, Source: a.Source, Effect: a.Effect,
		RemovalReason: signal.ReasonDispelled,
	}}
}

// OnDeath clears every effect on target not flagged persist_past_death
// (§4.4 "Death/revive").
func (t *Tracker) OnDeath(target entity.Entity, now time.Time) []signal.Signal {
	var out []signal.Signal
	tk := target.Key()
	for k, a := range t.active {
		if k.Target != tk || a.PersistPastDeath {
			continue
		}
		out = append(out, signal.Signal{
			Kind: signal.KindEffectRemoved, EventTime: now,
			Target: a.Target, Source: a.Source, Effect: a.Effect,
			RemovalReason: signal.ReasonEnded,
		})
		delete(t.active, k)
	}
	return out
}

// ActiveEffects returns the full set of currently active effects, for writer
// snapshots and overlays. Callers must not mutate the returned values.
func (t *Tracker) ActiveEffects() map[Key]*Active {
	return t.active
}

// Has reports whether (target, effect) is currently active.
func (t *Tracker) Has(target entity.Entity, effect intern.IStr) bool {
	_, ok := t.active[Key{Target: target.Key(), Effect: effect}]
	return ok
}
