// Package encounter implements CombatEncounter and PhaseState (§3): the
// unit of analysis spanning EnterCombat to ExitCombat, owning per-boss
// phase state, per-player metrics, HP trackers, challenge state, and a
// flag recording whether the encounter's columnar writer is open (the
// writer itself is held by the caller).
package encounter

import (
	"time"

	"github.com/baras-app/baras/internal/definitions"
	"github.com/baras-app/baras/internal/entity"
)

// PhaseEntry records one (phase_id, entered_at) tuple in a boss's phase
// history.
type PhaseEntry struct {
	PhaseID  string
	EnteredAt time.Time
}

// BossState tracks one active boss instance within the encounter: its
// definition, current HP, and phase history (§3 "PhaseState").
type BossState struct {
	Def        definitions.BossDefinition
	Entity     entity.Entity
	HPCurrent  int64
	HPMax      int64
	CurrentPhase string
	History    []PhaseEntry
	Died       bool
	Revived    bool
}

// HPPercent returns the boss's current HP as a fraction of max, or 1.0 if
// HPMax hasn't been observed yet.
func (b *BossState) HPPercent() float64 {
	if b.HPMax <= 0 {
		return 1.0
	}
	return float64(b.HPCurrent) / float64(b.HPMax)
}

// EnterPhase records a transition into a new phase.
func (b *BossState) EnterPhase(phaseID string, at time.Time) {
	b.CurrentPhase = phaseID
	b.History = append(b.History, PhaseEntry{PhaseID: phaseID, EnteredAt: at})
}

// TimeSincePhaseStart returns how long the boss has been in its current
// phase as of now.
func (b *BossState) TimeSincePhaseStart(now time.Time) time.Duration {
	if len(b.History) == 0 {
		return 0
	}
	return now.Sub(b.History[len(b.History)-1].EnteredAt)
}

// PlayerMetrics accumulates one player's damage/heal/absorb totals for
// the encounter (§3 "per-player PlayerMetrics").
type PlayerMetrics struct {
	Player       entity.Entity
	DamageDone   int64
	HealingDone  int64
	AbsorbDone   int64
	DamageTaken  int64
	Deaths       int
}

// ChallengeState tracks one challenge's accumulated value across the
// encounter (or its declared window).
type ChallengeState struct {
	Def       definitions.ChallengeDefinition
	Current   int64
	WindowOpen bool
	Passed    bool
	Finalized bool
}

// Outcome mirrors signal.Outcome without importing the signal package,
// keeping encounter free of a dependency on the processor's output type.
type Outcome uint8

const (
	OutcomeUnresolved Outcome = iota
	OutcomeWipe
	OutcomeKill
)

// CombatEncounter is the unit of analysis spanning EnterCombat to
// ExitCombat (§3).
type CombatEncounter struct {
	ID        string
	AreaID    string
	StartedAt time.Time
	EndedAt   time.Time

	Bosses map[entity.Key]*BossState

	Players map[entity.Key]*PlayerMetrics

	Challenges map[int64]map[string]*ChallengeState // bossID -> challengeID -> state

	Outcome Outcome

	// WriterOpen is true while the encounter's columnar writer handle is
	// still open; the processor clears it when it handles ExitCombat,
	// whether or not the writer's finalize succeeds.
	WriterOpen bool
}

// New creates a CombatEncounter starting at 'at' (§4.3 "EnterCombat by
// player → create CombatEncounter in cache").
func New(id, areaID string, at time.Time) *CombatEncounter {
	return &CombatEncounter{
		ID: id, AreaID: areaID, StartedAt: at,
		Bosses:     make(map[entity.Key]*BossState),
		Players:    make(map[entity.Key]*PlayerMetrics),
		Challenges: make(map[int64]map[string]*ChallengeState),
		WriterOpen: true,
	}
}

// RegisterBoss adds a newly matched boss instance (§4.3 "NPC first
// sighting ... register as active boss").
func (e *CombatEncounter) RegisterBoss(inst entity.Entity, def definitions.BossDefinition) *BossState {
	bs := &BossState{Def: def, Entity: inst}
	if len(def.Phases) > 0 {
		bs.CurrentPhase = def.Phases[0].ID
		bs.History = []PhaseEntry{{PhaseID: def.Phases[0].ID, EnteredAt: e.StartedAt}}
	}
	e.Bosses[inst.Key()] = bs
	if len(def.Challenges) > 0 {
		e.ensureChallengeMap(inst.TemplateID)
	}
	return bs
}

func (e *CombatEncounter) ensureChallengeMap(bossID int64) map[string]*ChallengeState {
	m, ok := e.Challenges[bossID]
	if !ok {
		m = make(map[string]*ChallengeState)
		e.Challenges[bossID] = m
	}
	return m
}

// PlayerMetricsFor returns (creating if needed) the metrics record for a
// player entity.
func (e *CombatEncounter) PlayerMetricsFor(p entity.Entity) *PlayerMetrics {
	k := p.Key()
	m, ok := e.Players[k]
	if !ok {
		m = &PlayerMetrics{Player: p}
		e.Players[k] = m
	}
	return m
}

// AnyBossDead reports whether any registered boss has reached 0 HP
// without a subsequent revive, for kill/wipe determination (§4.3
// "ExitCombat ... outcome is kill iff at least one registered boss
// reached 0 HP and no revive followed").
func (e *CombatEncounter) AnyBossDead() bool {
	for _, b := range e.Bosses {
		if b.Died && !b.Revived {
			return true
		}
	}
	return false
}

// Finalize closes out the encounter at 'at', computing the final
// outcome.
func (e *CombatEncounter) Finalize(at time.Time) {
	e.EndedAt = at
	if e.AnyBossDead() {
		e.Outcome = OutcomeKill
	} else {
		e.Outcome = OutcomeWipe
	}
}

// ResolveBossForNpc applies boss-definition specificity + load-order
// tie-break (§4.3 "more specific (exact template) beats family/group.
// Ties are broken by definition load order; first wins").
func ResolveBossForNpc(templateID int64, defs []definitions.BossDefinition) (definitions.BossDefinition, bool) {
	var family *definitions.BossDefinition
	for i := range defs {
		d := &defs[i]
		for _, t := range d.TemplateIDs {
			if t == templateID {
				if !d.FamilyTemplate {
					return *d, true
				}
				if family == nil {
					family = d
				}
			}
		}
	}
	if family != nil {
		return *family, true
	}
	return definitions.BossDefinition{}, false
}
