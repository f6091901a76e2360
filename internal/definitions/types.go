// Package definitions loads the declarative boss/effect/timer/counter/
// challenge definitions (§4.7) that the processor, effect tracker, and
// timer manager evaluate against the signal stream. Definitions are
// shared immutably and load-swapped on area change (§3 "Ownership",
// §5 "Shared-resource policy").
//
// Grounded on the teacher's YAML-backed declarative registries (the pack
// repo davidmovas-Depthborn loads skill/affix definitions the same way,
// internal/core/skill/registry.go) — see DESIGN.md.
package definitions

import "time"

// TriggerKind discriminates a timer/counter trigger's sum type (§3
// "TimerDefinition ... trigger (sum type)").
type TriggerKind string

const (
	TriggerCombatStart    TriggerKind = "combat_start"
	TriggerAbilityCast    TriggerKind = "ability_cast"
	TriggerEffectApplied  TriggerKind = "effect_applied"
	TriggerEffectRemoved  TriggerKind = "effect_removed"
	TriggerNpcAppears     TriggerKind = "npc_appears"
	TriggerPhaseEnded     TriggerKind = "phase_ended"
	TriggerTimerExpires   TriggerKind = "timer_expires"
	TriggerAnyOf          TriggerKind = "any_of"
)

// Trigger is a declarative condition that starts or cancels a timer, or
// increments/resets a counter.
type Trigger struct {
	Kind TriggerKind

	// Filters, meaningful per Kind.
	AbilityID    int64
	EffectName   string
	TemplateID   int64
	PhaseID      string
	ParentTimer  string // TriggerTimerExpires
	SourceScope  string // "", "player", "boss"

	AnyOf []Trigger // TriggerAnyOf
}

// RefreshPolicy governs what happens when a timer is (re)started while an
// instance with the same key is already active (§4.5).
type RefreshPolicy string

const (
	RefreshReplace    RefreshPolicy = "replace"
	RefreshKeepLonger RefreshPolicy = "keep_longer"
	RefreshIgnore     RefreshPolicy = "ignore"
	RefreshRefresh    RefreshPolicy = "refresh"
)

// DisplayTarget names which overlay a timer renders on.
type DisplayTarget string

const (
	DisplayA    DisplayTarget = "A"
	DisplayB    DisplayTarget = "B"
	DisplayNone DisplayTarget = "none"
)

// TimerDefinition is the declarative shape of §3's "TimerDefinition."
type TimerDefinition struct {
	ID                  string
	DisplayName         string
	Duration            time.Duration
	Display             DisplayTarget
	Trigger             Trigger
	CancelTrigger       *Trigger
	ChainChildren       []string
	RefreshPolicy       RefreshPolicy
	CancelOnEncounterEnd bool
	SoundAlert          string
}

// EffectDefinition declares an effect's lifetime and persistence rules,
// matched by name in the effect tracker (§4.4).
type EffectDefinition struct {
	Name              string
	Duration          time.Duration // zero means no automatic expiry
	PersistPastDeath  bool
}

// CounterResetOn names when a counter resets (§4.3 "Counters").
type CounterResetOn string

const (
	ResetOnPhase     CounterResetOn = "phase"
	ResetOnEncounter CounterResetOn = "encounter"
	ResetOnTimer     CounterResetOn = "timer"
	ResetNever       CounterResetOn = ""
)

// CounterRule is one increment/decrement/reset rule attached to a counter.
type CounterRule struct {
	Trigger Trigger
	Delta   int64 // positive increments, negative decrements
}

// CounterDefinition declares a (boss-scoped) counter's behaviour.
type CounterDefinition struct {
	ID      string
	Initial int64
	Rules   []CounterRule
	ResetOn CounterResetOn
}

// PhaseTransitionKind discriminates the phase-transition trigger sum type
// (§4.3 "Phases").
type PhaseTransitionKind string

const (
	TransitionHpThreshold          PhaseTransitionKind = "hp_threshold"
	TransitionElapsedSincePhase    PhaseTransitionKind = "elapsed_since_phase"
	TransitionNpcSpawned           PhaseTransitionKind = "npc_spawned"
	TransitionNpcDied              PhaseTransitionKind = "npc_died"
	TransitionEffectAppliedOnBoss  PhaseTransitionKind = "effect_applied_on_boss"
	TransitionExternalSignal       PhaseTransitionKind = "external_signal"
)

// PhaseTransition is one declarative rule moving a boss from one phase to
// the next.
type PhaseTransition struct {
	Kind       PhaseTransitionKind
	ToPhase    string
	HpPct      float64
	ElapsedSec int
	TemplateID int64
	EffectName string
	ResetCounters []string // counter ids declared reset_on_phase for this transition
}

// ChallengeComparator is the final-verdict comparator for a challenge's
// accumulated value against its target (§4.3 "Challenges").
type ChallengeComparator string

const (
	ComparatorGTE ChallengeComparator = ">="
	ComparatorLTE ChallengeComparator = "<="
	ComparatorEQ  ChallengeComparator = "=="
)

// ChallengeDefinition declares a pass/fail criterion across an encounter
// (or a bounded sub-window, per SPEC_FULL's challenge-window supplement).
// The definitions are loaded and validated; the pipeline does not
// evaluate them.
type ChallengeDefinition struct {
	ID          string
	Target      int64
	Comparator  ChallengeComparator
	WindowStart *Trigger // nil means "from encounter start"
	WindowEnd   *Trigger // nil means "to encounter end"
}

// BossDefinition is the declarative shape of one boss's full kit: how its
// NPC template(s) are matched, its phases, its counters, its challenges.
type BossDefinition struct {
	ID             string
	DisplayName    string
	TemplateIDs    []int64 // specific templates this definition matches
	FamilyTemplate bool    // true if this is a lower-priority family/group match
	Phases         []PhaseDefinition
	Counters       []string // counter ids this boss owns
	Challenges     []string // challenge ids this boss owns
}

// PhaseDefinition names one phase and the transitions out of it.
type PhaseDefinition struct {
	ID          string
	Transitions []PhaseTransition
}

// DefinitionSet is the immutable, validated snapshot returned by the
// Loader for one area (§4.7 "Returns an immutable snapshot").
type DefinitionSet struct {
	AreaID     string
	Bosses     []BossDefinition
	Effects    map[string]EffectDefinition
	Timers     map[string]TimerDefinition
	Counters   map[string]CounterDefinition
	Challenges map[string]ChallengeDefinition
}
