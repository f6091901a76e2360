// Package combatlog defines the parsed line representation (§3
// "CombatEvent") shared by the parser, the event processor, the effect
// tracker, the timer manager, and the columnar writer.
package combatlog

import (
	"time"

	"github.com/baras-app/baras/internal/entity"
	"github.com/baras-app/baras/internal/intern"
)

// Kind discriminates a CombatEvent's ~25 variants. A flat switch on Kind
// is the hot-path dispatch everywhere downstream (§9 "Dynamic dispatch").
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAbilityActivate
	KindDamage
	KindHeal
	KindEffectApplyBegin
	KindEffectApplyEnd
	KindEffectRefresh
	KindDeath
	KindRevive
	KindEnterCombat
	KindExitCombat
	KindAreaChange
	KindLoginInfo
	KindTargetSet
	KindTargetCleared
	KindDisciplineChanged
	KindSpend
	KindModifyCharges
	KindThreat
	KindRemoveAll
	KindCleave
	KindEvade
	KindBlock
	KindParry
	KindDodge
	KindImmune
)

// DamageFlags is a bitset of the ways a Damage/Heal event was modified.
type DamageFlags uint8

const (
	FlagCrit DamageFlags = 1 << iota
	FlagShielded
	FlagAbsorbed
	FlagMissed
	FlagReflected
	FlagDodged
	FlagParried
	FlagBlocked
)

// Position is an optional 2D/3D world-space coordinate attached to a
// source or target segment.
type Position struct {
	X, Y, Z float64
	Valid   bool
}

// Ability is the optional ability segment: an interned display name plus
// its numeric game id (0 when the line carries no ability, e.g. a plain
// melee swing).
type Ability struct {
	Name intern.IStr
	ID   int64
}

// Detail carries the kind-specific payload. Only the fields relevant to
// Kind are meaningful; this mirrors the teacher's flat-variant style
// (rules.Event in internal/game/rules/events.go) rather than an
// interface-typed payload, keeping CombatEvent copyable by value.
type Detail struct {
	Amount         int64
	EffectiveValue int64 // e.g. effective heal after overheal clamp
	Flags          DamageFlags
	Charges        int32
	ShieldDelta    int64
	EffectName     intern.IStr
	HPCurrent      int64
	HPMax          int64
}

// CombatEvent is the immutable parsed representation of one log line.
type CombatEvent struct {
	Time     time.Time
	Source   entity.Entity
	Target   entity.Entity
	Ability  Ability
	Kind     Kind
	Detail   Detail
	SourcePos Position
	TargetPos Position
	LineNumber int64
}
