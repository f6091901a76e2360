// Package entity defines the Entity sum type (§3) every CombatEvent and
// GameSignal references: Player, Companion, Npc, SelfRef, or Empty.
// Entities are value types, freely copied.
package entity

import "github.com/baras-app/baras/internal/intern"

// Kind discriminates the Entity sum type. Flat comparison, no dynamic
// dispatch — per §9 "Dynamic dispatch."
type Kind uint8

const (
	KindEmpty Kind = iota
	KindPlayer
	KindCompanion
	KindNpc
	KindSelfRef
)

// Entity is a value type identifying one side of a CombatEvent.
type Entity struct {
	Kind Kind

	// Player: Name is the interned player name, ID is the server-stable
	// numeric player id.
	Name intern.IStr
	ID   int64

	// Npc: TemplateID is the numeric template (boss/trash definition)
	// id, shared across every instance of that NPC; InstanceID
	// disambiguates simultaneous copies.
	TemplateID int64
	InstanceID int64
}

// Player builds a Player entity.
func Player(name intern.IStr, id int64) Entity {
	return Entity{Kind: KindPlayer, Name: name, ID: id}
}

// Companion builds a Companion (pet/droid) entity.
func Companion(name intern.IStr, id int64) Entity {
	return Entity{Kind: KindCompanion, Name: name, ID: id}
}

// Npc builds an Npc entity identified by template + instance id.
func Npc(templateID, instanceID int64) Entity {
	return Entity{Kind: KindNpc, TemplateID: templateID, InstanceID: instanceID}
}

// SelfRef is the entity referring to the logging player without
// re-resolving their name (the log emits "@Self" for self-targeted
// lines).
var SelfRef = Entity{Kind: KindSelfRef}

// Empty is the absent entity (missing source/target segment).
var Empty = Entity{Kind: KindEmpty}

// IsEmpty reports whether e carries no identity.
func (e Entity) IsEmpty() bool { return e.Kind == KindEmpty }

// Key returns a value usable as a map key uniquely identifying this
// entity within one session: NPCs key on (template, instance), everyone
// else keys on (kind, id).
type Key struct {
	Kind       Kind
	ID         int64
	TemplateID int64
	InstanceID int64
}

func (e Entity) Key() Key {
	return Key{Kind: e.Kind, ID: e.ID, TemplateID: e.TemplateID, InstanceID: e.InstanceID}
}
