// Package session implements SessionCache (§3): per-session mutable
// state exclusively owned by the single pipeline task that runs
// Reader→Parser→EventProcessor→EffectTracker→TimerManager→Writer for one
// log (§5 "Ownership"). No locking — the single-threaded cooperative
// model means SessionCache is only ever touched from its owning task.
package session

import (
	"github.com/baras-app/baras/internal/definitions"
	"github.com/baras-app/baras/internal/encounter"
	"github.com/baras-app/baras/internal/entity"
	"github.com/baras-app/baras/internal/intern"
)

// Player carries the logging player's identity, refined from a LoginInfo
// line.
type Player struct {
	Name       intern.IStr
	ID         int64
	Class      intern.IStr
	Discipline intern.IStr
}

// Cache is the per-session mutable state (§3 "SessionCache").
type Cache struct {
	SessionID string

	Player Player
	Area   string

	Target entity.Entity

	// firstSeen records every NPC (template, instance) pair sighted this
	// session so NpcFirstSeen only fires once per instance.
	firstSeen map[entity.Key]bool

	Active *encounter.CombatEncounter

	Definitions *definitions.DefinitionSet
}

// New creates an empty Cache for a fresh reader attach (§3 "Created on
// reader attach").
func New(sessionID string) *Cache {
	return &Cache{SessionID: sessionID, firstSeen: make(map[entity.Key]bool)}
}

// NoteSighting registers an entity's first sighting this session.
// Reports true the first time this entity's key is seen.
func (c *Cache) NoteSighting(e entity.Entity) bool {
	k := e.Key()
	if c.firstSeen[k] {
		return false
	}
	c.firstSeen[k] = true
	return true
}

// SetTarget records the player's current target, per a TARGET_SET event.
func (c *Cache) SetTarget(e entity.Entity) {
	c.Target = e
}

// ClearTarget records a TARGET_CLEARED event.
func (c *Cache) ClearTarget() {
	c.Target = entity.Empty
}

// ResetArea clears area-scoped state on an AreaChange: target, first-seen
// set, and the active encounter, per §3 "reset on area change" and §4.3
// "AreaChange → abandon any in-flight encounter as a wipe; reset
// SessionCache area-scoped state."
func (c *Cache) ResetArea(newArea string) {
	c.Area = newArea
	c.Target = entity.Empty
	c.firstSeen = make(map[entity.Key]bool)
	c.Active = nil
}

// EndSession resets every piece of state, per §3 "reset on ... session
// end."
func (c *Cache) EndSession() {
	c.ResetArea("")
	c.Player = Player{}
}
