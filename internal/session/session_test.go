package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baras-app/baras/internal/entity"
)

func TestCache_NoteSightingFiresOnlyOncePerEntity(t *testing.T) {
	c := New("sess-1")
	npc := entity.Npc(100, 1)

	assert.True(t, c.NoteSighting(npc))
	assert.False(t, c.NoteSighting(npc))
}

func TestCache_NoteSightingDistinguishesInstances(t *testing.T) {
	c := New("sess-1")
	first := entity.Npc(100, 1)
	second := entity.Npc(100, 2)

	assert.True(t, c.NoteSighting(first))
	assert.True(t, c.NoteSighting(second))
}

func TestCache_SetAndClearTarget(t *testing.T) {
	c := New("sess-1")
	npc := entity.Npc(5, 1)

	c.SetTarget(npc)
	assert.Equal(t, npc, c.Target)

	c.ClearTarget()
	assert.Equal(t, entity.Empty, c.Target)
}

func TestCache_ResetAreaClearsAreaScopedState(t *testing.T) {
	c := New("sess-1")
	npc := entity.Npc(5, 1)
	c.NoteSighting(npc)
	c.SetTarget(npc)
	c.Area = "dread-fortress"

	c.ResetArea("kaon")

	assert.Equal(t, "kaon", c.Area)
	assert.Equal(t, entity.Empty, c.Target)
	assert.Nil(t, c.Active)
	assert.True(t, c.NoteSighting(npc), "first-seen set must be cleared on area reset")
}

func TestCache_EndSessionResetsEverything(t *testing.T) {
	c := New("sess-1")
	c.Player = Player{Name: 0, ID: 42}
	c.Area = "dread-fortress"
	c.SetTarget(entity.Npc(5, 1))

	c.EndSession()

	assert.Equal(t, Player{}, c.Player)
	assert.Equal(t, "", c.Area)
	assert.Equal(t, entity.Empty, c.Target)
}
