package effects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/definitions"
	"github.com/baras-app/baras/internal/entity"
	"github.com/baras-app/baras/internal/intern"
	"github.com/baras-app/baras/internal/signal"
)

func TestTracker_ApplyFirstTimeEmitsApplied(t *testing.T) {
	tr := New(10*time.Millisecond, zap.NewNop())
	in := intern.New()
	effectName := in.Intern("burning")
	target := entity.Npc(1, 1)
	source := entity.Player(in.Intern("Healbot"), 7)

	out := tr.Apply(target, source, effectName, time.Now(), definitions.EffectDefinition{}, false, 1)

	require.Len(t, out, 1)
	assert.Equal(t, signal.KindEffectApplied, out[0].Kind)
	assert.True(t, tr.Has(target, effectName))
}

func TestTracker_SweepExpiresEffectPastDuration(t *testing.T) {
	tr := New(10*time.Millisecond, zap.NewNop())
	in := intern.New()
	effectName := in.Intern("burning")
	target := entity.Npc(1, 1)
	start := time.Now()

	tr.Apply(target, entity.Empty, effectName, start, definitions.EffectDefinition{Duration: time.Second}, false, 1)

	out := tr.Sweep(start.Add(2 * time.Second))

	require.Len(t, out, 1)
	assert.Equal(t, signal.KindEffectRemoved, out[0].Kind)
	assert.Equal(t, signal.ReasonExpired, out[0].RemovalReason)
	assert.False(t, tr.Has(target, effectName))
}

func TestTracker_CoalesceRefreshBatchesSameSourceEffect(t *testing.T) {
	tr := New(20*time.Millisecond, zap.NewNop())
	in := intern.New()
	effectName := in.Intern("aoe_dot")
	source := entity.Npc(9, 1)
	targetA := entity.Player(in.Intern("A"), 1)
	targetB := entity.Player(in.Intern("B"), 2)
	start := time.Now()

	// Both targets must already be active before a refresh is coalesced.
	tr.Apply(targetA, source, effectName, start, definitions.EffectDefinition{Duration: time.Minute}, false, 1)
	tr.Apply(targetB, source, effectName, start, definitions.EffectDefinition{Duration: time.Minute}, false, 1)

	out1 := tr.Apply(targetA, source, effectName, start.Add(2*time.Millisecond), definitions.EffectDefinition{Duration: time.Minute}, true, 1)
	out2 := tr.Apply(targetB, source, effectName, start.Add(5*time.Millisecond), definitions.EffectDefinition{Duration: time.Minute}, true, 1)

	assert.Empty(t, out1, "first refresh in the window opens the bucket without flushing")
	assert.Empty(t, out2, "second refresh within the window is absorbed into the same bucket")

	flushed := tr.Sweep(start.Add(50 * time.Millisecond))
	require.Len(t, flushed, 1)
	assert.Equal(t, signal.KindEffectRefreshed, flushed[0].Kind)
	assert.ElementsMatch(t, []entity.Entity{targetA, targetB}, flushed[0].TargetsBatch)
}

func TestTracker_OnDeathClearsUnlessPersistent(t *testing.T) {
	tr := New(10*time.Millisecond, zap.NewNop())
	in := intern.New()
	persistent := in.Intern("mark_of_death")
	transient := in.Intern("buff")
	target := entity.Player(in.Intern("Tank"), 1)
	now := time.Now()

	tr.Apply(target, entity.Empty, persistent, now, definitions.EffectDefinition{PersistPastDeath: true}, false, 1)
	tr.Apply(target, entity.Empty, transient, now, definitions.EffectDefinition{}, false, 1)

	out := tr.OnDeath(target, now)

	require.Len(t, out, 1)
	assert.Equal(t, transient, out[0].Effect)
	assert.True(t, tr.Has(target, persistent))
	assert.False(t, tr.Has(target, transient))
}

func TestTracker_RemoveEmitsDispelled(t *testing.T) {
	tr := New(10*time.Millisecond, zap.NewNop())
	in := intern.New()
	effectName := in.Intern("slow")
	target := entity.Npc(2, 1)
	now := time.Now()

	tr.Apply(target, entity.Empty, effectName, now, definitions.EffectDefinition{}, false, 1)
	out := tr.Remove(target, effectName, now)

	require.Len(t, out, 1)
	assert.Equal(t, signal.ReasonDispelled, out[0].RemovalReason)
	assert.False(t, tr.Has(target, effectName))
}
