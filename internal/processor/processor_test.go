package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/combatlog"
	"github.com/baras-app/baras/internal/definitions"
	"github.com/baras-app/baras/internal/encounter"
	"github.com/baras-app/baras/internal/entity"
	"github.com/baras-app/baras/internal/intern"
	"github.com/baras-app/baras/internal/session"
	"github.com/baras-app/baras/internal/signal"
)

func newCache(in *intern.Interner) *session.Cache {
	c := session.New("sess-1")
	c.Area = "dread-fortress"
	return c
}

func TestProcessor_EnterCombatStartsEncounterOnce(t *testing.T) {
	in := intern.New()
	p := New(in, 10*time.Millisecond, zap.NewNop())
	c := newCache(in)
	now := time.Now()

	out := p.Process(combatlog.CombatEvent{Kind: combatlog.KindEnterCombat, Time: now}, c)
	require.Len(t, out, 1)
	assert.Equal(t, signal.KindCombatStarted, out[0].Kind)
	require.NotNil(t, c.Active)

	// Re-entering combat while already active is idempotent.
	out2 := p.Process(combatlog.CombatEvent{Kind: combatlog.KindEnterCombat, Time: now.Add(time.Second)}, c)
	assert.Empty(t, out2)
}

func TestProcessor_ExitCombatFinalizesAsWipeWithNoBossDeath(t *testing.T) {
	in := intern.New()
	p := New(in, 10*time.Millisecond, zap.NewNop())
	c := newCache(in)
	now := time.Now()

	p.Process(combatlog.CombatEvent{Kind: combatlog.KindEnterCombat, Time: now}, c)
	out := p.Process(combatlog.CombatEvent{Kind: combatlog.KindExitCombat, Time: now.Add(time.Minute)}, c)

	require.Len(t, out, 1)
	assert.Equal(t, signal.KindCombatEnded, out[0].Kind)
	assert.Equal(t, signal.OutcomeWipe, out[0].Outcome)
	assert.Nil(t, c.Active)
}

func TestProcessor_AreaChangeAbandonsActiveEncounterAsWipe(t *testing.T) {
	in := intern.New()
	p := New(in, 10*time.Millisecond, zap.NewNop())
	c := newCache(in)
	now := time.Now()

	p.Process(combatlog.CombatEvent{Kind: combatlog.KindEnterCombat, Time: now}, c)
	newArea := in.Intern("kaon-under-siege")

	out := p.Process(combatlog.CombatEvent{
		Kind: combatlog.KindAreaChange, Time: now.Add(time.Second),
		Ability: combatlog.Ability{Name: newArea},
	}, c)

	var sawEnded bool
	for _, s := range out {
		if s.Kind == signal.KindCombatEnded {
			sawEnded = true
			assert.Equal(t, signal.OutcomeWipe, s.Outcome)
		}
	}
	assert.True(t, sawEnded)
	assert.Nil(t, c.Active)
	assert.Equal(t, "kaon-under-siege", c.Area)
}

func TestProcessor_NpcFirstSeenRegistersKnownBoss(t *testing.T) {
	in := intern.New()
	p := New(in, 10*time.Millisecond, zap.NewNop())
	c := newCache(in)
	c.Definitions = &definitions.DefinitionSet{
		AreaID: "dread-fortress",
		Bosses: []definitions.BossDefinition{
			{ID: "dread-master", TemplateIDs: []int64{1001}, Phases: []definitions.PhaseDefinition{{ID: "p1"}}},
		},
	}
	now := time.Now()
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindEnterCombat, Time: now}, c)

	npc := entity.Npc(1001, 1)
	out := p.Process(combatlog.CombatEvent{Kind: combatlog.KindDamage, Time: now.Add(time.Second), Source: npc, Target: entity.Empty}, c)

	var sawFirstSeen, sawBossDetected bool
	for _, s := range out {
		if s.Kind == signal.KindNpcFirstSeen {
			sawFirstSeen = true
		}
		if s.Kind == signal.KindBossEncounterDetected {
			sawBossDetected = true
		}
	}
	assert.True(t, sawFirstSeen)
	assert.True(t, sawBossDetected)
	_, registered := c.Active.Bosses[npc.Key()]
	assert.True(t, registered)
}

func TestProcessor_BossHpUpdateEmitsHpChangedAndTracksDeath(t *testing.T) {
	in := intern.New()
	p := New(in, 10*time.Millisecond, zap.NewNop())
	c := newCache(in)
	c.Definitions = &definitions.DefinitionSet{
		Bosses: []definitions.BossDefinition{
			{ID: "dread-master", TemplateIDs: []int64{1001}, Phases: []definitions.PhaseDefinition{{ID: "p1"}}},
		},
	}
	now := time.Now()
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindEnterCombat, Time: now}, c)
	npc := entity.Npc(1001, 1)
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindDamage, Time: now, Source: npc}, c)

	out := p.Process(combatlog.CombatEvent{
		Kind: combatlog.KindDamage, Time: now.Add(time.Second), Target: npc,
		Detail: combatlog.Detail{HPCurrent: 0, HPMax: 1000},
	}, c)

	var sawHpChanged bool
	for _, s := range out {
		if s.Kind == signal.KindBossHpChanged {
			sawHpChanged = true
			assert.Equal(t, 0.0, s.HpPct)
		}
	}
	assert.True(t, sawHpChanged)
	assert.True(t, c.Active.Bosses[npc.Key()].Died)
}

func TestProcessor_PhaseTransitionFiresOnHpThreshold(t *testing.T) {
	in := intern.New()
	p := New(in, 10*time.Millisecond, zap.NewNop())
	c := newCache(in)
	c.Definitions = &definitions.DefinitionSet{
		Bosses: []definitions.BossDefinition{{
			ID: "dread-master", TemplateIDs: []int64{1001},
			Phases: []definitions.PhaseDefinition{
				{ID: "p1", Transitions: []definitions.PhaseTransition{
					{Kind: definitions.TransitionHpThreshold, ToPhase: "p2", HpPct: 50},
				}},
				{ID: "p2"},
			},
		}},
	}
	now := time.Now()
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindEnterCombat, Time: now}, c)
	npc := entity.Npc(1001, 1)
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindDamage, Time: now, Source: npc}, c)

	out := p.Process(combatlog.CombatEvent{
		Kind: combatlog.KindDamage, Time: now.Add(time.Second), Target: npc,
		Detail: combatlog.Detail{HPCurrent: 400, HPMax: 1000},
	}, c)

	var sawPhase bool
	for _, s := range out {
		if s.Kind == signal.KindPhaseChanged {
			sawPhase = true
		}
	}
	assert.True(t, sawPhase)
	assert.Equal(t, "p2", c.Active.Bosses[npc.Key()].CurrentPhase)
}

func TestProcessor_DeathMarksBossDiedAndIncrementsPlayerDeaths(t *testing.T) {
	in := intern.New()
	p := New(in, 10*time.Millisecond, zap.NewNop())
	c := newCache(in)
	c.Definitions = &definitions.DefinitionSet{
		Bosses: []definitions.BossDefinition{{ID: "boss", TemplateIDs: []int64{1001}, Phases: []definitions.PhaseDefinition{{ID: "p1"}}}},
	}
	now := time.Now()
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindEnterCombat, Time: now}, c)
	npc := entity.Npc(1001, 1)
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindDamage, Time: now, Source: npc}, c)

	p.Process(combatlog.CombatEvent{Kind: combatlog.KindDeath, Time: now.Add(time.Second), Target: npc}, c)
	assert.True(t, c.Active.Bosses[npc.Key()].Died)

	player := entity.Player(in.Intern("Tank"), 5)
	pm := c.Active.PlayerMetricsFor(player)
	require.NotNil(t, pm)
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindDeath, Time: now.Add(2 * time.Second), Target: player}, c)
	assert.Equal(t, 1, c.Active.PlayerMetricsFor(player).Deaths)
}

func TestProcessor_EncounterFinalizesAsKillWhenBossDiedBeforeExit(t *testing.T) {
	in := intern.New()
	p := New(in, 10*time.Millisecond, zap.NewNop())
	c := newCache(in)
	c.Definitions = &definitions.DefinitionSet{
		Bosses: []definitions.BossDefinition{{ID: "boss", TemplateIDs: []int64{1001}, Phases: []definitions.PhaseDefinition{{ID: "p1"}}}},
	}
	now := time.Now()
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindEnterCombat, Time: now}, c)
	npc := entity.Npc(1001, 1)
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindDamage, Time: now, Source: npc}, c)
	p.Process(combatlog.CombatEvent{Kind: combatlog.KindDeath, Time: now.Add(time.Second), Target: npc}, c)

	// Finalize runs inside handleExitCombat via cache.Active.Finalize before
	// outcome is read back into the signal.
	active := c.Active
	out := p.Process(combatlog.CombatEvent{Kind: combatlog.KindExitCombat, Time: now.Add(2 * time.Second)}, c)

	require.Len(t, out, 1)
	assert.Equal(t, signal.OutcomeKill, out[0].Outcome)
	assert.Equal(t, encounter.OutcomeKill, active.Outcome)
}

func TestProcessor_TickSweepsExpiredEffects(t *testing.T) {
	in := intern.New()
	p := New(in, 10*time.Millisecond, zap.NewNop())
	c := newCache(in)
	c.Definitions = &definitions.DefinitionSet{
		Effects: map[string]definitions.EffectDefinition{
			"burning": {Name: "burning", Duration: 10 * time.Millisecond},
		},
	}
	now := time.Now()
	target := entity.Npc(1, 1)
	effectName := in.Intern("burning")

	p.Process(combatlog.CombatEvent{
		Kind: combatlog.KindEffectApplyBegin, Time: now, Target: target,
		Detail: combatlog.Detail{EffectName: effectName},
	}, c)

	out := p.Tick(now.Add(100 * time.Millisecond))
	require.Len(t, out, 1)
	assert.Equal(t, signal.KindEffectRemoved, out[0].Kind)
}

func TestProcessor_TargetSetAndClearedUpdateCache(t *testing.T) {
	in := intern.New()
	p := New(in, 10*time.Millisecond, zap.NewNop())
	c := newCache(in)
	npc := entity.Npc(1, 1)
	now := time.Now()

	out := p.Process(combatlog.CombatEvent{Kind: combatlog.KindTargetSet, Time: now, Target: npc}, c)
	require.Len(t, out, 1)
	assert.Equal(t, signal.KindTargetChanged, out[0].Kind)
	assert.Equal(t, npc, c.Target)

	out = p.Process(combatlog.CombatEvent{Kind: combatlog.KindTargetCleared, Time: now.Add(time.Second)}, c)
	require.Len(t, out, 1)
	assert.Equal(t, signal.KindTargetCleared, out[0].Kind)
	assert.Equal(t, entity.Empty, c.Target)
}
