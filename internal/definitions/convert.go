package definitions

import "time"

func convertTrigger(y triggerYAML) Trigger {
	t := Trigger{
		Kind:        TriggerKind(y.Kind),
		AbilityID:   y.AbilityID,
		EffectName:  y.EffectName,
		TemplateID:  y.TemplateID,
		PhaseID:     y.PhaseID,
		ParentTimer: y.ParentTimer,
		SourceScope: y.SourceScope,
	}
	if len(y.AnyOf) > 0 {
		t.AnyOf = make([]Trigger, len(y.AnyOf))
		for i, a := range y.AnyOf {
			t.AnyOf[i] = convertTrigger(a)
		}
	}
	return t
}

func convertBoss(y bossYAML) BossDefinition {
	b := BossDefinition{
		ID:             y.ID,
		DisplayName:    y.DisplayName,
		TemplateIDs:    y.TemplateIDs,
		FamilyTemplate: y.FamilyTemplate,
		Counters:       y.Counters,
		Challenges:     y.Challenges,
	}
	b.Phases = make([]PhaseDefinition, len(y.Phases))
	for i, p := range y.Phases {
		phase := PhaseDefinition{ID: p.ID}
		phase.Transitions = make([]PhaseTransition, len(p.Transitions))
		for j, tr := range p.Transitions {
			phase.Transitions[j] = PhaseTransition{
				Kind:          PhaseTransitionKind(tr.Kind),
				ToPhase:       tr.ToPhase,
				HpPct:         tr.HpPct,
				ElapsedSec:    tr.ElapsedSec,
				TemplateID:    tr.TemplateID,
				EffectName:    tr.EffectName,
				ResetCounters: tr.ResetCounters,
			}
		}
		b.Phases[i] = phase
	}
	return b
}

func convertEffect(y effectYAML) EffectDefinition {
	return EffectDefinition{
		Name:             y.Name,
		Duration:         time.Duration(y.DurationMs) * time.Millisecond,
		PersistPastDeath: y.PersistPastDeath,
	}
}

func convertTimer(y timerYAML) TimerDefinition {
	t := TimerDefinition{
		ID:                   y.ID,
		DisplayName:          y.DisplayName,
		Duration:             time.Duration(y.DurationMs) * time.Millisecond,
		Display:              DisplayTarget(y.Display),
		Trigger:              convertTrigger(y.Trigger),
		ChainChildren:        y.ChainChildren,
		RefreshPolicy:        RefreshPolicy(y.RefreshPolicy),
		CancelOnEncounterEnd: y.CancelOnEncounterEnd,
		SoundAlert:           y.SoundAlert,
	}
	if y.CancelTrigger != nil {
		ct := convertTrigger(*y.CancelTrigger)
		t.CancelTrigger = &ct
	}
	if t.Display == "" {
		t.Display = DisplayNone
	}
	if t.RefreshPolicy == "" {
		t.RefreshPolicy = RefreshReplace
	}
	return t
}

func convertCounter(y counterYAML) CounterDefinition {
	c := CounterDefinition{
		ID:      y.ID,
		Initial: y.Initial,
		ResetOn: CounterResetOn(y.ResetOn),
	}
	c.Rules = make([]CounterRule, len(y.Rules))
	for i, r := range y.Rules {
		c.Rules[i] = CounterRule{Trigger: convertTrigger(r.Trigger), Delta: r.Delta}
	}
	return c
}

func convertChallenge(y challengeYAML) ChallengeDefinition {
	c := ChallengeDefinition{
		ID:         y.ID,
		Target:     y.Target,
		Comparator: ChallengeComparator(y.Comparator),
	}
	if c.Comparator == "" {
		c.Comparator = ComparatorGTE
	}
	if y.WindowStart != nil {
		t := convertTrigger(*y.WindowStart)
		c.WindowStart = &t
	}
	if y.WindowEnd != nil {
		t := convertTrigger(*y.WindowEnd)
		c.WindowEnd = &t
	}
	return c
}
