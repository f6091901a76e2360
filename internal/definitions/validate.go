package definitions

import (
	"fmt"

	"github.com/baras-app/baras/internal/errs"
)

// validate rejects a DefinitionSet whose references don't resolve or
// whose timer chains contain a cycle (§4.7 "Cycle detection ... a
// definition set whose chain graph contains a cycle is rejected whole").
func validate(set *DefinitionSet) error {
	if err := validateTimerChains(set); err != nil {
		return err
	}
	if err := validateReferences(set); err != nil {
		return err
	}
	return nil
}

func validateTimerChains(set *DefinitionSet) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(set.Timers))

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return errs.New(errs.KindDefinition, "timer chain cycle detected", nil,
				"area", set.AreaID, "cycle", fmt.Sprintf("%v -> %s", path, id))
		}
		color[id] = gray
		def, ok := set.Timers[id]
		if !ok {
			return errs.New(errs.KindDefinition, "timer chain references unknown timer", nil,
				"area", set.AreaID, "timer", id)
		}
		for _, child := range def.ChainChildren {
			if err := visit(child, append(path, id)); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for id := range set.Timers {
		if color[id] == white {
			if err := visit(id, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateReferences(set *DefinitionSet) error {
	for _, boss := range set.Bosses {
		for _, cid := range boss.Counters {
			if _, ok := set.Counters[cid]; !ok {
				return errs.New(errs.KindDefinition, fmt.Sprintf("boss references unknown counter %s", cid), nil,
					"area", set.AreaID, "boss", boss.ID, "counter", cid)
			}
		}
		for _, chID := range boss.Challenges {
			if _, ok := set.Challenges[chID]; !ok {
				return errs.New(errs.KindDefinition, "boss references unknown challenge", nil,
					"area", set.AreaID, "boss", boss.ID, "challenge", chID)
			}
		}
		for _, phase := range boss.Phases {
			for _, tr := range phase.Transitions {
				for _, rc := range tr.ResetCounters {
					if _, ok := set.Counters[rc]; !ok {
						return errs.New(errs.KindDefinition, "phase transition resets unknown counter", nil,
							"area", set.AreaID, "boss", boss.ID, "phase", phase.ID, "counter", rc)
					}
				}
			}
		}
	}
	for id, c := range set.Counters {
		for _, r := range c.Rules {
			if err := validateTriggerRefs(set, r.Trigger); err != nil {
				return fmt.Errorf("counter %s: %w", id, err)
			}
		}
	}
	for id, t := range set.Timers {
		if err := validateTriggerRefs(set, t.Trigger); err != nil {
			return fmt.Errorf("timer %s: %w", id, err)
		}
		if t.CancelTrigger != nil {
			if err := validateTriggerRefs(set, *t.CancelTrigger); err != nil {
				return fmt.Errorf("timer %s cancel_trigger: %w", id, err)
			}
		}
	}
	return nil
}

func validateTriggerRefs(set *DefinitionSet, t Trigger) error {
	if t.Kind == TriggerTimerExpires && t.ParentTimer != "" {
		if _, ok := set.Timers[t.ParentTimer]; !ok {
			return errs.New(errs.KindDefinition, fmt.Sprintf("trigger references unknown parent timer %s", t.ParentTimer), nil,
				"area", set.AreaID, "timer", t.ParentTimer)
		}
	}
	for _, sub := range t.AnyOf {
		if err := validateTriggerRefs(set, sub); err != nil {
			return err
		}
	}
	return nil
}
