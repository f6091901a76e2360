package definitions

// YAML wire schema. Kept separate from the domain types in types.go so
// the on-disk shape can evolve (new optional fields, renamed keys with an
// alias) without touching the types the rest of the pipeline consumes.

type bossFile struct {
	Version string     `yaml:"version"`
	Bosses  []bossYAML `yaml:"bosses"`
}

type bossYAML struct {
	ID             string          `yaml:"id"`
	DisplayName    string          `yaml:"display_name"`
	TemplateIDs    []int64         `yaml:"template_ids"`
	FamilyTemplate bool            `yaml:"family_template"`
	Phases         []phaseYAML     `yaml:"phases"`
	Counters       []string        `yaml:"counters"`
	Challenges     []string        `yaml:"challenges"`
}

type phaseYAML struct {
	ID          string           `yaml:"id"`
	Transitions []transitionYAML `yaml:"transitions"`
}

type transitionYAML struct {
	Kind          string   `yaml:"kind"`
	ToPhase       string   `yaml:"to_phase"`
	HpPct         float64  `yaml:"hp_pct"`
	ElapsedSec    int      `yaml:"elapsed_sec"`
	TemplateID    int64    `yaml:"template_id"`
	EffectName    string   `yaml:"effect_name"`
	ResetCounters []string `yaml:"reset_counters"`
}

type effectFile struct {
	Version string       `yaml:"version"`
	Effects []effectYAML `yaml:"effects"`
}

type effectYAML struct {
	Name             string `yaml:"name"`
	DurationMs       int64  `yaml:"duration_ms"`
	PersistPastDeath bool   `yaml:"persist_past_death"`
}

type timerFile struct {
	Version string     `yaml:"version"`
	Timers  []timerYAML `yaml:"timers"`
}

type timerYAML struct {
	ID                   string       `yaml:"id"`
	DisplayName          string       `yaml:"display_name"`
	DurationMs           int64        `yaml:"duration_ms"`
	Display              string       `yaml:"display"`
	Trigger              triggerYAML  `yaml:"trigger"`
	CancelTrigger        *triggerYAML `yaml:"cancel_trigger"`
	ChainChildren        []string     `yaml:"chain_children"`
	RefreshPolicy        string       `yaml:"refresh_policy"`
	CancelOnEncounterEnd bool         `yaml:"cancel_on_encounter_end"`
	SoundAlert           string       `yaml:"sound_alert"`
}

type triggerYAML struct {
	Kind        string        `yaml:"kind"`
	AbilityID   int64         `yaml:"ability_id"`
	EffectName  string        `yaml:"effect_name"`
	TemplateID  int64         `yaml:"template_id"`
	PhaseID     string        `yaml:"phase_id"`
	ParentTimer string        `yaml:"parent_timer"`
	SourceScope string        `yaml:"source_scope"`
	AnyOf       []triggerYAML `yaml:"any_of"`
}

type counterFile struct {
	Version  string        `yaml:"version"`
	Counters []counterYAML `yaml:"counters"`
}

type counterYAML struct {
	ID      string          `yaml:"id"`
	Initial int64           `yaml:"initial"`
	ResetOn string          `yaml:"reset_on"`
	Rules   []counterRuleYAML `yaml:"rules"`
}

type counterRuleYAML struct {
	Trigger triggerYAML `yaml:"trigger"`
	Delta   int64       `yaml:"delta"`
}

type challengeFile struct {
	Version    string          `yaml:"version"`
	Challenges []challengeYAML `yaml:"challenges"`
}

type challengeYAML struct {
	ID         string       `yaml:"id"`
	Target     int64        `yaml:"target"`
	Comparator string       `yaml:"comparator"`
	WindowStart *triggerYAML `yaml:"window_start"`
	WindowEnd   *triggerYAML `yaml:"window_end"`
}
