package columnar

// Row is the denormalised per-event schema (§4.6 "Schema"). Entity and
// ability ids are the numeric game ids, not the process-local interner,
// so archives are portable across sessions and process restarts.
type Row struct {
	TimestampMicros int64 `parquet:"timestamp_micros"`
	SourceID        int64 `parquet:"source_id"`
	TargetID        int64 `parquet:"target_id"`
	AbilityID       int64 `parquet:"ability_id"`
	Kind            uint8 `parquet:"kind"`
	Amount          int64 `parquet:"amount,optional"`
	Flags           uint8 `parquet:"flags,optional"`
	ShieldDelta     int64 `parquet:"shield_delta,optional"`
	SourceX         float64 `parquet:"source_x,optional"`
	SourceY         float64 `parquet:"source_y,optional"`
	SourceZ         float64 `parquet:"source_z,optional"`
	TargetX         float64 `parquet:"target_x,optional"`
	TargetY         float64 `parquet:"target_y,optional"`
	TargetZ         float64 `parquet:"target_z,optional"`
	EffectName      string  `parquet:"effect_name,optional,dict"`
	HPCurrent       int64   `parquet:"hp_current,optional"`
	HPMax           int64   `parquet:"hp_max,optional"`
}
