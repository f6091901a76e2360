package parser

import (
	"bytes"
	"strconv"

	"github.com/baras-app/baras/internal/combatlog"
	"github.com/baras-app/baras/internal/intern"
)

var kindTags = map[string]combatlog.Kind{
	"ABILITY_ACTIVATE":     combatlog.KindAbilityActivate,
	"DAMAGE":                combatlog.KindDamage,
	"HEAL":                  combatlog.KindHeal,
	"EFFECT_APPLY_BEGIN":    combatlog.KindEffectApplyBegin,
	"EFFECT_APPLY_END":      combatlog.KindEffectApplyEnd,
	"EFFECT_REFRESH":        combatlog.KindEffectRefresh,
	"DEATH":                 combatlog.KindDeath,
	"REVIVE":                combatlog.KindRevive,
	"ENTER_COMBAT":          combatlog.KindEnterCombat,
	"EXIT_COMBAT":           combatlog.KindExitCombat,
	"AREA_CHANGE":           combatlog.KindAreaChange,
	"LOGIN":                 combatlog.KindLoginInfo,
	"TARGET_SET":            combatlog.KindTargetSet,
	"TARGET_CLEARED":        combatlog.KindTargetCleared,
	"DISCIPLINE_CHANGED":    combatlog.KindDisciplineChanged,
	"SPEND":                 combatlog.KindSpend,
	"MODIFY_CHARGES":        combatlog.KindModifyCharges,
	"THREAT":                combatlog.KindThreat,
	"REMOVE_ALL":            combatlog.KindRemoveAll,
	"CLEAVE":                combatlog.KindCleave,
	"EVADE":                 combatlog.KindEvade,
	"BLOCK":                 combatlog.KindBlock,
	"PARRY":                 combatlog.KindParry,
	"DODGE":                 combatlog.KindDodge,
	"IMMUNE":                combatlog.KindImmune,
}

// parseEventDetail decodes segment 5, `KIND|k=v|...`, into a Kind plus
// its kind-specific Detail payload.
func parseEventDetail(seg []byte, abilityID int64, in *intern.Interner) (combatlog.Kind, combatlog.Detail, bool) {
	fields := splitFields(seg)
	if len(fields) == 0 {
		return combatlog.KindUnknown, combatlog.Detail{}, false
	}

	kind, known := kindTags[string(fields[0])]
	if !known {
		return combatlog.KindUnknown, combatlog.Detail{}, false
	}

	var det combatlog.Detail
	for _, f := range fields[1:] {
		key, value, ok := splitKV(f)
		if !ok {
			continue
		}
		switch string(key) {
		case "amount":
			det.Amount, _ = strconv.ParseInt(string(value), 10, 64)
		case "effective":
			det.EffectiveValue, _ = strconv.ParseInt(string(value), 10, 64)
		case "flags":
			det.Flags = parseFlags(value)
		case "shield":
			det.ShieldDelta, _ = strconv.ParseInt(string(value), 10, 64)
		case "charges":
			c, _ := strconv.ParseInt(string(value), 10, 32)
			det.Charges = int32(c)
		case "effect":
			det.EffectName = in.Intern(string(value))
		}
	}

	if kind == combatlog.KindEffectApplyBegin {
		det.Charges = correctCharges(abilityID, det.Charges)
	}

	return kind, det, true
}

func parseFlags(value []byte) combatlog.DamageFlags {
	var flags combatlog.DamageFlags
	for _, part := range bytes.Split(value, []byte(",")) {
		switch string(bytes.TrimSpace(part)) {
		case "crit":
			flags |= combatlog.FlagCrit
		case "shielded":
			flags |= combatlog.FlagShielded
		case "absorbed":
			flags |= combatlog.FlagAbsorbed
		case "missed":
			flags |= combatlog.FlagMissed
		case "reflected":
			flags |= combatlog.FlagReflected
		case "dodged":
			flags |= combatlog.FlagDodged
		case "parried":
			flags |= combatlog.FlagParried
		case "blocked":
			flags |= combatlog.FlagBlocked
		}
	}
	return flags
}
