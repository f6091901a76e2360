package parser

import (
	"bytes"
	"strconv"

	"github.com/baras-app/baras/internal/combatlog"
	"github.com/baras-app/baras/internal/entity"
	"github.com/baras-app/baras/internal/intern"
)

// parseEntitySegment decodes a source/target bracket body. Grammar:
//
//	""                          -> Empty
//	"@Self"                     -> SelfRef
//	"P|Name|id"                 -> Player
//	"C|Name|id"                 -> Companion
//	"N|templateID|instanceID"   -> Npc
//
// Any of the above may carry optional trailing `|pos:x,y,z` and/or
// `|hp:cur,max` fields — the "{numeric_id}:instance_id|(pos)|(curHP/maxHP)
// suffix is optional" of §4.2.
func parseEntitySegment(seg []byte, in *intern.Interner) (entity.Entity, combatlog.Position, combatlog.Detail) {
	var (
		pos  combatlog.Position
		det  combatlog.Detail
	)

	if len(seg) == 0 {
		return entity.Empty, pos, det
	}
	if bytes.Equal(seg, []byte("@Self")) {
		return entity.SelfRef, pos, det
	}

	fields := splitFields(seg)
	if len(fields) == 0 {
		return entity.Empty, pos, det
	}

	e := entity.Empty
	switch string(fields[0]) {
	case "P":
		if len(fields) >= 3 {
			name := in.Intern(string(fields[1]))
			id, _ := strconv.ParseInt(string(fields[2]), 10, 64)
			e = entity.Player(name, id)
		}
	case "C":
		if len(fields) >= 3 {
			name := in.Intern(string(fields[1]))
			id, _ := strconv.ParseInt(string(fields[2]), 10, 64)
			e = entity.Companion(name, id)
		}
	case "N":
		if len(fields) >= 3 {
			tmpl, _ := strconv.ParseInt(string(fields[1]), 10, 64)
			inst, _ := strconv.ParseInt(string(fields[2]), 10, 64)
			e = entity.Npc(tmpl, inst)
		}
	}

	for _, f := range fields[1:] {
		key, value, ok := bytes.Cut(f, []byte(":"))
		if !ok {
			continue
		}
		switch string(bytes.TrimSpace(key)) {
		case "pos":
			if x, y, z, ok := parseVec3(value); ok {
				pos = combatlog.Position{X: x, Y: y, Z: z, Valid: true}
			}
		case "hp":
			if cur, max, ok := parseFraction(value); ok {
				det.HPCurrent, det.HPMax = cur, max
			}
		}
	}

	return e, pos, det
}

func parseVec3(value []byte) (x, y, z float64, ok bool) {
	parts := bytes.Split(value, []byte(","))
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	xf, err1 := strconv.ParseFloat(string(parts[0]), 64)
	yf, err2 := strconv.ParseFloat(string(parts[1]), 64)
	zf, err3 := strconv.ParseFloat(string(parts[2]), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return xf, yf, zf, true
}

func parseFraction(value []byte) (cur, max int64, ok bool) {
	parts := bytes.Split(value, []byte(","))
	if len(parts) != 2 {
		return 0, 0, false
	}
	c, err1 := strconv.ParseInt(string(parts[0]), 10, 64)
	m, err2 := strconv.ParseInt(string(parts[1]), 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return c, m, true
}

// parseAbilitySegment decodes the `Name{id}` ability bracket body. An
// empty segment means the line carries no ability (e.g. a plain melee
// swing).
func parseAbilitySegment(seg []byte, in *intern.Interner) combatlog.Ability {
	if len(seg) == 0 {
		return combatlog.Ability{}
	}
	open := bytes.IndexByte(seg, '{')
	if open < 0 {
		return combatlog.Ability{Name: in.Intern(string(bytes.TrimSpace(seg)))}
	}
	closeIdx := bytes.IndexByte(seg[open:], '}')
	name := bytes.TrimSpace(seg[:open])
	var id int64
	if closeIdx > 0 {
		id, _ = strconv.ParseInt(string(seg[open+1:open+closeIdx]), 10, 64)
	}
	return combatlog.Ability{Name: in.Intern(string(name)), ID: id}
}
