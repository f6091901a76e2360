// Package parser decodes raw combat log lines into combatlog.CombatEvent
// values (§4.2). It never panics and never returns an error to the
// pipeline: a malformed line yields (CombatEvent{}, false) plus a debug
// trace, so the stream is never interrupted.
package parser

import (
	"time"

	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/combatlog"
	"github.com/baras-app/baras/internal/intern"
)

// Wire format (BARAS's own, byte-scanned, no regexp — §4.2):
//
//	[HH:MM:SS.mmm] [source] [target] [ability] [KIND|k=v|k=v...]
//
// source/target segments: see parseEntitySegment. ability segment: see
// parseAbilitySegment. Detail fields are kind-specific key=value pairs.

// Parser turns lines into events for one session. It is not
// goroutine-safe; one Parser per pipeline task, matching the
// single-threaded cooperative model of §5.
type Parser struct {
	interner   *intern.Interner
	logger     *zap.Logger
	anchorDate time.Time
	lastTime   time.Time
}

// New creates a Parser. anchorDate is the session-start date; it stays as
// given (apart from midnight rollover) until a caller invokes
// SetAnchorDate. ParseLine does not read a date from LoginInfo lines.
func New(interner *intern.Interner, anchorDate time.Time, logger *zap.Logger) *Parser {
	return &Parser{interner: interner, anchorDate: anchorDate, logger: logger}
}

// SetAnchorDate overrides the session-start date once it's known from a
// LoginInfo line.
func (p *Parser) SetAnchorDate(date time.Time) {
	p.anchorDate = date
}

// ParseLine decodes one line. ok is false for anything malformed; the
// pipeline simply drops the line and continues (§4.2 "Tolerance").
func (p *Parser) ParseLine(lineNumber int64, line []byte) (combatlog.CombatEvent, bool) {
	segments := splitSegments(line)
	if len(segments) < 4 {
		p.trace(lineNumber, "too few bracketed segments", line)
		return combatlog.CombatEvent{}, false
	}

	ts, err := parseTimestamp(segments[0], p.anchorDate)
	if err != nil {
		p.trace(lineNumber, "unparsable timestamp", line)
		return combatlog.CombatEvent{}, false
	}
	// Midnight rollover: a later line whose wall-clock time is more than
	// 12 hours earlier than the previous line's means the log crossed into
	// the next day; smaller backward steps are kept on the same day.
	if !p.lastTime.IsZero() && ts.Before(p.lastTime.Add(-12*time.Hour)) {
		p.anchorDate = p.anchorDate.AddDate(0, 0, 1)
		ts = ts.AddDate(0, 0, 1)
	}
	p.lastTime = ts

	source, sourcePos, sourceDetail := parseEntitySegment(segments[1], p.interner)
	target, targetPos, targetDetail := parseEntitySegment(segments[2], p.interner)
	ability := parseAbilitySegment(segments[3], p.interner)

	if len(segments) < 5 {
		p.trace(lineNumber, "missing event-type segment", line)
		return combatlog.CombatEvent{}, false
	}

	kind, detail, ok := parseEventDetail(segments[4], ability.ID, p.interner)
	if !ok {
		p.trace(lineNumber, "unrecognized event kind", line)
		return combatlog.CombatEvent{}, false
	}

	// HP carried on the target's entity suffix (the common case: "target
	// HP update" events per §4.3) wins over a detail-segment HP field.
	if targetDetail.HPMax != 0 {
		detail.HPCurrent, detail.HPMax = targetDetail.HPCurrent, targetDetail.HPMax
	}
	if sourceDetail.HPMax != 0 && detail.HPMax == 0 {
		detail.HPCurrent, detail.HPMax = sourceDetail.HPCurrent, sourceDetail.HPMax
	}

	return combatlog.CombatEvent{
		Time:       ts,
		Source:     source,
		Target:     target,
		Ability:    ability,
		Kind:       kind,
		Detail:     detail,
		SourcePos:  sourcePos,
		TargetPos:  targetPos,
		LineNumber: lineNumber,
	}, true
}

func (p *Parser) trace(lineNumber int64, reason string, line []byte) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("dropped malformed log line",
		zap.Int64("line", lineNumber),
		zap.String("reason", reason),
	)
}
