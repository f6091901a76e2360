package parser

import (
	"strconv"
	"time"

	"github.com/baras-app/baras/internal/errs"
)

// parseTimestamp decodes "HH:MM:SS.mmm" and combines it with anchorDate
// (the session-start date the Parser was given) to produce an absolute
// instant.
func parseTimestamp(seg []byte, anchorDate time.Time) (time.Time, error) {
	if len(seg) != 12 || seg[2] != ':' || seg[5] != ':' || seg[8] != '.' {
		return time.Time{}, errs.New(errs.KindParse, "malformed timestamp", nil, "segment", string(seg))
	}

	hh, err1 := strconv.Atoi(string(seg[0:2]))
	mm, err2 := strconv.Atoi(string(seg[3:5]))
	ss, err3 := strconv.Atoi(string(seg[6:8]))
	ms, err4 := strconv.Atoi(string(seg[9:12]))
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return time.Time{}, errs.New(errs.KindParse, "unparsable timestamp fields", nil, "segment", string(seg))
	}

	return time.Date(
		anchorDate.Year(), anchorDate.Month(), anchorDate.Day(),
		hh, mm, ss, ms*int(time.Millisecond),
		anchorDate.Location(),
	), nil
}
