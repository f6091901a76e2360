package parser

import "bytes"

// splitSegments scans a raw log line for bracketed `[...]` segments in
// order, byte by byte — no regexp, per §4.2 "The parser uses byte-level
// scanning to locate segment boundaries." Unbalanced or missing brackets
// simply yield fewer segments; the caller decides whether that's enough
// to build an event.
func splitSegments(line []byte) [][]byte {
	var segments [][]byte
	for {
		start := bytes.IndexByte(line, '[')
		if start < 0 {
			break
		}
		end := bytes.IndexByte(line[start:], ']')
		if end < 0 {
			break
		}
		end += start
		segments = append(segments, line[start+1:end])
		line = line[end+1:]
	}
	return segments
}

// splitFields splits a `|`-delimited detail segment into its fields,
// trimming surrounding whitespace from each.
func splitFields(seg []byte) [][]byte {
	var fields [][]byte
	for len(seg) > 0 {
		idx := bytes.IndexByte(seg, '|')
		var field []byte
		if idx < 0 {
			field = seg
			seg = nil
		} else {
			field = seg[:idx]
			seg = seg[idx+1:]
		}
		fields = append(fields, bytes.TrimSpace(field))
	}
	return fields
}

// splitKV splits a `key=value` field. ok is false if there is no '='.
func splitKV(field []byte) (key, value []byte, ok bool) {
	idx := bytes.IndexByte(field, '=')
	if idx < 0 {
		return nil, nil, false
	}
	return bytes.TrimSpace(field[:idx]), bytes.TrimSpace(field[idx+1:]), true
}
