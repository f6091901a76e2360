// Package intern implements the process-wide string interner (§3 "IStr").
// Entries are created lazily on first sight and never removed for the
// process lifetime; the read path (Lookup) takes only an RLock so hot-path
// event construction stays cheap.
//
// No library in the retrieval pack offers process-wide string interning,
// so this is built directly on stdlib sync primitives — see DESIGN.md.
package intern

import "sync"

// IStr is a stable small integer standing in for an interned string.
// IStr values are freely copied and compared with ==.
type IStr int32

// Zero is the interned id for the empty string; every Interner maps ""
// to Zero eagerly so IStr's zero value is always meaningful.
const Zero IStr = 0

// Interner is the process-wide bidirectional string<->IStr map.
type Interner struct {
	mu      sync.RWMutex
	byText  map[string]IStr
	byIStr  []string
}

// New creates an Interner with "" pre-interned as Zero.
func New() *Interner {
	in := &Interner{
		byText: make(map[string]IStr, 256),
		byIStr: make([]string, 0, 256),
	}
	in.byIStr = append(in.byIStr, "")
	in.byText[""] = Zero
	return in
}

// Intern returns the stable id for s, creating one if s has never been
// seen before.
func (in *Interner) Intern(s string) IStr {
	in.mu.RLock()
	if id, ok := in.byText[s]; ok {
		in.mu.RUnlock()
		return id
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	// Re-check: another goroutine may have interned s while we waited
	// for the write lock.
	if id, ok := in.byText[s]; ok {
		return id
	}
	id := IStr(len(in.byIStr))
	in.byIStr = append(in.byIStr, s)
	in.byText[s] = id
	return id
}

// Lookup resolves an IStr back to its text. Returns "" for an id that was
// never issued by this Interner.
func (in *Interner) Lookup(id IStr) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(in.byIStr) {
		return ""
	}
	return in.byIStr[id]
}

// Len returns the number of distinct strings interned so far, including
// the pre-interned empty string.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.byIStr)
}
