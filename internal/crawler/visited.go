package crawler

// VisitedSet records normalized URLs marked during one batch. It is owned by a
// single batch and is not safe for concurrent use.
type VisitedSet struct {
	seen map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// Add marks raw as visited and reports whether it was new.
func (v *VisitedSet) Add(raw string) bool {
	key := visitKey(raw)
	if _, ok := v.seen[key]; ok {
		return false
	}
	v.seen[key] = struct{}{}
	return true
}

// Has reports whether raw was already marked.
func (v *VisitedSet) Has(raw string) bool {
	_, ok := v.seen[visitKey(raw)]
	return ok
}

// Len is the number of distinct URLs marked.
func (v *VisitedSet) Len() int {
	return len(v.seen)
}

func visitKey(raw string) string {
	if normalized, err := NormalizeURL(raw); err == nil {
		return normalized
	}
	return raw
}
