package crawler

// Deduplicator is a run-scoped set of previously seen record keys. Each
// distinct key is handed downstream at most once per run; cross-run
// duplication is handled by the merchant store's natural-key upsert
// instead.
type Deduplicator struct {
	seen map[string]struct{}
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Seen reports whether the key has been marked.
func (d *Deduplicator) Seen(key string) bool {
	_, ok := d.seen[key]
	return ok
}

// Mark records the key as seen.
func (d *Deduplicator) Mark(key string) {
	d.seen[key] = struct{}{}
}

// MarkIfNew marks the key and reports true if it had not been seen
// before.
func (d *Deduplicator) MarkIfNew(key string) bool {
	if d.Seen(key) {
		return false
	}
	d.Mark(key)
	return true
}

// Len returns the number of distinct keys seen this run.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}
