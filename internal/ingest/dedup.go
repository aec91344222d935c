package ingest

import "github.com/luzparatodos-am/localidades-backend/internal/localidades"

// Deduplicator remembers natural keys seen during one run. First occurrence
// wins; later rows with the same key are dropped whatever their other fields.
type Deduplicator struct {
	seen map[localidades.NaturalKey]struct{}
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: map[localidades.NaturalKey]struct{}{}}
}

func (d *Deduplicator) Seen(k localidades.NaturalKey) bool {
	_, ok := d.seen[k]
	return ok
}

func (d *Deduplicator) Register(k localidades.NaturalKey) {
	d.seen[k] = struct{}{}
}

// Len is the number of distinct keys registered.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}
