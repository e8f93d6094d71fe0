package match

import (
	"iter"

	"github.com/poiesic/lostfound/core"
)

// Candidates lazily yields the listings in pool that subject may be matched
// against. A candidate must be of the opposite kind, belong to another owner
// and be active. Nil entries are ignored and pool is never modified, so the
// sequence can be ranged over any number of times.
func Candidates(subject *core.Listing, pool []*core.Listing) iter.Seq[*core.Listing] {
	return func(yield func(*core.Listing) bool) {
		if subject == nil {
			return
		}
		want := subject.Kind.Opposite()
		for _, candidate := range pool {
			if candidate == nil {
				continue
			}
			if candidate.Kind != want {
				continue
			}
			if candidate.OwnerID == subject.OwnerID {
				continue
			}
			if !candidate.IsActive() {
				continue
			}
			if !yield(candidate) {
				return
			}
		}
	}
}
