package poll

import (
	"encoding/json"
	"fmt"
	"slices"

	"crawl-dashboard/internal/domain/entity"
)

// Key is the change-detection key of one source: id, runtime status and
// the stats serialized as JSON. encoding/json sorts map keys, so equal stats
// always produce the same key.
func Key(s entity.Source) string {
	stats, err := json.Marshal(s.Stats)
	if err != nil {
		// Only reachable with values JSON cannot encode (NaN, channels).
		stats = []byte(fmt.Sprintf("%v", s.Stats))
	}
	return s.ID + ":" + string(s.RuntimeStatus) + ":" + string(stats)
}

func keys(sources []entity.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = Key(s)
	}
	return out
}

// Equal reports whether two source lists are observably identical: same
// length and the same ordered key sequence. A reordering is a change.
func Equal(a, b []entity.Source) bool {
	return len(a) == len(b) && slices.Equal(keys(a), keys(b))
}

// Cache holds the last published source list and suppresses updates that
// would not change what is rendered.
//
// Cache is not safe for concurrent use; the Controller's loop owns it.
type Cache struct {
	sources []entity.Source
	keys    []string
	bypass  bool
	applied bool
}

// NewCache creates an empty cache. With bypass set, every Apply replaces the
// list and reports a change; the resulting list is the same either way.
func NewCache(bypass bool) *Cache {
	return &Cache{bypass: bypass}
}

// Apply offers a freshly fetched list. When it equals the current one the
// current slice is kept and changed is false; otherwise next replaces it
// wholesale. The first Apply always counts as a change.
func (c *Cache) Apply(next []entity.Source) (current []entity.Source, changed bool) {
	nextKeys := keys(next)
	if c.applied && !c.bypass && slices.Equal(c.keys, nextKeys) {
		return c.sources, false
	}
	c.sources = next
	c.keys = nextKeys
	c.applied = true
	return c.sources, true
}

// Sources returns the current list. Callers must not modify it.
func (c *Cache) Sources() []entity.Source {
	return c.sources
}
