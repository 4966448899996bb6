package spatial

import (
	"cmp"
	"slices"

	"github.com/meshsync/go-meshsync/common/types"
)

const (
	// DefaultInitialRadius is the first search radius of FindKNearest.
	DefaultInitialRadius = 1000
	// DefaultMaxRadius bounds the search radius of FindKNearest.
	DefaultMaxRadius = 131072
)

// Neighbor is a query result with the distance from the query point to the
// entry center.
type Neighbor struct {
	ID       types.ObjectID
	Distance float64
}

type searchConfig struct {
	initial, max float64
}

type SearchOpt func(*searchConfig)

// WithInitialRadius sets the first search radius.
func WithInitialRadius(r float64) SearchOpt {
	return func(c *searchConfig) {
		c.initial = r
	}
}

// WithMaxRadius bounds the search. Entries farther than r are never returned.
func WithMaxRadius(r float64) SearchOpt {
	return func(c *searchConfig) {
		c.max = r
	}
}

func neighbors(idx Index, p Point, ids []types.ObjectID) []Neighbor {
	rst := make([]Neighbor, 0, len(ids))
	for _, id := range ids {
		e, ok := idx.Entry(id)
		if !ok {
			continue
		}
		rst = append(rst, Neighbor{ID: id, Distance: p.Distance(e.Center)})
	}
	return rst
}

func sortNeighbors(ns []Neighbor) {
	slices.SortFunc(ns, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// WithinRadius returns entries whose center is at most r from p, ordered by
// distance and then id.
func WithinRadius(idx Index, p Point, r float64) []Neighbor {
	if r < 0 {
		return nil
	}
	candidates := neighbors(idx, p, idx.QueryBBox(Around(p, r).Min, Around(p, r).Max))
	rst := candidates[:0]
	for _, n := range candidates {
		if n.Distance <= r {
			rst = append(rst, n)
		}
	}
	sortNeighbors(rst)
	return rst
}

// FindKNearest returns up to k entries closest to p by center distance,
// ordered by distance and then id. The search box grows from the initial
// radius by doubling. Once it holds at least k candidates, one more query at
// the k-th candidate distance makes the answer exact.
func FindKNearest(idx Index, p Point, k int, opts ...SearchOpt) []Neighbor {
	cfg := searchConfig{initial: DefaultInitialRadius, max: DefaultMaxRadius}
	for _, opt := range opts {
		opt(&cfg)
	}
	if k <= 0 || idx.Len() == 0 {
		return nil
	}
	if cfg.initial <= 0 {
		cfg.initial = DefaultInitialRadius
	}
	if cfg.max < cfg.initial {
		cfg.max = cfg.initial
	}
	for r := cfg.initial; ; r *= 2 {
		if r > cfg.max {
			r = cfg.max
		}
		box := Around(p, r)
		candidates := neighbors(idx, p, idx.QueryBBox(box.Min, box.Max))
		if len(candidates) >= k {
			sortNeighbors(candidates)
			return truncate(WithinRadius(idx, p, min(candidates[k-1].Distance, cfg.max)), k)
		}
		if r >= cfg.max {
			return truncate(WithinRadius(idx, p, cfg.max), k)
		}
	}
}

func truncate(ns []Neighbor, k int) []Neighbor {
	if len(ns) > k {
		return ns[:k]
	}
	return ns
}
