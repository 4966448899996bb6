package spatial

import (
	"math"
	"math/bits"
	"sync"

	"github.com/meshsync/go-meshsync/common/types"
)

const (
	// DefaultCellSize is the default grid cell side in millimeters.
	DefaultCellSize = 1000
	// maxEntryCells bounds the cells an entry is registered in. Larger
	// entries are kept aside and tested on every query.
	maxEntryCells = 512
)

type cell struct {
	x, y, z int32
}

type cellRange struct {
	min, max cell
}

// count saturates at math.MaxUint64.
func (r cellRange) count() uint64 {
	n := uint64(1)
	for _, side := range [...]int64{
		int64(r.max.x) - int64(r.min.x) + 1,
		int64(r.max.y) - int64(r.min.y) + 1,
		int64(r.max.z) - int64(r.min.z) + 1,
	} {
		hi, lo := bits.Mul64(n, uint64(side))
		if hi != 0 {
			return math.MaxUint64
		}
		n = lo
	}
	return n
}

// Grid is a uniform hash grid. Each entry is registered in every cell its
// box overlaps.
type Grid struct {
	size float64

	mu       sync.RWMutex
	entries  map[types.ObjectID]Entry
	cells    map[cell]map[types.ObjectID]struct{}
	oversize map[types.ObjectID]struct{}
}

// NewGrid creates a grid with cells of the given side. Non positive sizes
// use DefaultCellSize.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		cellSize = DefaultCellSize
	}
	return &Grid{
		size:     cellSize,
		entries:  map[types.ObjectID]Entry{},
		cells:    map[cell]map[types.ObjectID]struct{}{},
		oversize: map[types.ObjectID]struct{}{},
	}
}

func (g *Grid) coord(v float64) int32 {
	c := math.Floor(v / g.size)
	switch {
	case c < math.MinInt32:
		return math.MinInt32
	case c > math.MaxInt32:
		return math.MaxInt32
	}
	return int32(c)
}

func (g *Grid) cellsOf(b Box) cellRange {
	return cellRange{
		min: cell{g.coord(b.Min.X), g.coord(b.Min.Y), g.coord(b.Min.Z)},
		max: cell{g.coord(b.Max.X), g.coord(b.Max.Y), g.coord(b.Max.Z)},
	}
}

func (r cellRange) each(fn func(cell)) {
	for x := int64(r.min.x); x <= int64(r.max.x); x++ {
		for y := int64(r.min.y); y <= int64(r.max.y); y++ {
			for z := int64(r.min.z); z <= int64(r.max.z); z++ {
				fn(cell{int32(x), int32(y), int32(z)})
			}
		}
	}
}

func (g *Grid) InsertOrUpdate(id types.ObjectID, center Point, radius float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remove(id)
	e := newEntry(id, center, radius)
	g.entries[id] = e
	r := g.cellsOf(e.Box())
	if r.count() > maxEntryCells {
		g.oversize[id] = struct{}{}
		return
	}
	r.each(func(c cell) {
		ids, ok := g.cells[c]
		if !ok {
			ids = map[types.ObjectID]struct{}{}
			g.cells[c] = ids
		}
		ids[id] = struct{}{}
	})
}

func (g *Grid) Remove(id types.ObjectID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remove(id)
}

func (g *Grid) remove(id types.ObjectID) bool {
	e, ok := g.entries[id]
	if !ok {
		return false
	}
	delete(g.entries, id)
	if _, ok := g.oversize[id]; ok {
		delete(g.oversize, id)
		return true
	}
	g.cellsOf(e.Box()).each(func(c cell) {
		ids := g.cells[c]
		delete(ids, id)
		if len(ids) == 0 {
			delete(g.cells, c)
		}
	})
	return true
}

func (g *Grid) QueryBBox(min, max Point) []types.ObjectID {
	q := Box{Min: min, Max: max}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if q.empty() {
		return nil
	}
	var rst []types.ObjectID
	r := g.cellsOf(q)
	if r.count() > uint64(len(g.entries)) {
		for id, e := range g.entries {
			if e.Box().Intersects(q) {
				rst = append(rst, id)
			}
		}
		return sortIDs(rst)
	}
	seen := map[types.ObjectID]struct{}{}
	test := func(id types.ObjectID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		if g.entries[id].Box().Intersects(q) {
			rst = append(rst, id)
		}
	}
	r.each(func(c cell) {
		for id := range g.cells[c] {
			test(id)
		}
	})
	for id := range g.oversize {
		test(id)
	}
	return sortIDs(rst)
}

func (g *Grid) Entry(id types.ObjectID) (Entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entries[id]
	return e, ok
}

func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}
