package spatial

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/meshsync/go-meshsync/common/types"
)

func implementations() map[string]func() Index {
	return map[string]func() Index{
		"linear":     func() Index { return NewLinear() },
		"grid":       func() Index { return NewGrid(DefaultCellSize) },
		"grid small": func() Index { return NewGrid(10) },
	}
}

func TestQueryBBox(t *testing.T) {
	for name, create := range implementations() {
		t.Run(name, func(t *testing.T) {
			idx := create()
			idx.InsertOrUpdate(1, Point{0, 0, 0}, 10)
			idx.InsertOrUpdate(2, Point{100, 0, 0}, 10)
			idx.InsertOrUpdate(3, Point{5000, 5000, 5000}, 0)
			require.Equal(t, 3, idx.Len())

			// closed intervals: touching boxes intersect
			require.Equal(t, []types.ObjectID{1}, idx.QueryBBox(Point{10, 10, 10}, Point{20, 20, 20}))
			require.Equal(t, []types.ObjectID{1, 2}, idx.QueryBBox(Point{-100, -100, -100}, Point{90, 0, 0}))
			require.Empty(t, idx.QueryBBox(Point{11, 11, 11}, Point{89, 20, 20}))
			require.Equal(t, []types.ObjectID{3}, idx.QueryBBox(Point{5000, 5000, 5000}, Point{5000, 5000, 5000}))
			// inverted boxes match nothing
			require.Empty(t, idx.QueryBBox(Point{20, 0, 0}, Point{-20, 0, 0}))

			// update moves the entry
			idx.InsertOrUpdate(1, Point{5000, 5000, 5010}, 10)
			require.Equal(t, []types.ObjectID{1, 3}, idx.QueryBBox(Point{4999, 4999, 4999}, Point{5001, 5001, 5001}))
			require.Empty(t, idx.QueryBBox(Point{-1, -1, -1}, Point{1, 1, 1}))
			e, ok := idx.Entry(1)
			require.True(t, ok)
			require.Equal(t, Entry{ID: 1, Center: Point{5000, 5000, 5010}, Radius: 10}, e)

			require.True(t, idx.Remove(1))
			require.False(t, idx.Remove(1))
			_, ok = idx.Entry(1)
			require.False(t, ok)
			require.Equal(t, []types.ObjectID{3}, idx.QueryBBox(Point{4999, 4999, 4999}, Point{5001, 5001, 5001}))
			require.Equal(t, 2, idx.Len())
		})
	}
}

func TestOversizeEntry(t *testing.T) {
	idx := NewGrid(1)
	idx.InsertOrUpdate(7, Point{0, 0, 0}, 1000)
	require.Equal(t, []types.ObjectID{7}, idx.QueryBBox(Point{999, 999, 999}, Point{999, 999, 999}))
	require.True(t, idx.Remove(7))
	require.Empty(t, idx.QueryBBox(Point{0, 0, 0}, Point{0, 0, 0}))
	require.Empty(t, idx.cells)
	require.Empty(t, idx.oversize)
}

func TestGridCleansCells(t *testing.T) {
	idx := NewGrid(100)
	idx.InsertOrUpdate(1, Point{50, 50, 50}, 75)
	require.Len(t, idx.cells, 27)
	idx.InsertOrUpdate(1, Point{50, 50, 50}, 10)
	require.Len(t, idx.cells, 1)
	idx.Remove(1)
	require.Empty(t, idx.cells)
}

func randomPoint(rng *rand.Rand, span float64) Point {
	return Point{X: rng.Float64() * span, Y: rng.Float64() * span, Z: rng.Float64() * span}
}

func TestImplementationsAgree(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	linear := NewLinear()
	grids := []*Grid{NewGrid(DefaultCellSize), NewGrid(250), NewGrid(7000)}
	apply := func(fn func(Index)) {
		fn(linear)
		for _, g := range grids {
			fn(g)
		}
	}

	for i := 0; i < 2000; i++ {
		id := types.ObjectID(rng.IntN(500))
		switch rng.IntN(5) {
		case 0:
			apply(func(idx Index) { idx.Remove(id) })
		default:
			center := randomPoint(rng, 20000)
			radius := float64(rng.IntN(3000))
			apply(func(idx Index) { idx.InsertOrUpdate(id, center, radius) })
		}
		if i%20 != 0 {
			continue
		}
		lo := randomPoint(rng, 20000)
		hi := Point{X: lo.X + rng.Float64()*5000, Y: lo.Y + rng.Float64()*5000, Z: lo.Z + rng.Float64()*5000}
		expected := linear.QueryBBox(lo, hi)
		p := randomPoint(rng, 20000)
		k := 1 + rng.IntN(10)
		expectedKNN := FindKNearest(linear, p, k)
		for j, g := range grids {
			require.Equal(t, linear.Len(), g.Len())
			if diff := cmp.Diff(expected, g.QueryBBox(lo, hi)); diff != "" {
				t.Fatalf("grid %d bbox mismatch at step %d (-linear +grid):\n%s", j, i, diff)
			}
			if diff := cmp.Diff(expectedKNN, FindKNearest(g, p, k)); diff != "" {
				t.Fatalf("grid %d knn mismatch at step %d (-linear +grid):\n%s", j, i, diff)
			}
		}
	}
}

func bruteForceKNN(idx *Linear, p Point, k int) []Neighbor {
	var all []Neighbor
	for id, e := range idx.entries {
		all = append(all, Neighbor{ID: id, Distance: p.Distance(e.Center)})
	}
	sortNeighbors(all)
	return truncate(all, k)
}

func TestFindKNearestExact(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	idx := NewLinear()
	for id := types.ObjectID(1); id <= 300; id++ {
		idx.InsertOrUpdate(id, randomPoint(rng, 60000), 250)
	}
	for _, k := range []int{1, 5, 17, 300, 400} {
		t.Run(fmt.Sprint(k), func(t *testing.T) {
			p := randomPoint(rng, 60000)
			got := FindKNearest(idx, p, k)
			require.Equal(t, bruteForceKNN(idx, p, k), got)
		})
	}
}

func TestFindKNearestTies(t *testing.T) {
	idx := NewGrid(DefaultCellSize)
	idx.InsertOrUpdate(9, Point{10, 0, 0}, 0)
	idx.InsertOrUpdate(3, Point{-10, 0, 0}, 0)
	idx.InsertOrUpdate(5, Point{0, 10, 0}, 0)
	idx.InsertOrUpdate(1, Point{0, 0, 50}, 0)

	got := FindKNearest(idx, Point{}, 2)
	require.Equal(t, []Neighbor{{ID: 3, Distance: 10}, {ID: 5, Distance: 10}}, got)
	require.Empty(t, FindKNearest(idx, Point{}, 0))
	require.Empty(t, FindKNearest(NewLinear(), Point{}, 3))
}

func TestFindKNearestMaxRadius(t *testing.T) {
	idx := NewLinear()
	idx.InsertOrUpdate(1, Point{0, 0, 0}, 0)
	idx.InsertOrUpdate(2, Point{3000, 0, 0}, 0)
	idx.InsertOrUpdate(3, Point{10000, 0, 0}, 0)

	got := FindKNearest(idx, Point{}, 3, WithInitialRadius(500), WithMaxRadius(4000))
	require.Equal(t, []Neighbor{{ID: 1, Distance: 0}, {ID: 2, Distance: 3000}}, got)

	got = FindKNearest(idx, Point{}, 2, WithInitialRadius(100), WithMaxRadius(2000))
	require.Equal(t, []Neighbor{{ID: 1, Distance: 0}}, got)
}

func TestWithinRadius(t *testing.T) {
	idx := NewGrid(100)
	idx.InsertOrUpdate(1, Point{0, 0, 0}, 0)
	idx.InsertOrUpdate(2, Point{30, 40, 0}, 0)
	idx.InsertOrUpdate(3, Point{60, 60, 60}, 0)
	require.Equal(t, []Neighbor{{ID: 1, Distance: 0}, {ID: 2, Distance: 50}}, WithinRadius(idx, Point{}, 50))
	require.Empty(t, WithinRadius(idx, Point{}, -1))
}

func TestRadii(t *testing.T) {
	r := DefaultRadii()
	require.EqualValues(t, DefaultRadius, r.For(types.ObjectSensor))
	require.EqualValues(t, 2500, r.For(types.ObjectWall))
	require.Equal(t, Point{1, 2, 3}, PointOf(types.Position{X: 1, Y: 2, Z: 3}))
}
