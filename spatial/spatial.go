// Package spatial indexes objects by axis aligned bounding boxes.
//
// Every object is a sphere given by its center and radius and is indexed by
// the cube enclosing it. Box queries use closed intervals on every axis, so
// touching boxes intersect. All query results are sorted by object id.
package spatial

import (
	"math"
	"slices"

	"github.com/meshsync/go-meshsync/common/types"
)

// Point in millimeters.
type Point struct {
	X, Y, Z float64
}

// PointOf converts an object position to a point.
func PointOf(p types.Position) Point {
	return Point{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

// Distance is the euclidean distance between two points.
func (p Point) Distance(o Point) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Box is an axis aligned box with inclusive bounds.
type Box struct {
	Min, Max Point
}

// Around returns the cube with half side r centered at p.
func Around(p Point, r float64) Box {
	return Box{
		Min: Point{X: p.X - r, Y: p.Y - r, Z: p.Z - r},
		Max: Point{X: p.X + r, Y: p.Y + r, Z: p.Z + r},
	}
}

// Intersects reports whether the boxes share at least one point.
func (b Box) Intersects(o Box) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

// empty is true for inverted boxes, which match nothing.
func (b Box) empty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Entry is an indexed object.
type Entry struct {
	ID     types.ObjectID
	Center Point
	Radius float64
}

func newEntry(id types.ObjectID, center Point, radius float64) Entry {
	if !(radius > 0) {
		radius = 0
	}
	return Entry{ID: id, Center: center, Radius: radius}
}

// Box returns the bounding box of the entry.
func (e Entry) Box() Box {
	return Around(e.Center, e.Radius)
}

// Index is implemented by spatial indexes.
// Implementations are safe for concurrent use.
type Index interface {
	// InsertOrUpdate indexes id, replacing its previous extent.
	InsertOrUpdate(id types.ObjectID, center Point, radius float64)
	// Remove drops id. It is a no-op for unknown ids.
	Remove(id types.ObjectID) bool
	// QueryBBox returns ids of every entry whose box intersects [min, max].
	QueryBBox(min, max Point) []types.ObjectID
	Entry(id types.ObjectID) (Entry, bool)
	Len() int
}

func sortIDs(ids []types.ObjectID) []types.ObjectID {
	slices.Sort(ids)
	return ids
}
