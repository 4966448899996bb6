package spatial

import "github.com/meshsync/go-meshsync/common/types"

// DefaultRadius is the extent of an object of unknown size in millimeters.
const DefaultRadius = 250

// Radii maps object types to their extent in millimeters.
type Radii map[types.ObjectType]float64

// DefaultRadii returns the extents used when none are configured.
func DefaultRadii() Radii {
	return Radii{
		types.ObjectWall:     2500,
		types.ObjectSlab:     5000,
		types.ObjectRoom:     4000,
		types.ObjectStair:    1500,
		types.ObjectElevator: 1200,
		types.ObjectDoor:     600,
		types.ObjectWindow:   600,
		types.ObjectColumn:   400,
		types.ObjectPipe:     1000,
		types.ObjectDuct:     1000,
		types.ObjectCable:    1000,
	}
}

// For returns the radius of t.
func (r Radii) For(t types.ObjectType) float64 {
	if v, ok := r[t]; ok {
		return v
	}
	return DefaultRadius
}
