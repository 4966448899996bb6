package types

import (
	"fmt"
	"strconv"

	"go.uber.org/zap/zapcore"
)

//go:generate scalegen -types BuildingObject,Position

// ObjectID identifies a building object. On the wire it is the building_id field.
type ObjectID uint16

func (id ObjectID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Uint16 returns the id as uint16.
func (id ObjectID) Uint16() uint16 { return uint16(id) }

// ObjectType is an enumerated code describing what kind of physical item an object is.
type ObjectType uint8

const (
	ObjectUnknown ObjectType = iota
	ObjectWall
	ObjectDoor
	ObjectWindow
	ObjectStair
	ObjectElevator
	ObjectColumn
	ObjectSlab
	ObjectRoom
	ObjectFurniture
	ObjectFixture
	ObjectEquipment
	ObjectSensor
	ObjectPipe
	ObjectDuct
	ObjectCable
)

var objectTypeNames = [...]string{
	ObjectUnknown:   "unknown",
	ObjectWall:      "wall",
	ObjectDoor:      "door",
	ObjectWindow:    "window",
	ObjectStair:     "stair",
	ObjectElevator:  "elevator",
	ObjectColumn:    "column",
	ObjectSlab:      "slab",
	ObjectRoom:      "room",
	ObjectFurniture: "furniture",
	ObjectFixture:   "fixture",
	ObjectEquipment: "equipment",
	ObjectSensor:    "sensor",
	ObjectPipe:      "pipe",
	ObjectDuct:      "duct",
	ObjectCable:     "cable",
}

func (t ObjectType) String() string {
	if int(t) < len(objectTypeNames) {
		return objectTypeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Position is a point inside a building in millimeters. Each axis spans 0-65535mm.
type Position struct {
	X, Y, Z uint16
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// MarshalLogObject implements logging encoder for Position.
func (p Position) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("x", p.X)
	encoder.AddUint16("y", p.Y)
	encoder.AddUint16("z", p.Z)
	return nil
}

// Properties are four opaque bytes interpreted according to the object type.
type Properties [4]byte

// BuildingObject is the minimal description of one physical item inside a building.
type BuildingObject struct {
	ID         ObjectID
	Type       ObjectType
	Position   Position
	Properties Properties
}

// MarshalLogObject implements logging encoder for BuildingObject.
func (o *BuildingObject) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("id", uint16(o.ID))
	encoder.AddString("type", o.Type.String())
	if err := encoder.AddObject("pos", o.Position); err != nil {
		return err
	}
	encoder.AddBinary("props", o.Properties[:])
	return nil
}
