package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/meshsync/go-meshsync/common/types"
)

// ObjectSize is the exact serialized size of a building object.
const ObjectSize = 13

// EncodeObject packs o into its 13 byte wire form.
func EncodeObject(o types.BuildingObject) [ObjectSize]byte {
	var buf [ObjectSize]byte
	binary.BigEndian.PutUint16(buf[0:2], uint16(o.ID))
	buf[2] = byte(o.Type)
	binary.BigEndian.PutUint16(buf[3:5], o.Position.X)
	binary.BigEndian.PutUint16(buf[5:7], o.Position.Y)
	binary.BigEndian.PutUint16(buf[7:9], o.Position.Z)
	copy(buf[9:13], o.Properties[:])
	return buf
}

// AppendObject appends the wire form of o to dst.
func AppendObject(dst []byte, o types.BuildingObject) []byte {
	buf := EncodeObject(o)
	return append(dst, buf[:]...)
}

// DecodeObject unpacks a building object. buf must be exactly ObjectSize bytes.
func DecodeObject(buf []byte) (types.BuildingObject, error) {
	if len(buf) != ObjectSize {
		return types.BuildingObject{}, fmt.Errorf("%w: object is %d bytes, expected %d", ErrCodec, len(buf), ObjectSize)
	}
	var o types.BuildingObject
	o.ID = types.ObjectID(binary.BigEndian.Uint16(buf[0:2]))
	o.Type = types.ObjectType(buf[2])
	o.Position.X = binary.BigEndian.Uint16(buf[3:5])
	o.Position.Y = binary.BigEndian.Uint16(buf[5:7])
	o.Position.Z = binary.BigEndian.Uint16(buf[7:9])
	copy(o.Properties[:], buf[9:13])
	return o, nil
}
