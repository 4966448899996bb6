package types

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// DetailCategory is the kind of enrichment a detail chunk carries.
type DetailCategory uint8

const (
	CategoryBasic DetailCategory = iota
	CategoryMaterial
	CategorySystems
	CategoryHistorical
	CategorySimulation
	CategoryPredictive

	// CategoryCount is the number of known categories.
	CategoryCount = int(CategoryPredictive) + 1
)

// Valid returns true for known categories.
func (c DetailCategory) Valid() bool { return int(c) < CategoryCount }

func (c DetailCategory) String() string {
	switch c {
	case CategoryBasic:
		return "basic"
	case CategoryMaterial:
		return "material"
	case CategorySystems:
		return "systems"
	case CategoryHistorical:
		return "historical"
	case CategorySimulation:
		return "simulation"
	case CategoryPredictive:
		return "predictive"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// ChunkID identifies a chunk within (object, category).
type ChunkID uint16

// DetailChunk is an incremental payload enriching an object's description.
type DetailChunk struct {
	Object   ObjectID
	Chunk    ChunkID
	Category DetailCategory
	Data     []byte
}

// MarshalLogObject implements logging encoder for DetailChunk.
func (c *DetailChunk) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("object", uint16(c.Object))
	encoder.AddUint16("chunk", uint16(c.Chunk))
	encoder.AddString("category", c.Category.String())
	encoder.AddInt("size", len(c.Data))
	return nil
}

// RenderLevel is the fidelity a rendering layer may use for an object.
type RenderLevel uint8

const (
	RenderNone RenderLevel = iota
	RenderPresence
	RenderVisual
	RenderSystems
	RenderFull
)

func (l RenderLevel) String() string {
	switch l {
	case RenderNone:
		return "none"
	case RenderPresence:
		return "presence"
	case RenderVisual:
		return "visual"
	case RenderSystems:
		return "systems"
	case RenderFull:
		return "full"
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}
