// Package detail accumulates detail chunks per object and summarizes how
// complete each detail category is.
//
// Completeness of a category is the number of bytes received in distinct
// chunks divided by the category target, capped at 1. Summaries only grow.
// Raw chunks are history: they are pruned by age and by a per object cap,
// while the summary stays.
package detail

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meshsync/go-meshsync/common/types"
)

var (
	// ErrInvalidCategory is returned for chunks of an unknown category.
	ErrInvalidCategory = errors.New("invalid detail category")
	// ErrFull is returned when a chunk for a new object does not fit the store.
	ErrFull = errors.New("detail store full")
)

// Config of the detail store.
type Config struct {
	// Targets is the number of distinct bytes per category that make it complete.
	Targets [types.CategoryCount]uint32 `mapstructure:"-"`
	// MaxChunkAge is how long raw chunks are kept.
	MaxChunkAge time.Duration `mapstructure:"max-chunk-age"`
	// MaxChunksPerObject bounds raw chunk history per object. Oldest go first.
	MaxChunksPerObject int `mapstructure:"max-chunks-per-object"`
	// MaxObjects bounds the number of objects with detail records.
	MaxObjects int `mapstructure:"max-objects"`
	// MaintenanceInterval is the period of pruning and queue reseeding.
	MaintenanceInterval time.Duration `mapstructure:"maintenance-interval"`
}

// DefaultConfig returns the default detail store configuration.
func DefaultConfig() Config {
	return Config{
		Targets:             DefaultTargets(),
		MaxChunkAge:         24 * time.Hour,
		MaxChunksPerObject:  64,
		MaxObjects:          4096,
		MaintenanceInterval: 10 * time.Minute,
	}
}

// DefaultTargets returns the default byte targets per category.
func DefaultTargets() [types.CategoryCount]uint32 {
	var targets [types.CategoryCount]uint32
	targets[types.CategoryBasic] = 26
	targets[types.CategoryMaterial] = 128
	targets[types.CategorySystems] = 256
	targets[types.CategoryHistorical] = 512
	targets[types.CategorySimulation] = 512
	targets[types.CategoryPredictive] = 256
	return targets
}

// Completeness is the fraction of detail received per category, each in [0, 1].
type Completeness [types.CategoryCount]float64

// Level derives the render level from completeness.
func (c Completeness) Level() types.RenderLevel {
	if c[types.CategoryBasic] <= 0 {
		return types.RenderNone
	}
	if c[types.CategoryBasic] < 1 || c[types.CategoryMaterial] < 0.5 {
		return types.RenderPresence
	}
	if c[types.CategorySystems] < 0.5 {
		return types.RenderVisual
	}
	for _, v := range c {
		if v < 0.9 {
			return types.RenderSystems
		}
	}
	return types.RenderFull
}

// Summary is the part of an object's record that survives pruning.
type Summary struct {
	Object      types.ObjectID
	Accumulated [types.CategoryCount]uint32
	Seen        [types.CategoryCount][]types.ChunkID
}

// Update reports the effect of applying a chunk.
type Update struct {
	// Fresh is false when the chunk was already applied.
	Fresh        bool
	Before       types.RenderLevel
	After        types.RenderLevel
	Completeness Completeness
}

type storedChunk struct {
	chunk    types.DetailChunk
	received time.Time
}

type record struct {
	accumulated [types.CategoryCount]uint32
	seen        [types.CategoryCount]map[types.ChunkID]struct{}
	// chunks are ordered by receipt time.
	chunks []storedChunk
}

func newRecord() *record {
	r := &record{}
	for i := range r.seen {
		r.seen[i] = map[types.ChunkID]struct{}{}
	}
	return r
}

type Opt func(*Store)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Opt {
	return func(s *Store) {
		s.cfg = cfg
	}
}

// Store keeps detail records per object.
type Store struct {
	logger *zap.Logger
	cfg    Config

	mu      sync.RWMutex
	records map[types.ObjectID]*record
}

// New creates an empty store.
func New(opts ...Opt) *Store {
	s := &Store{
		logger:  zap.NewNop(),
		cfg:     DefaultConfig(),
		records: map[types.ObjectID]*record{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) completeness(r *record) Completeness {
	var c Completeness
	for i, acc := range r.accumulated {
		target := s.cfg.Targets[i]
		switch {
		case acc == 0:
		case target == 0 || acc >= target:
			c[i] = 1
		default:
			c[i] = float64(acc) / float64(target)
		}
	}
	return c
}

// saturated reports whether category already reached full completeness.
func (s *Store) saturated(r *record, category types.DetailCategory) bool {
	acc := r.accumulated[category]
	target := s.cfg.Targets[category]
	return acc > 0 && (target == 0 || acc >= target)
}

func (r *record) holds(category types.DetailCategory, id types.ChunkID) bool {
	return slices.ContainsFunc(r.chunks, func(c storedChunk) bool {
		return c.chunk.Category == category && c.chunk.Chunk == id
	})
}

// Apply records chunk as received at now. Chunk ids are remembered per
// category only until the category is complete, afterwards a chunk counts as
// known while its raw data is still held.
func (s *Store) Apply(chunk types.DetailChunk, now time.Time) (Update, error) {
	if !chunk.Category.Valid() {
		return Update{}, fmt.Errorf("%w: %d", ErrInvalidCategory, chunk.Category)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[chunk.Object]
	if !ok {
		if s.cfg.MaxObjects > 0 && len(s.records) >= s.cfg.MaxObjects {
			return Update{}, ErrFull
		}
		r = newRecord()
		s.records[chunk.Object] = r
	}
	before := s.completeness(r)
	upd := Update{Before: before.Level()}
	saturated := s.saturated(r, chunk.Category)
	_, seen := r.seen[chunk.Category][chunk.Chunk]
	if seen || (saturated && r.holds(chunk.Category, chunk.Chunk)) {
		upd.After = upd.Before
		upd.Completeness = before
		return upd, nil
	}
	upd.Fresh = true
	if !saturated {
		contributed := uint32(max(1, len(chunk.Data)))
		if r.accumulated[chunk.Category] <= ^uint32(0)-contributed {
			r.accumulated[chunk.Category] += contributed
		}
		if s.saturated(r, chunk.Category) {
			// completeness is capped, ids no longer need to be told apart
			clear(r.seen[chunk.Category])
		} else {
			r.seen[chunk.Category][chunk.Chunk] = struct{}{}
		}
	}

	stored := chunk
	stored.Data = slices.Clone(chunk.Data)
	r.chunks = append(r.chunks, storedChunk{chunk: stored, received: now})
	if limit := s.cfg.MaxChunksPerObject; limit > 0 && len(r.chunks) > limit {
		r.chunks = slices.Delete(r.chunks, 0, len(r.chunks)-limit)
	}

	upd.Completeness = s.completeness(r)
	upd.After = upd.Completeness.Level()
	if upd.After != upd.Before {
		s.logger.Debug("render level changed",
			zap.Stringer("object", chunk.Object),
			zap.Stringer("from", upd.Before),
			zap.Stringer("to", upd.After),
		)
	}
	return upd, nil
}

// Completeness returns the summary of id.
func (s *Store) Completeness(id types.ObjectID) (Completeness, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return Completeness{}, false
	}
	return s.completeness(r), true
}

// Level returns the render level of id.
func (s *Store) Level(id types.ObjectID) types.RenderLevel {
	c, _ := s.Completeness(id)
	return c.Level()
}

// Renderable reports whether id has enough detail to render at level.
func (s *Store) Renderable(id types.ObjectID, level types.RenderLevel) bool {
	return s.Level(id) >= level
}

// Chunks returns the raw chunks still held for id, oldest first.
func (s *Store) Chunks(id types.ObjectID) []types.DetailChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil
	}
	rst := make([]types.DetailChunk, 0, len(r.chunks))
	for _, c := range r.chunks {
		chunk := c.chunk
		chunk.Data = slices.Clone(c.chunk.Data)
		rst = append(rst, chunk)
	}
	return rst
}

// Chunk returns a single raw chunk if it is still held.
func (s *Store) Chunk(id types.ObjectID, category types.DetailCategory, chunkID types.ChunkID) (types.DetailChunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return types.DetailChunk{}, false
	}
	for _, c := range r.chunks {
		if c.chunk.Category == category && c.chunk.Chunk == chunkID {
			chunk := c.chunk
			chunk.Data = slices.Clone(c.chunk.Data)
			return chunk, true
		}
	}
	return types.DetailChunk{}, false
}

// Remove drops everything known about id.
func (s *Store) Remove(id types.ObjectID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	delete(s.records, id)
	return ok
}

// Objects returns ids with detail records in ascending order.
func (s *Store) Objects() []types.ObjectID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]types.ObjectID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Prune removes raw chunks received before now minus the configured age.
// Summaries are never removed. It returns the number of chunks removed.
func (s *Store) Prune(now time.Time) int {
	if s.cfg.MaxChunkAge <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.MaxChunkAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, r := range s.records {
		keep := r.chunks[:0]
		for _, c := range r.chunks {
			if c.received.Before(cutoff) {
				removed++
				continue
			}
			keep = append(keep, c)
		}
		clear(r.chunks[len(keep):])
		r.chunks = keep
	}
	return removed
}

// Summaries exports the summaries of every object ordered by id.
func (s *Store) Summaries() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rst := make([]Summary, 0, len(s.records))
	for id, r := range s.records {
		sum := Summary{Object: id, Accumulated: r.accumulated}
		for i, seen := range r.seen {
			for chunk := range seen {
				sum.Seen[i] = append(sum.Seen[i], chunk)
			}
			slices.Sort(sum.Seen[i])
		}
		rst = append(rst, sum)
	}
	slices.SortFunc(rst, func(a, b Summary) int { return int(a.Object) - int(b.Object) })
	return rst
}

// Restore merges a previously exported summary. Counters never decrease.
func (s *Store) Restore(sum Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[sum.Object]
	if !ok {
		if s.cfg.MaxObjects > 0 && len(s.records) >= s.cfg.MaxObjects {
			return ErrFull
		}
		r = newRecord()
		s.records[sum.Object] = r
	}
	for i := range r.accumulated {
		r.accumulated[i] = max(r.accumulated[i], sum.Accumulated[i])
		if s.saturated(r, types.DetailCategory(i)) {
			clear(r.seen[i])
			continue
		}
		for _, chunk := range sum.Seen[i] {
			r.seen[i][chunk] = struct{}{}
		}
	}
	return nil
}
