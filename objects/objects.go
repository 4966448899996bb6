// Package objects holds the live object map of a node.
//
// Objects are replaced whole on every newer observation of the same id
// (last write wins). The map is bounded: once full, objects with new ids are
// rejected until something is removed.
package objects

import (
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/meshsync/go-meshsync/common/types"
)

// DefaultCapacity is the default number of live objects a node keeps.
const DefaultCapacity = 4096

// ErrFull is returned when a new object does not fit the store.
var ErrFull = errors.New("object store full")

// Change describes what Put did.
type Change uint8

const (
	Unchanged Change = iota
	Created
	Updated
)

// Store is a bounded map of live objects keyed by id.
type Store struct {
	capacity int

	mu      sync.RWMutex
	objects map[types.ObjectID]types.BuildingObject
	// ids is kept sorted for round-robin iteration.
	ids []types.ObjectID
}

// New creates a store holding at most capacity objects.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		objects:  make(map[types.ObjectID]types.BuildingObject),
	}
}

// Put stores obj, replacing any object with the same id.
func (s *Store) Put(obj types.BuildingObject) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.objects[obj.ID]
	if ok {
		if current == obj {
			return Unchanged, nil
		}
		s.objects[obj.ID] = obj
		return Updated, nil
	}
	if len(s.objects) >= s.capacity {
		return Unchanged, ErrFull
	}
	s.objects[obj.ID] = obj
	i, _ := slices.BinarySearch(s.ids, obj.ID)
	s.ids = slices.Insert(s.ids, i, obj.ID)
	return Created, nil
}

// Get returns the object with id.
func (s *Store) Get(id types.ObjectID) (types.BuildingObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	return obj, ok
}

// Remove deletes the object with id and reports whether it existed.
func (s *Store) Remove(id types.ObjectID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return false
	}
	delete(s.objects, id)
	if i, found := slices.BinarySearch(s.ids, id); found {
		s.ids = slices.Delete(s.ids, i, i+1)
	}
	return true
}

// Len returns the number of live objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// After returns up to n objects with ids strictly greater than id, wrapping
// around to the smallest ids. No object is returned twice.
func (s *Store) After(id types.ObjectID, n int) []types.BuildingObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.ids) {
		n = len(s.ids)
	}
	if n <= 0 {
		return nil
	}
	start := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] > id })
	rst := make([]types.BuildingObject, 0, n)
	for i := 0; i < n; i++ {
		rst = append(rst, s.objects[s.ids[(start+i)%len(s.ids)]])
	}
	return rst
}

// All returns every live object ordered by id.
func (s *Store) All() []types.BuildingObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rst := make([]types.BuildingObject, 0, len(s.ids))
	for _, id := range s.ids {
		rst = append(rst, s.objects[id])
	}
	return rst
}

// IterateAll calls fn for every object in id order until fn returns false.
// fn must not call back into the store.
func (s *Store) IterateAll(fn func(types.BuildingObject) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.ids {
		if !fn(s.objects[id]) {
			return
		}
	}
}
