package spatial

import (
	"sync"

	"github.com/meshsync/go-meshsync/common/types"
)

// Linear scans every entry on each query.
type Linear struct {
	mu      sync.RWMutex
	entries map[types.ObjectID]Entry
}

func NewLinear() *Linear {
	return &Linear{entries: map[types.ObjectID]Entry{}}
}

func (l *Linear) InsertOrUpdate(id types.ObjectID, center Point, radius float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[id] = newEntry(id, center, radius)
}

func (l *Linear) Remove(id types.ObjectID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[id]
	delete(l.entries, id)
	return ok
}

func (l *Linear) QueryBBox(min, max Point) []types.ObjectID {
	q := Box{Min: min, Max: max}
	if q.empty() {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var rst []types.ObjectID
	for id, e := range l.entries {
		if e.Box().Intersects(q) {
			rst = append(rst, id)
		}
	}
	return sortIDs(rst)
}

func (l *Linear) Entry(id types.ObjectID) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	return e, ok
}

func (l *Linear) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
