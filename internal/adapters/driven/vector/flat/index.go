// Package flat provides vector similarity search over a flat
// inner-product index with an atomic on-disk snapshot.
//
// The index is per-user. Space scoping is done with an auxiliary
// forward map rather than one index per space, so global search reuses
// the same structure. Deletes tombstone instead of mutating the
// payload; search post-filters tombstoned hits and Compact rebuilds
// once tombstones reach a quarter of the payload.
package flat

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const (
	// normEpsilon is the tolerance for the unit-norm precondition.
	normEpsilon = 1e-3

	// compactThreshold triggers a rebuild when tombstones reach this
	// share of the payload.
	compactThreshold = 0.25

	// minOverFetch is the smallest candidate pool for post-filtering.
	minOverFetch = 64
)

// entry maps an internal id to its item and space.
type entry struct {
	itemID  string
	spaceID string
}

// Index is a flat inner-product vector index.
//
// Locking: mu is a readers-writer lock over the in-memory state.
// Searches take the read side; Add, Delete and Compact take the write
// side. Persist copies the state under the read lock and performs the
// disk write under fileMu only, so searches proceed during the write.
// No other lock is ever acquired while holding mu.
type Index struct {
	mu     sync.RWMutex
	fileMu sync.Mutex

	dimension int
	path      string

	// vectors is the payload; the slice position is the internal id.
	// Positions are never reused and tombstoned positions keep their
	// vector until compaction.
	vectors    [][]float32
	forward    map[uint64]entry
	reverse    map[string]uint64
	nextID     uint64
	tombstones map[uint64]struct{}
}

// New creates an index backed by the snapshot file at path, loading
// the snapshot when one exists. A missing snapshot yields an empty
// index; a snapshot that fails its checksum is discarded.
func New(path string, dimension int) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("flat: path cannot be empty")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("flat: dimension must be positive")
	}

	idx := &Index{
		dimension:  dimension,
		path:       path,
		forward:    make(map[uint64]entry),
		reverse:    make(map[string]uint64),
		tombstones: make(map[uint64]struct{}),
	}

	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add inserts a unit vector for an item and returns its internal id.
func (idx *Index) Add(itemID string, vector []float32, spaceID string) (uint64, error) {
	if len(vector) != idx.dimension {
		return 0, fmt.Errorf("%w: got %d, index dimension %d", domain.ErrDimensionMismatch, len(vector), idx.dimension)
	}
	if n := norm(vector); math.Abs(n-1) > normEpsilon {
		return 0, fmt.Errorf("%w: norm %.6f", domain.ErrNotNormalized, n)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.reverse[itemID]; ok {
		return 0, fmt.Errorf("%w: item %s", domain.ErrDuplicate, itemID)
	}

	// Own a copy; the caller's slice must stay untouched.
	stored := make([]float32, len(vector))
	copy(stored, vector)

	id := idx.nextID
	idx.nextID++
	idx.vectors = append(idx.vectors, stored)
	idx.forward[id] = entry{itemID: itemID, spaceID: spaceID}
	idx.reverse[itemID] = id
	return id, nil
}

// Delete removes an item's vector, tombstoning its payload position.
// Returns false when the item is unknown.
func (idx *Index) Delete(itemID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	id, ok := idx.reverse[itemID]
	if !ok {
		return false
	}
	delete(idx.reverse, itemID)
	delete(idx.forward, id)
	idx.tombstones[id] = struct{}{}
	return true
}

// Search returns up to k hits within a space.
func (idx *Index) Search(query []float32, spaceID string, k int) ([]driven.VectorHit, error) {
	return idx.search(query, k, func(e entry) bool { return e.spaceID == spaceID })
}

// GlobalSearch returns up to k hits across all spaces.
func (idx *Index) GlobalSearch(query []float32, k int) ([]driven.VectorHit, error) {
	return idx.search(query, k, func(entry) bool { return true })
}

func (idx *Index) search(query []float32, k int, keep func(entry) bool) ([]driven.VectorHit, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: got %d, index dimension %d", domain.ErrDimensionMismatch, len(query), idx.dimension)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", domain.ErrInvalidInput)
	}

	overFetch := 4 * k
	if overFetch < minOverFetch {
		overFetch = minOverFetch
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// Score the whole payload, tombstones included; filtering happens
	// on the candidate list below.
	type scored struct {
		id    uint64
		score float64
	}
	candidates := make([]scored, 0, len(idx.vectors))
	for id, vec := range idx.vectors {
		candidates = append(candidates, scored{id: uint64(id), score: dot(query, vec)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > overFetch {
		candidates = candidates[:overFetch]
	}

	hits := make([]driven.VectorHit, 0, k)
	for _, c := range candidates {
		if _, dead := idx.tombstones[c.id]; dead {
			continue
		}
		e, ok := idx.forward[c.id]
		if !ok || !keep(e) {
			continue
		}
		hits = append(hits, driven.VectorHit{ItemID: e.itemID, SpaceID: e.spaceID, Score: c.score})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Compact rebuilds the payload from live entries when tombstones
// reach the policy threshold. Internal ids are reassigned densely in
// ascending old-id order. The rebuilt state is persisted before
// Compact reports success.
func (idx *Index) Compact() (bool, error) {
	idx.mu.Lock()

	total := len(idx.forward) + len(idx.tombstones)
	if total == 0 || float64(len(idx.tombstones))/float64(total) < compactThreshold {
		idx.mu.Unlock()
		return false, nil
	}

	liveIDs := make([]uint64, 0, len(idx.forward))
	for id := range idx.forward {
		liveIDs = append(liveIDs, id)
	}
	sort.Slice(liveIDs, func(i, j int) bool { return liveIDs[i] < liveIDs[j] })

	vectors := make([][]float32, 0, len(liveIDs))
	forward := make(map[uint64]entry, len(liveIDs))
	reverse := make(map[string]uint64, len(liveIDs))
	for newID, oldID := range liveIDs {
		e := idx.forward[oldID]
		vectors = append(vectors, idx.vectors[oldID])
		forward[uint64(newID)] = e
		reverse[e.itemID] = uint64(newID)
	}

	idx.vectors = vectors
	idx.forward = forward
	idx.reverse = reverse
	idx.nextID = uint64(len(vectors))
	idx.tombstones = make(map[uint64]struct{})
	idx.mu.Unlock()

	if err := idx.Persist(); err != nil {
		return false, fmt.Errorf("persist after compact: %w", err)
	}
	return true, nil
}

// Refs returns a copy of the live item-id to internal-id mapping.
func (idx *Index) Refs() map[string]uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	refs := make(map[string]uint64, len(idx.reverse))
	for itemID, id := range idx.reverse {
		refs[itemID] = id
	}
	return refs
}

// Stats reports live and tombstoned vector counts.
func (idx *Index) Stats() driven.IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return driven.IndexStats{
		Live:       len(idx.forward),
		Tombstones: len(idx.tombstones),
		Dimension:  idx.dimension,
	}
}

// dot is the inner product of two equal-length vectors.
func dot(a []float32, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// norm is the L2 norm.
func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
