package driven

// VectorIndex maintains a persistent per-user similarity index of
// item vectors with per-vector space metadata for scoped search.
//
// Concurrency contract: many concurrent searchers; at most one
// mutator (Add/Delete/Compact) at a time; a mutator excludes
// searchers for its critical section. Persist copies the state
// alongside searchers and writes the snapshot without excluding
// them; concurrent Persist calls are serialised. Add and Search do not suspend,
// so callers must not hold a lock of their own across them together
// with embedding or LLM calls.
type VectorIndex interface {
	// Add inserts a unit vector for an item and returns the assigned
	// internal id. Fails with domain.ErrDuplicate,
	// domain.ErrDimensionMismatch, or domain.ErrNotNormalized;
	// failure leaves the index unchanged.
	Add(itemID string, vector []float32, spaceID string) (uint64, error)

	// Delete removes an item's vector. Returns false when the item is
	// unknown; that is informational, not an error. Deleting twice is
	// idempotent.
	Delete(itemID string) bool

	// Search returns up to k hits within a space, score-descending,
	// ties broken by lower internal id. Scores are inner products on
	// unit vectors, in [-1, 1]. Never pads.
	Search(query []float32, spaceID string, k int) ([]VectorHit, error)

	// GlobalSearch is Search without the space filter.
	GlobalSearch(query []float32, k int) ([]VectorHit, error)

	// Persist writes an atomic snapshot to disk.
	Persist() error

	// Compact rebuilds the index without tombstones when their share
	// reaches the policy threshold, persisting before returning.
	// Returns true when a rebuild happened.
	Compact() (bool, error)

	// Refs returns a copy of the live item-id to internal-id mapping.
	// Callers resync stored vector refs from it after a compaction
	// reassigns internal ids.
	Refs() map[string]uint64

	// Stats reports live and tombstoned vector counts.
	Stats() IndexStats
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ItemID is the matched item.
	ItemID string

	// SpaceID is the space recorded for the vector.
	SpaceID string

	// Score is the inner-product similarity.
	Score float64
}

// IndexStats reports the index occupancy.
type IndexStats struct {
	// Live is the number of searchable vectors.
	Live int

	// Tombstones is the number of retired internal ids whose vectors
	// still reside in the payload.
	Tombstones int

	// Dimension is the configured vector dimension.
	Dimension int
}
