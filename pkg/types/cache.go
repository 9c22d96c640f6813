package types

import "time"

// CacheEntry is a previously generated answer keyed by question and role
type CacheEntry struct {
	ID        int64
	Question  string
	Embedding []float32
	Answer    string
	Sources   []Source
	Role      string
	HitCount  int64
	CreatedAt time.Time
	LastHitAt time.Time

	// Similarity is set on lookup results only
	Similarity float64
}
