package types

import "errors"

// Provenance describes which retrieval signals produced a result
type Provenance string

const (
	ProvenanceSemantic         Provenance = "semantic"
	ProvenanceKeyword          Provenance = "keyword"
	ProvenanceHybrid           Provenance = "hybrid"
	ProvenanceSemanticFallback Provenance = "semantic-fallback"
	ProvenanceKeywordFallback  Provenance = "keyword-fallback"
)

// SearchResult represents a single ranked chunk with its scores
type SearchResult struct {
	// Identification
	ChunkID    int64
	DocumentID string
	Filename   string
	ChunkIndex int
	Content    string

	// Per-signal scores (0 when the signal did not rank the chunk)
	SemanticScore float64
	KeywordScore  float64
	SemanticRank  int // 1-based, 0 when absent
	KeywordRank   int // 1-based, 0 when absent

	// Fusion
	RRFScore      float64 // Raw weighted reciprocal rank sum
	CombinedScore float64 // RRFScore normalized to [0, 1]

	Provenance Provenance
}

// Source identifies a chunk an answer was drawn from
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkID    int64   `json:"chunk_id"`
	Score      float64 `json:"score,omitempty"`
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == 0 {
		return ErrInvalidChunkID
	}

	if sr.CombinedScore < 0 || sr.CombinedScore > 1 {
		return ErrInvalidRelevanceScore
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	return nil
}

// Source returns the citation for this result
func (sr *SearchResult) Source() Source {
	return Source{
		DocumentID: sr.DocumentID,
		Filename:   sr.Filename,
		ChunkID:    sr.ChunkID,
		Score:      sr.CombinedScore,
	}
}

// Domain errors for type validation
var (
	ErrInvalidChunkID        = errors.New("invalid chunk ID")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrEmptyContent          = errors.New("content cannot be empty")
)
