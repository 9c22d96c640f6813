package types

import (
	"crypto/sha256"
	"errors"
)

// Chunk represents a bounded section of a document's text used for search
type Chunk struct {
	// Identification
	ID         int64
	DocumentID string
	ChunkIndex int // 0-based position within the document

	// Content
	Content     string
	ContentHash [32]byte // SHA-256 hash for deduplication
	TokenCount  int
}

// Validate checks if the chunk is valid
func (c *Chunk) Validate() error {
	if c.DocumentID == "" {
		return ErrMissingDocumentID
	}

	if c.Content == "" {
		return ErrEmptyContent
	}

	if c.ChunkIndex < 0 {
		return ErrInvalidChunkIndex
	}

	return nil
}

// ComputeHash calculates and sets the SHA-256 hash of the chunk content
func (c *Chunk) ComputeHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

var ErrInvalidChunkIndex = errors.New("chunk index must be >= 0")
