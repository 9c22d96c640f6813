package types

import (
	"errors"
	"time"
)

// DocumentStatus is the ingestion lifecycle state of a document
type DocumentStatus string

const (
	StatusProcessing  DocumentStatus = "processing"
	StatusChunksReady DocumentStatus = "chunks_ready"
	StatusCompleted   DocumentStatus = "completed"
	StatusFailed      DocumentStatus = "failed"
)

// Valid reports whether s is a known status
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusChunksReady, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Document represents an ingested file and its access metadata
type Document struct {
	// Identification
	ID       string
	Filename string

	// Access
	OwnerRole string
	VisibleTo map[string]bool

	// Lifecycle
	Status       DocumentStatus
	ContentHash  [32]byte
	ChunkCount   int
	ErrorMessage string

	// Timestamps
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VisibleFor reports whether the document may be read by role.
// Status is not considered.
func (d *Document) VisibleFor(role string) bool {
	if role == "" {
		return false
	}
	return d.OwnerRole == role || d.VisibleTo[role]
}

// Eligible reports whether the document can be searched by role
func (d *Document) Eligible(role string) bool {
	return d.Status == StatusCompleted && d.VisibleFor(role)
}

// Validate checks if the document is valid
func (d *Document) Validate() error {
	if d.ID == "" {
		return ErrMissingDocumentID
	}
	if d.OwnerRole == "" {
		return ErrMissingOwnerRole
	}
	if !d.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Roles returns the roles granted read access in addition to the owner
func (d *Document) Roles() []string {
	roles := make([]string, 0, len(d.VisibleTo))
	for role, ok := range d.VisibleTo {
		if ok {
			roles = append(roles, role)
		}
	}
	return roles
}

var (
	ErrMissingDocumentID = errors.New("document ID is required")
	ErrMissingOwnerRole  = errors.New("owner role is required")
	ErrInvalidStatus     = errors.New("invalid document status")
)
