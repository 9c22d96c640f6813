package searcher

import (
	"context"

	"github.com/dshills/hybridrag/internal/storage"
	"github.com/dshills/hybridrag/pkg/types"
)

// CandidateFilter resolves which chunks a role may search
type CandidateFilter struct {
	store storage.Store
}

// NewCandidateFilter creates a filter over store
func NewCandidateFilter(store storage.Store) *CandidateFilter {
	return &CandidateFilter{store: store}
}

// Resolve returns the chunks of completed documents that role owns or was
// granted, limited to scope when scope is non-empty. An empty result is a
// DocumentsUnavailable error so that no search runs.
func (f *CandidateFilter) Resolve(ctx context.Context, role string, scope []string) (*storage.CandidateSet, error) {
	if role == "" {
		return nil, types.NewError(types.KindInvalidInput, nil, "role is required")
	}

	set, err := f.store.EligibleChunks(ctx, role, scope)
	if err != nil {
		return nil, types.NewError(types.KindInternal, err, "failed to resolve eligible documents")
	}
	if len(set.ChunkIDs) == 0 {
		return nil, types.NewError(types.KindDocumentsUnavailable, nil, "no documents are available for this role")
	}
	return set, nil
}
