package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/hybridrag/internal/indexer"
	"github.com/dshills/hybridrag/internal/pipeline"
	"github.com/dshills/hybridrag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentsUnavailable = -32001 // Role has no completed documents to search
	ErrorCodeEmbeddingFailed      = -32002 // Embedding provider failed or no usable embeddings
	ErrorCodeNoRelevantContent    = -32003 // Nothing relevant was found
	ErrorCodeSynthesisFailed      = -32004 // Answer generation failed
	ErrorCodeCacheWriteFailed     = -32005 // Answer cache could not be written
	ErrorCodeIngestionFailed      = -32006 // Document could not be ingested
)

// errorCodes maps typed error kinds to MCP error codes
var errorCodes = map[types.ErrorKind]int{
	types.KindInvalidInput:         ErrorCodeInvalidParams,
	types.KindDocumentsUnavailable: ErrorCodeDocumentsUnavailable,
	types.KindEmbeddingFailed:      ErrorCodeEmbeddingFailed,
	types.KindNoRelevantContent:    ErrorCodeNoRelevantContent,
	types.KindSynthesisFailed:      ErrorCodeSynthesisFailed,
	types.KindCacheWriteFailed:     ErrorCodeCacheWriteFailed,
	types.KindIngestionFailed:      ErrorCodeIngestionFailed,
	types.KindInternal:             ErrorCodeInternalError,
}

// handleIngestDocument handles the ingest_document tool invocation
func (s *Server) handleIngestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	ownerRole := strings.TrimSpace(getStringDefault(args, "owner_role", ""))
	if ownerRole == "" {
		return nil, missingParam("owner_role")
	}

	text := getStringDefault(args, "text", "")
	path := getStringDefault(args, "path", "")
	if (text == "") == (path == "") {
		return nil, newMCPError(ErrorCodeInvalidParams, "exactly one of text or path is required", map[string]interface{}{
			"param":  "text",
			"reason": "provide either text or path",
		})
	}

	req := indexer.IngestRequest{
		DocumentID: getStringDefault(args, "document_id", ""),
		Filename:   getStringDefault(args, "filename", ""),
		OwnerRole:  ownerRole,
		VisibleTo:  getStringSlice(args, "visible_to"),
		Text:       text,
		Tabular:    getBoolDefault(args, "tabular", false),
	}

	if path != "" {
		if !filepath.IsAbs(path) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
				"param":  "path",
				"reason": "path must be absolute",
			})
		}
		parsed, err := s.parser.ParseFile(path)
		if err != nil {
			s.logger.Warn("text extraction failed", "path", path, "error", err)
			return nil, newMCPError(ErrorCodeInvalidParams, "could not extract text from file", map[string]interface{}{
				"param":  "path",
				"reason": "unsupported or unreadable file",
			})
		}
		req.Text = parsed.Text
		req.Tabular = parsed.Tabular
		if req.Filename == "" {
			req.Filename = filepath.Base(path)
		}
		if req.DocumentID == "" {
			req.DocumentID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
	}

	result, err := s.indexer.Ingest(ctx, req)
	if err != nil {
		return nil, s.toolError("ingest_document", err)
	}

	response := map[string]interface{}{
		"document_id": result.DocumentID,
		"status":      result.Status,
		"chunk_count": result.ChunkCount,
		"embedded":    result.Embedded,
		"skipped":     result.Skipped,
		"duration_ms": result.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleQueryDocuments handles the query_documents tool invocation
func (s *Server) handleQueryDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	question := getStringDefault(args, "question", "")
	if strings.TrimSpace(question) == "" {
		return nil, missingParam("question")
	}
	role := getStringDefault(args, "role", "")
	if strings.TrimSpace(role) == "" {
		return nil, missingParam("role")
	}

	resp, err := s.pipeline.Query(ctx, pipeline.QueryRequest{
		Question:      question,
		Role:          role,
		DocumentScope: getStringSlice(args, "document_ids"),
	})
	if err != nil {
		return nil, s.toolError("query_documents", err)
	}

	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode response", nil)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	status, err := s.store.GetStatus(ctx)
	if err != nil {
		return nil, s.toolError("get_status", types.NewError(types.KindInternal, err, "failed to get status"))
	}

	documents := make(map[string]int, len(status.Documents))
	for st, n := range status.Documents {
		documents[string(st)] = n
	}

	response := map[string]interface{}{
		"backend":   status.Backend,
		"documents": documents,
		"statistics": map[string]interface{}{
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"cache_entries":    status.CacheEntries,
			"cache_hits":       status.CacheHits,
			"size_mb":          fmt.Sprintf("%.2f", status.SizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
		},
	}

	if getBoolDefault(args, "include_documents", false) {
		docs, err := s.store.ListDocuments(ctx)
		if err != nil {
			return nil, s.toolError("get_status", types.NewError(types.KindInternal, err, "failed to list documents"))
		}
		response["document_list"] = documentSummaries(docs)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSetVisibility handles the set_visibility tool invocation
func (s *Server) handleSetVisibility(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID := getStringDefault(args, "document_id", "")
	if strings.TrimSpace(documentID) == "" {
		return nil, missingParam("document_id")
	}
	if _, ok := args["roles"]; !ok {
		return nil, missingParam("roles")
	}
	roles := getStringSlice(args, "roles")

	if err := s.indexer.SetVisibility(ctx, documentID, roles); err != nil {
		return nil, s.toolError("set_visibility", err)
	}

	response := map[string]interface{}{
		"document_id": documentID,
		"visible_to":  roles,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// toolError logs err with its cause and converts it to an MCP error that
// carries only the sanitized message
func (s *Server) toolError(tool string, err error) error {
	kind := types.KindOf(err)
	cause := err
	retryable := false
	message := string(kind)
	var typed *types.Error
	if errors.As(err, &typed) {
		message = typed.Error()
		retryable = typed.Retryable
		if typed.Err != nil {
			cause = typed.Err
		}
	}
	s.logger.Error("tool failed", "tool", tool, "kind", kind, "error", cause)

	code, ok := errorCodes[kind]
	if !ok {
		code = ErrorCodeInternalError
	}
	return newMCPError(code, message, map[string]interface{}{
		"kind":      kind,
		"retryable": retryable,
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func missingParam(name string) error {
	return newMCPError(ErrorCodeInvalidParams, name+" parameter is required", map[string]interface{}{
		"param":  name,
		"reason": "missing or empty",
	})
}

func documentSummaries(docs []*types.Document) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(docs))
	for _, d := range docs {
		roles := d.Roles()
		sort.Strings(roles)
		entry := map[string]interface{}{
			"document_id": d.ID,
			"filename":    d.Filename,
			"owner_role":  d.OwnerRole,
			"visible_to":  roles,
			"status":      d.Status,
			"chunk_count": d.ChunkCount,
			"updated_at":  d.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if d.ErrorMessage != "" {
			entry["error"] = d.ErrorMessage
		}
		out = append(out, entry)
	}
	return out
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-string items
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
