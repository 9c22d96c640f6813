package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridrag/internal/cache"
	"github.com/dshills/hybridrag/internal/chunker"
	"github.com/dshills/hybridrag/internal/embedder"
	"github.com/dshills/hybridrag/internal/indexer"
	"github.com/dshills/hybridrag/internal/pipeline"
	"github.com/dshills/hybridrag/internal/searcher"
	"github.com/dshills/hybridrag/internal/storage"
	"github.com/dshills/hybridrag/internal/synthesizer"
	"github.com/dshills/hybridrag/pkg/types"
)

const handbook = `Employees accrue vacation at two days per month of service.

Unused vacation days carry over into the next calendar year.

Dental coverage starts on the first day of the month after hire.`

func setupServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(128, embedder.NewCache(100))
	require.NoError(t, err)

	idx, err := indexer.New(store, chunker.New(chunker.Config{MaxSize: 200}), emb, indexer.Config{})
	require.NoError(t, err)
	t.Cleanup(idx.Close)

	p, err := pipeline.New(pipeline.Dependencies{
		Embedder:    emb,
		Searcher:    searcher.NewSearcher(store, searcher.DefaultConfig()),
		Cache:       cache.New(store),
		Synthesizer: synthesizer.NewExtractive(1),
	}, pipeline.Config{})
	require.NoError(t, err)

	s, err := NewServer(Dependencies{Store: store, Indexer: idx, Pipeline: p})
	require.NoError(t, err)
	return s
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func ingestHandbook(t *testing.T, s *Server) {
	t.Helper()
	_, err := s.handleIngestDocument(context.Background(), callRequest("ingest_document", map[string]interface{}{
		"document_id": "handbook",
		"filename":    "handbook.pdf",
		"owner_role":  "hr",
		"visible_to":  []interface{}{"staff"},
		"text":        handbook,
	}))
	require.NoError(t, err)
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Dependencies{})
	assert.Error(t, err)
}

func TestServer_HasAllTools(t *testing.T) {
	s := setupServer(t)
	assert.NotNil(t, s.mcp)
	assert.NotNil(t, s.parser, "parser defaults when not provided")

	for _, tool := range []mcp.Tool{ingestDocumentTool(), queryDocumentsTool(), getStatusTool(), setVisibilityTool()} {
		assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
	}
	assert.Equal(t, []string{"question", "role"}, queryDocumentsTool().InputSchema.Required)
}

func TestIngestDocument_Text(t *testing.T) {
	s := setupServer(t)

	result, err := s.handleIngestDocument(context.Background(), callRequest("ingest_document", map[string]interface{}{
		"document_id": "handbook",
		"owner_role":  "hr",
		"text":        handbook,
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, "handbook", out["document_id"])
	assert.Equal(t, string(types.StatusCompleted), out["status"])
	assert.Equal(t, false, out["skipped"])
	assert.Greater(t, out["chunk_count"].(float64), float64(0))
}

func TestIngestDocument_Path(t *testing.T) {
	s := setupServer(t)
	path := filepath.Join(t.TempDir(), "q3-revenue.csv")
	require.NoError(t, os.WriteFile(path, []byte("region,revenue\nwest,1200\neast,900\n"), 0o600))

	result, err := s.handleIngestDocument(context.Background(), callRequest("ingest_document", map[string]interface{}{
		"owner_role": "finance",
		"path":       path,
	}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, "q3-revenue", out["document_id"])

	doc, err := s.store.GetDocument(context.Background(), "q3-revenue")
	require.NoError(t, err)
	assert.Equal(t, "q3-revenue.csv", doc.Filename)

	chunks, err := s.store.ListChunksByDocument(context.Background(), "q3-revenue")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Content, "region | revenue")
}

func TestIngestDocument_InvalidParams(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing owner", map[string]interface{}{"text": "x"}},
		{"neither text nor path", map[string]interface{}{"owner_role": "hr"}},
		{"both text and path", map[string]interface{}{"owner_role": "hr", "text": "x", "path": "/tmp/x.txt"}},
		{"relative path", map[string]interface{}{"owner_role": "hr", "path": "docs/x.txt"}},
		{"missing file", map[string]interface{}{"owner_role": "hr", "path": "/nonexistent/x.txt"}},
		{"whitespace text", map[string]interface{}{"owner_role": "hr", "text": "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleIngestDocument(ctx, callRequest("ingest_document", tt.args))
			requireMCPError(t, err, ErrorCodeInvalidParams)
		})
	}

	var req mcp.CallToolRequest
	req.Params.Arguments = "not an object"
	_, err := s.handleIngestDocument(ctx, req)
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestIngestDocument_UnreadableFileHidesCause(t *testing.T) {
	s := setupServer(t)
	dir := t.TempDir()
	ctx := context.Background()

	paths := []string{
		filepath.Join(dir, "missing.txt"),
		filepath.Join(dir, "payroll.bin"),
		filepath.Join(dir, "broken.pdf"),
	}
	require.NoError(t, os.WriteFile(paths[1], []byte{0xff, 0xfe, 0x00, 0x81}, 0o600))
	require.NoError(t, os.WriteFile(paths[2], []byte("not a pdf"), 0o600))

	for _, path := range paths {
		_, err := s.handleIngestDocument(ctx, callRequest("ingest_document", map[string]interface{}{
			"owner_role": "hr",
			"path":       path,
		}))
		mcpErr := requireMCPError(t, err, ErrorCodeInvalidParams)
		data, ok := mcpErr.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "unsupported or unreadable file", data["reason"])
		assert.NotContains(t, mcpErr.Error(), dir)
	}
}

func TestQueryDocuments(t *testing.T) {
	s := setupServer(t)
	ingestHandbook(t, s)

	result, err := s.handleQueryDocuments(context.Background(), callRequest("query_documents", map[string]interface{}{
		"question": "How many vacation days do employees accrue?",
		"role":     "staff",
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, string(pipeline.StatusAnswered), out["status"])
	assert.NotEmpty(t, out["request_id"])
	assert.Equal(t, false, out["cached"])
	require.NotEmpty(t, out["sources"])
	source := out["sources"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "handbook.pdf", source["filename"])

	// Same question again is served from the answer cache
	result, err = s.handleQueryDocuments(context.Background(), callRequest("query_documents", map[string]interface{}{
		"question": "How many vacation days do employees accrue?",
		"role":     "staff",
	}))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, result)["cached"])
}

func TestQueryDocuments_Errors(t *testing.T) {
	s := setupServer(t)
	ingestHandbook(t, s)
	ctx := context.Background()

	_, err := s.handleQueryDocuments(ctx, callRequest("query_documents", map[string]interface{}{"role": "staff"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleQueryDocuments(ctx, callRequest("query_documents", map[string]interface{}{"question": "vacation?"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleQueryDocuments(ctx, callRequest("query_documents", map[string]interface{}{
		"question": "vacation?",
		"role":     "contractor",
	}))
	mcpErr := requireMCPError(t, err, ErrorCodeDocumentsUnavailable)
	data := mcpErr.Data.(map[string]interface{})
	assert.Equal(t, types.KindDocumentsUnavailable, data["kind"])
	assert.Equal(t, false, data["retryable"])
}

func TestGetStatus(t *testing.T) {
	s := setupServer(t)
	ingestHandbook(t, s)

	result, err := s.handleGetStatus(context.Background(), callRequest("get_status", nil))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Contains(t, out["backend"], "sqlite")
	assert.Equal(t, float64(1), out["documents"].(map[string]interface{})["completed"])
	assert.NotContains(t, out, "document_list")

	stats := out["statistics"].(map[string]interface{})
	assert.Equal(t, stats["chunks_count"], stats["embeddings_count"])

	result, err = s.handleGetStatus(context.Background(), callRequest("get_status", map[string]interface{}{
		"include_documents": true,
	}))
	require.NoError(t, err)
	list := resultJSON(t, result)["document_list"].([]interface{})
	require.Len(t, list, 1)
	doc := list[0].(map[string]interface{})
	assert.Equal(t, "handbook", doc["document_id"])
	assert.Equal(t, []interface{}{"staff"}, doc["visible_to"])
}

func TestSetVisibility(t *testing.T) {
	s := setupServer(t)
	ingestHandbook(t, s)
	ctx := context.Background()

	_, err := s.handleSetVisibility(ctx, callRequest("set_visibility", map[string]interface{}{
		"document_id": "handbook",
		"roles":       []interface{}{"contractor"},
	}))
	require.NoError(t, err)

	result, err := s.handleQueryDocuments(ctx, callRequest("query_documents", map[string]interface{}{
		"question": "When does dental coverage start?",
		"role":     "contractor",
	}))
	require.NoError(t, err)
	assert.Equal(t, string(pipeline.StatusAnswered), resultJSON(t, result)["status"])

	_, err = s.handleQueryDocuments(ctx, callRequest("query_documents", map[string]interface{}{
		"question": "When does dental coverage start?",
		"role":     "staff",
	}))
	requireMCPError(t, err, ErrorCodeDocumentsUnavailable)

	_, err = s.handleSetVisibility(ctx, callRequest("set_visibility", map[string]interface{}{
		"document_id": "missing",
		"roles":       []interface{}{"staff"},
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSetVisibility(ctx, callRequest("set_visibility", map[string]interface{}{
		"document_id": "handbook",
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestToolError_HidesCause(t *testing.T) {
	s := setupServer(t)

	err := s.toolError("query_documents", types.NewError(types.KindEmbeddingFailed,
		errors.New("401 from provider: key sk-secret"), "embedding provider failed"))
	mcpErr := requireMCPError(t, err, ErrorCodeEmbeddingFailed)
	assert.NotContains(t, mcpErr.Error(), "sk-secret")
	assert.Equal(t, "embedding provider failed", mcpErr.Message)

	err = s.toolError("get_status", errors.New("disk on fire"))
	mcpErr = requireMCPError(t, err, ErrorCodeInternalError)
	assert.NotContains(t, mcpErr.Message, "disk on fire")
}

func TestGetStringSlice(t *testing.T) {
	args := map[string]interface{}{
		"mixed":   []interface{}{"a", 1, "b"},
		"strings": []string{"x"},
		"scalar":  "y",
	}
	assert.Equal(t, []string{"a", "b"}, getStringSlice(args, "mixed"))
	assert.Equal(t, []string{"x"}, getStringSlice(args, "strings"))
	assert.Nil(t, getStringSlice(args, "scalar"))
	assert.Nil(t, getStringSlice(args, "missing"))
}
