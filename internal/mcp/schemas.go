package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ingestDocumentTool returns the tool definition for ingest_document
func ingestDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_document",
		Description: "Ingest a document so it can be searched by its owner role and the roles it is shared with",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Stable document identifier; re-ingesting an id replaces its content. Generated when omitted",
				},
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Display name used when citing sources (defaults to the file name or document id)",
				},
				"owner_role": map[string]interface{}{
					"type":        "string",
					"description": "Role that owns the document and can always read it",
				},
				"visible_to": map[string]interface{}{
					"type":        "array",
					"description": "Additional roles allowed to read the document",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Extracted document text. Provide either text or path",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a .pdf, .csv, .tsv or text file to extract and ingest",
				},
				"tabular": map[string]interface{}{
					"type":        "boolean",
					"description": "Treat text as tabular rows ('Sheet: <name>' lines start sheets, the next line is the header)",
					"default":     false,
				},
			},
			Required: []string{"owner_role"},
		},
	}
}

// queryDocumentsTool returns the tool definition for query_documents
func queryDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_documents",
		Description: "Answer a question from the documents visible to a role, citing the source documents",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Natural language question; multi-part questions are answered part by part",
				},
				"role": map[string]interface{}{
					"type":        "string",
					"description": "Role the question is asked on behalf of",
				},
				"document_ids": map[string]interface{}{
					"type":        "array",
					"description": "Optional subset of documents to search",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"question", "role"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report document, chunk, embedding and answer cache statistics",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"include_documents": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, list every document with its lifecycle status",
					"default":     false,
				},
			},
		},
	}
}

// setVisibilityTool returns the tool definition for set_visibility
func setVisibilityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "set_visibility",
		Description: "Replace the roles, besides the owner, that may read a document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Document to update",
				},
				"roles": map[string]interface{}{
					"type":        "array",
					"description": "Roles granted read access; an empty list restricts the document to its owner",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"document_id", "roles"},
		},
	}
}
