// Package mcp implements the Model Context Protocol (MCP) server for hybridrag.
//
// The MCP server exposes four tools to assistants:
//   - ingest_document: Ingest document text or a file for a role
//   - query_documents: Answer a question from the documents a role may read
//   - get_status: Report document, chunk, embedding and cache statistics
//   - set_visibility: Change which roles may read a document
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only; logs go to stderr.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	hybridrag serve
//
// # Tool: ingest_document
//
//	Request:
//	{
//	  "name": "ingest_document",
//	  "arguments": {
//	    "document_id": "handbook",
//	    "owner_role": "hr",
//	    "visible_to": ["staff"],
//	    "path": "/data/handbook.pdf"
//	  }
//	}
//
//	Response:
//	{
//	  "document_id": "handbook",
//	  "status": "completed",
//	  "chunk_count": 42,
//	  "embedded": 42,
//	  "skipped": false,
//	  "duration_ms": 812
//	}
//
// Either text or path must be given. Files are extracted by extension:
// .pdf, .csv and .tsv, anything else as UTF-8 text.
//
// # Tool: query_documents
//
//	Request:
//	{
//	  "name": "query_documents",
//	  "arguments": {
//	    "question": "How many vacation days do I get, and when does dental start?",
//	    "role": "staff"
//	  }
//	}
//
//	Response:
//	{
//	  "request_id": "7d1c...",
//	  "answer": "...",
//	  "sources": [{"document_id": "handbook", "filename": "handbook.pdf", "chunk_id": 3}],
//	  "cached": false,
//	  "status": "answered",
//	  "fragments": ["How many vacation days do I get", "when does dental start?"]
//	}
//
// A question with nothing relevant is not an error: status is
// "no_relevant_content" and the answer says so.
//
// # Error Handling
//
// Failures carry a typed kind mapped to an error code, with the kind and a
// retryable flag in the error data:
//
//	-32602: invalid_input
//	-32001: documents_unavailable
//	-32002: embedding_failed
//	-32004: synthesis_failed
//	-32006: ingestion_failed
//	-32603: internal
//
// Error messages never include provider responses or credentials; the
// underlying cause is logged.
package mcp
