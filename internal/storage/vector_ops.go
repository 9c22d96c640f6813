package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, db *sql.DB, q VectorQuery) ([]VectorResult, VectorStats, error) {
	stats, err := vectorStats(ctx, db, q)
	if err != nil {
		return nil, stats, err
	}
	if stats.Usable() == 0 || q.Limit <= 0 {
		return []VectorResult{}, stats, nil
	}

	var results []VectorResult
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		results, err = searchVectorOptimized(ctx, db, q)
	} else {
		// Fall back to Go-based computation for purego builds
		results, err = searchVectorFallback(ctx, db, q)
	}
	return results, stats, err
}

// vectorStats counts scoped chunks, embedded chunks and dimension mismatches
func vectorStats(ctx context.Context, db *sql.DB, q VectorQuery) (VectorStats, error) {
	var stats VectorStats
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(e.id),
			COALESCE(SUM(CASE WHEN e.id IS NOT NULL AND e.dimension != ? THEN 1 ELSE 0 END), 0)
		FROM chunks c
		LEFT JOIN embeddings e ON e.chunk_id = c.id
		WHERE c.document_id IN (SELECT value FROM json_each(?))
	`, len(q.Vector), jsonList(q.DocumentIDs)).Scan(&stats.Chunks, &stats.Embedded, &stats.Mismatched)
	if err != nil {
		return stats, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return stats, nil
}

// searchVectorOptimized uses sqlite-vec extension for SQL-based vector similarity search
func searchVectorOptimized(ctx context.Context, db *sql.DB, q VectorQuery) ([]VectorResult, error) {
	queryVectorBlob := serializeVector(q.Vector)

	// vec_distance_cosine returns distance (lower is better); convert to similarity
	query := `
		SELECT chunk_id, similarity FROM (
			SELECT
				c.id AS chunk_id,
				1.0 - vec_distance_cosine(e.vector, ?) AS similarity
			FROM chunks c
			INNER JOIN embeddings e ON c.id = e.chunk_id
			WHERE c.document_id IN (SELECT value FROM json_each(?))
			AND e.dimension = ?
		)
		WHERE similarity >= ?
		ORDER BY similarity DESC, chunk_id ASC
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query,
		queryVectorBlob, jsonList(q.DocumentIDs), len(q.Vector), q.MinSimilarity, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, q.Limit)
	for rows.Next() {
		var result VectorResult
		if err := rows.Scan(&result.ChunkID, &result.SimilarityScore); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// searchVectorFallback performs vector search using Go-based cosine similarity computation.
// This is used when sqlite-vec extension is not available (purego builds).
func searchVectorFallback(ctx context.Context, db *sql.DB, q VectorQuery) ([]VectorResult, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.id, e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE c.document_id IN (SELECT value FROM json_each(?))
	`, jsonList(q.DocumentIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, q.Vector, q.MinSimilarity)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	return buildVectorResults(candidates, q.Limit), nil
}

// searchText performs BM25 full-text search using FTS5
func searchText(ctx context.Context, db *sql.DB, q TextQuery) ([]TextResult, error) {
	match := buildFTSQuery(q.Text)
	if match == "" || q.Limit <= 0 {
		return []TextResult{}, nil
	}

	sqlQuery := `
		SELECT
			c.id AS chunk_id,
			bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON c.id = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		AND c.document_id IN (SELECT value FROM json_each(?))
		ORDER BY score ASC, c.id ASC
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, sqlQuery, match, jsonList(q.DocumentIDs), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTextResults(rows)
}

// Helpers

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32, minSimilarity float64) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var chunkID int64
		var vectorBlob []byte
		if err := rows.Scan(&chunkID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		similarity := cosineSimilarity(queryVector, vector)
		if similarity < minSimilarity {
			continue
		}

		candidates = append(candidates, candidate{chunkID: chunkID, score: similarity})
	}

	return candidates, rows.Err()
}

// buildVectorResults creates VectorResult slice from candidates
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			ChunkID:         candidates[i].chunkID,
			SimilarityScore: candidates[i].score,
		}
	}
	return results
}

// collectTextResults processes text search results and normalizes scores
func collectTextResults(rows *sql.Rows) ([]TextResult, error) {
	results := make([]TextResult, 0)

	for rows.Next() {
		var chunkID int64
		var raw float64
		if err := rows.Scan(&chunkID, &raw); err != nil {
			return nil, err
		}
		results = append(results, TextResult{ChunkID: chunkID, BM25Score: NormalizeBM25(raw)})
	}

	return results, rows.Err()
}

// NormalizeBM25 maps an FTS5 bm25() value (negative, lower is better) onto
// [0, 1) with higher meaning more relevant.
func NormalizeBM25(raw float64) float64 {
	r := math.Max(-raw, 0)
	return r / (1 + r)
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a chunk with its similarity score
type candidate struct {
	chunkID int64
	score   float64
}

// sortCandidates sorts candidates by score descending, ties by chunk id ascending
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})
}

// QueryTerms splits text into lowercase letter/digit terms, deduplicated in
// order of first appearance.
func QueryTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// buildFTSQuery turns free text into an FTS5 expression that ORs every term.
// Each term is quoted, so operators and syntax characters in user input are
// matched literally.
func buildFTSQuery(text string) string {
	terms := QueryTerms(text)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for other packages ranking vectors in Go
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
