package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/docrag/pkg/types"
)

// recordColumns is the column list scanned by scanResult
const recordColumns = "id, text, source, file_path, page, chunk_index, total_chunks, char_count"

// vectorFunctionsLoaded reports whether vec_distance_cosine can be called on q
func vectorFunctionsLoaded(ctx context.Context, q querier) bool {
	blob := serializeVector([]float32{1, 0})
	var distance float64
	return q.QueryRowContext(ctx, "SELECT vec_distance_cosine(?, ?)", blob, blob).Scan(&distance) == nil
}

// searchVector returns the topK nearest records by cosine distance
func searchVector(ctx context.Context, q querier, vectorSQL bool, collection string, queryVector []float32, topK int, terms []filterTerm) ([]types.SearchResult, error) {
	// Use SQL-side distance when sqlite-vec is registered
	if vectorSQL {
		return searchVectorOptimized(ctx, q, collection, queryVector, topK, terms)
	}
	// Fall back to Go-based computation
	return searchVectorFallback(ctx, q, collection, queryVector, topK, terms)
}

// searchVectorOptimized uses the sqlite-vec extension to compute distances and rank in SQL
func searchVectorOptimized(ctx context.Context, q querier, collection string, queryVector []float32, topK int, terms []filterTerm) ([]types.SearchResult, error) {
	query := `
		SELECT ` + recordColumns + `, vec_distance_cosine(vector, ?) AS distance
		FROM records
		WHERE collection = ? AND dimension = ?
	`
	args := []interface{}{serializeVector(queryVector), collection, len(queryVector)}
	query, args = applyFilterTerms(query, args, terms)
	query += " ORDER BY distance ASC, id ASC LIMIT ?"
	args = append(args, topK)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.SearchResult, 0, topK)
	for rows.Next() {
		var distance float64
		result, err := scanResult(rows, &distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		result.Distance = &distance
		results = append(results, result)
	}

	return results, rows.Err()
}

// searchVectorFallback loads candidate vectors and ranks them in Go
func searchVectorFallback(ctx context.Context, q querier, collection string, queryVector []float32, topK int, terms []filterTerm) ([]types.SearchResult, error) {
	query := `
		SELECT ` + recordColumns + `, vector
		FROM records
		WHERE collection = ? AND dimension = ?
	`
	args := []interface{}{collection, len(queryVector)}
	query, args = applyFilterTerms(query, args, terms)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeDistances(rows, queryVector)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	return buildResults(candidates, topK), nil
}

// applyFilterTerms appends exact-match conditions. Field names come from the
// validated metadata field list and map one-to-one onto column names.
func applyFilterTerms(query string, args []interface{}, terms []filterTerm) (string, []interface{}) {
	if len(terms) == 0 {
		return query, args
	}

	conditions := make([]string, 0, len(terms))
	for _, t := range terms {
		conditions = append(conditions, t.field+" = ?")
		if t.isText {
			args = append(args, t.str)
		} else {
			args = append(args, t.num)
		}
	}
	return query + " AND " + strings.Join(conditions, " AND "), args
}

// scanResult reads recordColumns followed by one extra destination
func scanResult(rows *sql.Rows, extra interface{}) (types.SearchResult, error) {
	var r types.SearchResult
	err := rows.Scan(&r.ID, &r.Text,
		&r.Metadata.Source, &r.Metadata.FilePath, &r.Metadata.Page,
		&r.Metadata.ChunkIndex, &r.Metadata.TotalChunks, &r.Metadata.CharCount,
		extra)
	return r, err
}

// candidate is a scanned record with its distance to the query
type candidate struct {
	result   types.SearchResult
	distance float64
}

// computeDistances scans rows and computes cosine distance for each
func computeDistances(rows *sql.Rows, queryVector []float32) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var blob []byte
		result, err := scanResult(rows, &blob)
		if err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		candidates = append(candidates, candidate{
			result:   result,
			distance: cosineDistance(queryVector, vector),
		})
	}

	return candidates, rows.Err()
}

// buildResults truncates sorted candidates to topK and attaches distances
func buildResults(candidates []candidate, topK int) []types.SearchResult {
	if topK > len(candidates) {
		topK = len(candidates)
	}

	results := make([]types.SearchResult, topK)
	for i := 0; i < topK; i++ {
		d := candidates[i].distance
		results[i] = candidates[i].result
		results[i].Distance = &d
	}
	return results
}

// sortCandidates orders by distance ascending, breaking ties by id
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].result.ID < candidates[j].result.ID
	})
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

// cosineDistance is 1 - cosine similarity, in [0, 2]
func cosineDistance(a, b []float32) float64 {
	return 1 - cosineSimilarity(a, b)
}

// CosineDistance is the exported form of the distance used by every store
func CosineDistance(a, b []float32) float64 {
	return cosineDistance(a, b)
}
