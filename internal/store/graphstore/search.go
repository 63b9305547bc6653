package graphstore

import (
	"context"
	"strings"

	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/faults"
)

// VectorQuery runs a k-NN search against the native vector index. When the
// index was never created, or the server rejects the procedure call, the
// caller gets an INDEX_UNAVAILABLE fault and is expected to fall back to a
// manual scan over SampleChunks.
func (s *Store) VectorQuery(ctx context.Context, vector []float32, k int) ([]docmodel.QueryResult, error) {
	if !s.hasVectorIndex() {
		return nil, faults.Newf(faults.KindIndexUnavailable,
			"vector index %s is not available on this server", s.indexName)
	}

	records, err := s.read(ctx, `
		CALL db.index.vector.queryNodes($indexName, $k, $vector)
		YIELD node, score
		MATCH (d:Document)-[:HAS_CHUNK]->(node)
		RETURN node.id AS chunkId,
		       node.content AS chunkText,
		       d.id AS documentId,
		       d.metadataJson AS documentMetadata,
		       score AS score
		ORDER BY score DESC`,
		map[string]any{"indexName": s.indexName, "k": k, "vector": vector})
	if err != nil {
		if isMissingIndex(err) {
			s.setIndexAvailable(false)
			return nil, faults.Newf(faults.KindIndexUnavailable,
				"vector index %s disappeared: %v", s.indexName, err)
		}
		return nil, faults.New(faults.KindStoreConnectivity, "vector query failed", err)
	}

	results := make([]docmodel.QueryResult, 0, len(records))
	for _, record := range records {
		results = append(results, docmodel.QueryResult{
			ChunkId:          stringValue(record, "chunkId"),
			ChunkText:        stringValue(record, "chunkText"),
			DocumentId:       stringValue(record, "documentId"),
			DocumentMetadata: unmarshalMetadata(stringValue(record, "documentMetadata")),
			Score:            floatValue(record, "score"),
		})
	}
	return results, nil
}

// SampleChunks returns up to limit chunks with their stored embeddings, for
// brute-force similarity scans when the vector index is missing.
func (s *Store) SampleChunks(ctx context.Context, limit int) ([]docmodel.Chunk, error) {
	records, err := s.read(ctx, `
		MATCH (c:Chunk)
		WHERE c.embedding IS NOT NULL
		RETURN c.id AS id,
		       c.documentId AS documentId,
		       c.content AS content,
		       c.chunkIndex AS chunkIndex,
		       c.size AS size,
		       c.embedding AS embedding,
		       c.metadataJson AS metadataJson
		LIMIT $limit`,
		map[string]any{"limit": limit})
	if err != nil {
		return nil, faults.New(faults.KindStoreConnectivity, "sampling chunks failed", err)
	}

	chunks := make([]docmodel.Chunk, 0, len(records))
	for _, record := range records {
		chunks = append(chunks, docmodel.Chunk{
			Id:         stringValue(record, "id"),
			DocumentId: stringValue(record, "documentId"),
			Text:       stringValue(record, "content"),
			Index:      intValue(record, "chunkIndex"),
			Size:       intValue(record, "size"),
			Embedding:  vectorValue(record, "embedding"),
			Metadata:   unmarshalMetadata(stringValue(record, "metadataJson")),
		})
	}
	return chunks, nil
}

// SiblingChunks walks the containment edges from a seed chunk back to its
// document and out to the neighbouring chunks, ordered by position. Scores
// are left at zero, ranking them is the caller's concern.
func (s *Store) SiblingChunks(ctx context.Context, chunkId string, n int) ([]docmodel.QueryResult, error) {
	records, err := s.read(ctx, `
		MATCH (seed:Chunk {id: $chunkId})<-[:HAS_CHUNK]-(d:Document)-[:HAS_CHUNK]->(sibling:Chunk)
		WHERE sibling.id <> $chunkId
		RETURN sibling.id AS chunkId,
		       sibling.content AS chunkText,
		       d.id AS documentId,
		       d.metadataJson AS documentMetadata,
		       abs(sibling.chunkIndex - seed.chunkIndex) AS distance
		ORDER BY distance ASC
		LIMIT $n`,
		map[string]any{"chunkId": chunkId, "n": n})
	if err != nil {
		return nil, faults.New(faults.KindStoreConnectivity, "sibling expansion failed", err)
	}

	results := make([]docmodel.QueryResult, 0, len(records))
	for _, record := range records {
		results = append(results, docmodel.QueryResult{
			ChunkId:          stringValue(record, "chunkId"),
			ChunkText:        stringValue(record, "chunkText"),
			DocumentId:       stringValue(record, "documentId"),
			DocumentMetadata: unmarshalMetadata(stringValue(record, "documentMetadata")),
		})
	}
	return results, nil
}

// TextMatch is the last-resort retrieval path: case-insensitive substring
// containment over chunk text. Scores are left at zero for the caller to
// assign.
func (s *Store) TextMatch(ctx context.Context, query string, k int) ([]docmodel.QueryResult, error) {
	records, err := s.read(ctx, `
		MATCH (d:Document)-[:HAS_CHUNK]->(c:Chunk)
		WHERE toLower(c.content) CONTAINS toLower($query)
		RETURN c.id AS chunkId,
		       c.content AS chunkText,
		       d.id AS documentId,
		       d.metadataJson AS documentMetadata
		LIMIT $k`,
		map[string]any{"query": query, "k": k})
	if err != nil {
		return nil, faults.New(faults.KindStoreConnectivity, "text search failed", err)
	}

	results := make([]docmodel.QueryResult, 0, len(records))
	for _, record := range records {
		results = append(results, docmodel.QueryResult{
			ChunkId:          stringValue(record, "chunkId"),
			ChunkText:        stringValue(record, "chunkText"),
			DocumentId:       stringValue(record, "documentId"),
			DocumentMetadata: unmarshalMetadata(stringValue(record, "documentMetadata")),
		})
	}
	return results, nil
}

func isMissingIndex(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "no such vector") ||
		strings.Contains(message, "there is no such") ||
		strings.Contains(message, "procedureregistry") ||
		strings.Contains(message, "unknown procedure")
}
