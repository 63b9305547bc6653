package graphstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/faults"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// Store persists documents and chunks as linked nodes in neo4j:
// (:Document)-[:HAS_CHUNK]->(:Chunk), one edge per chunk. The driver is a
// single long-lived resource, acquired once at startup and closed on
// shutdown.
type Store struct {
	driver     neo4j.DriverWithContext
	logger     *logger_i.Logger
	indexName  string
	dimensions int

	mu             sync.RWMutex
	indexAvailable bool
}

var _ docmodel.DocumentStore = (*Store)(nil)

func Connect(ctx context.Context) (*Store, error) {
	uri := config.GetEnvOr("NEO4J_URI", config.Neo4jURI)
	user := config.GetEnvOr("NEO4J_USER", config.Neo4jUser)
	password := config.Neo4jPassword

	logger := logger_i.NewLogger("GraphStore")

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, connectivityFault(uri, password, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.Neo4jConnectionTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(pingCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, connectivityFault(uri, password, err)
	}

	logger.Info("Connected to neo4j", "uri", uri)
	return &Store{driver: driver, logger: logger}, nil
}

func connectivityFault(uri string, password string, err error) error {
	return faults.Newf(faults.KindStoreConnectivity,
		"cannot reach neo4j at %s (credentials present: %t): %v", uri, password != "", err)
}

// Initialize is idempotent: uniqueness constraints always, the vector index
// only when the server supports it. An index-less server just downgrades
// retrieval to the brute-force path.
func (s *Store) Initialize(ctx context.Context, dimensions int) error {
	s.dimensions = dimensions
	// index name carries the dimensionality so that switching embedding
	// providers can never mix vector sizes inside one index
	s.indexName = fmt.Sprintf("chunk_embeddings_%d", dimensions)

	constraints := []string{
		"CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE",
		"CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE",
	}
	for _, stmt := range constraints {
		if _, err := s.write(ctx, stmt, nil); err != nil {
			return faults.New(faults.KindStoreConnectivity, "ensuring constraints failed", err)
		}
	}

	indexStmt := fmt.Sprintf(
		"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (c:Chunk) ON (c.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
		s.indexName, dimensions)

	if _, err := s.write(ctx, indexStmt, nil); err != nil {
		s.logger.Warn("vector index unavailable, similarity search will fall back to a manual scan", "error", err)
		s.setIndexAvailable(false)
		return nil
	}
	s.setIndexAvailable(true)
	s.logger.Info("vector index ready", "index", s.indexName, "dimensions", dimensions)
	return nil
}

func (s *Store) UpsertDocument(ctx context.Context, doc docmodel.Document) error {
	metadataJson, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	_, err = s.write(ctx, `
		MERGE (d:Document {id: $id})
		SET d.contentHash = $contentHash,
		    d.content = $content,
		    d.size = $size,
		    d.uploadedAt = $uploadedAt,
		    d.metadataJson = $metadataJson`,
		map[string]any{
			"id":           doc.Id,
			"contentHash":  doc.ContentHash,
			"content":      doc.Content,
			"size":         doc.Size,
			"uploadedAt":   doc.UploadedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			"metadataJson": metadataJson,
		})
	if isConstraintViolation(err) {
		// concurrent writer beat us to the same identity, nothing to do
		s.logger.Debug("document already exists", "id", doc.Id)
		return nil
	}
	if err != nil {
		return faults.New(faults.KindStoreConnectivity, "upserting document failed", err)
	}
	return nil
}

// ReplaceChunks swaps the whole chunk set of a document inside one write
// transaction, so concurrent readers either see the old set or the new one.
func (s *Store) ReplaceChunks(ctx context.Context, documentId string, chunks []docmodel.Chunk) error {
	rows := make([]map[string]any, 0, len(chunks))
	for _, chunk := range chunks {
		if s.dimensions > 0 && len(chunk.Embedding) != s.dimensions {
			return faults.Newf(faults.KindConfiguration,
				"chunk %s has a %d-dimensional embedding but the index is sized for %d; pin one embedding provider per collection",
				chunk.Id, len(chunk.Embedding), s.dimensions)
		}
		metadataJson, err := marshalMetadata(chunk.Metadata)
		if err != nil {
			return err
		}
		rows = append(rows, map[string]any{
			"id":           chunk.Id,
			"documentId":   chunk.DocumentId,
			"content":      chunk.Text,
			"chunkIndex":   chunk.Index,
			"size":         chunk.Size,
			"embedding":    chunk.Embedding,
			"metadataJson": metadataJson,
		})
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $documentId})-[:HAS_CHUNK]->(c:Chunk)
			DETACH DELETE c`,
			map[string]any{"documentId": documentId}); err != nil {
			return nil, err
		}

		_, err := tx.Run(ctx, `
			MATCH (d:Document {id: $documentId})
			UNWIND $rows AS row
			CREATE (c:Chunk {
				id: row.id,
				documentId: row.documentId,
				content: row.content,
				chunkIndex: row.chunkIndex,
				size: row.size,
				embedding: row.embedding,
				metadataJson: row.metadataJson
			})
			CREATE (d)-[:HAS_CHUNK]->(c)`,
			map[string]any{"documentId": documentId, "rows": rows})
		return nil, err
	})
	if err != nil {
		return faults.New(faults.KindStoreConnectivity, "replacing chunks failed", err)
	}
	return nil
}

func (s *Store) RemoveDocument(ctx context.Context, id string) error {
	_, err := s.write(ctx, `
		MATCH (d:Document {id: $id})
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		DETACH DELETE d, c`,
		map[string]any{"id": id})
	if err != nil {
		return faults.New(faults.KindStoreConnectivity, "removing document failed", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.write(ctx, `
		MATCH (n) WHERE n:Document OR n:Chunk
		DETACH DELETE n`, nil)
	if err != nil {
		return faults.New(faults.KindStoreConnectivity, "clearing store failed", err)
	}
	return nil
}

func (s *Store) KnownHashes(ctx context.Context) (map[string]string, error) {
	records, err := s.read(ctx, `
		MATCH (d:Document)
		RETURN d.id AS id, d.contentHash AS contentHash`, nil)
	if err != nil {
		return nil, faults.New(faults.KindStoreConnectivity, "listing document hashes failed", err)
	}

	hashes := make(map[string]string, len(records))
	for _, record := range records {
		hashes[stringValue(record, "id")] = stringValue(record, "contentHash")
	}
	return hashes, nil
}

func (s *Store) FindByContentHash(ctx context.Context, hash string) (string, bool, error) {
	records, err := s.read(ctx, `
		MATCH (d:Document {contentHash: $hash})
		RETURN d.id AS id LIMIT 1`,
		map[string]any{"hash": hash})
	if err != nil {
		return "", false, faults.New(faults.KindStoreConnectivity, "hash lookup failed", err)
	}
	if len(records) == 0 {
		return "", false, nil
	}
	return stringValue(records[0], "id"), true, nil
}

func (s *Store) Stats(ctx context.Context) (docmodel.Stats, error) {
	records, err := s.read(ctx, `
		MATCH (d:Document)
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		RETURN count(DISTINCT d) AS documents, count(c) AS chunks`, nil)
	if err != nil {
		return docmodel.Stats{}, faults.New(faults.KindStoreConnectivity, "stats query failed", err)
	}
	if len(records) == 0 {
		return docmodel.Stats{}, nil
	}
	return docmodel.Stats{
		TotalDocuments: intValue(records[0], "documents"),
		TotalChunks:    intValue(records[0], "chunks"),
	}, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	s.logger.Info("Closing neo4j driver")
	return s.driver.Close(ctx)
}

//helpers

func (s *Store) write(ctx context.Context, cypher string, params map[string]any) (any, error) {
	opCtx, cancel := context.WithTimeout(ctx, config.StoreOperationTimeout)
	defer cancel()

	session := s.driver.NewSession(opCtx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(opCtx)

	return session.ExecuteWrite(opCtx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(opCtx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(opCtx)
	})
}

func (s *Store) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, config.StoreOperationTimeout)
	defer cancel()

	session := s.driver.NewSession(opCtx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(opCtx)

	records, err := session.ExecuteRead(opCtx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(opCtx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(opCtx)
	})
	if err != nil {
		return nil, err
	}
	return records.([]*neo4j.Record), nil
}

func (s *Store) setIndexAvailable(available bool) {
	s.mu.Lock()
	s.indexAvailable = available
	s.mu.Unlock()
}

func (s *Store) hasVectorIndex() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexAvailable
}

func isConstraintViolation(err error) bool {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return strings.Contains(neoErr.Code, "ConstraintValidationFailed")
	}
	return false
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	// neo4j properties cannot hold nested maps, so metadata rides as JSON
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshalling metadata: %w", err)
	}
	return string(raw), nil
}

func unmarshalMetadata(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil
	}
	return metadata
}

func stringValue(record *neo4j.Record, key string) string {
	value, found := record.Get(key)
	if !found || value == nil {
		return ""
	}
	str, _ := value.(string)
	return str
}

func intValue(record *neo4j.Record, key string) int {
	value, found := record.Get(key)
	if !found || value == nil {
		return 0
	}
	if count, ok := value.(int64); ok {
		return int(count)
	}
	return 0
}

func floatValue(record *neo4j.Record, key string) float64 {
	value, found := record.Get(key)
	if !found || value == nil {
		return 0
	}
	if f, ok := value.(float64); ok {
		return f
	}
	return 0
}

func vectorValue(record *neo4j.Record, key string) []float32 {
	value, found := record.Get(key)
	if !found || value == nil {
		return nil
	}
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	vector := make([]float32, 0, len(raw))
	for _, item := range raw {
		if f, ok := item.(float64); ok {
			vector = append(vector, float32(f))
		}
	}
	return vector
}
