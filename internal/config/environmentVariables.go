package config

import (
	"log/slog"
	"os"
	"time"

	// load .env before any of the env-backed vars below are read
	_ "github.com/joho/godotenv/autoload"
)

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, fall back to the in-memory job store
	TRACE_ID_KEY                    = "traceId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 10 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//graph store
	Neo4jURI               = "neo4j://localhost:7687"
	Neo4jUser              = "neo4j"
	Neo4jConnectionTimeout = 30 * time.Second
	StoreOperationTimeout  = 30 * time.Second

	//chunking
	MarkdownChunkSize    = 1400
	MarkdownChunkOverlap = 200
	GenericChunkSize     = 1000
	GenericChunkOverlap  = 150

	//retrieval
	BruteForceSampleLimit = 100
	ExpandSiblingCount    = 3
	ExpandScoreDecay      = 0.05
	TextMatchScore        = 0.1
	DefaultSearchLimit    = 5

	//embedding providers - probe order is ollama, openai, google
	OllamaHost            = "http://localhost:11434"
	OllamaEmbeddingModel  = "nomic-embed-text"
	OllamaDimensions      = 768
	OpenAIEmbeddingModel  = "text-embedding-3-small"
	OpenAIDimensions      = 1536
	GoogleEmbeddingModel  = "gemini-embedding-001"
	GoogleDimensions      = 1536
	EmbeddingCallTimeout  = 60 * time.Second
	EmbeddingRetryCount   = 3
	EmbeddingRetryBackoff = 500 * time.Millisecond
	QueryCacheCapacity    = 100

	//reconcile
	ReconcileWorkerCount = 4

	//http pooling
	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore = 0

	RedisJobStoreTTL = 24 * time.Hour

	//auth
	NoAuthBypass = true //set false once the UI layer forwards its bearer token
)

var (
	AuthToken             = os.Getenv("AUTH_TOKEN")
	RedisPassword         = os.Getenv("REDIS_PASSWORD")
	Neo4jPassword         = os.Getenv("NEO4J_PASSWORD")
	OpenAIAPIKey          = os.Getenv("OPENAI_API_KEY")
	GoogleEmbeddingAPIKey = os.Getenv("GOOGLE_API_KEY")
)

// GetEnvOr reads an environment variable with a constant fallback.
// Services that also run against docker-compose hosts use this.
func GetEnvOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
