// @title           ThreatLens Document Cache API
// @version         1.0
// @description     Semantic document cache with layered retrieval and asynchronous ingestion.
// @termsOfService  http://swagger.io/terms/

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/data/redisStore"
	"github.com/vharia/threatlens/internal/data/store"
	"github.com/vharia/threatlens/internal/domain/jobmodel"
	"github.com/vharia/threatlens/internal/embedding"
	"github.com/vharia/threatlens/internal/embedding/googleprov"
	"github.com/vharia/threatlens/internal/embedding/ollamaprov"
	"github.com/vharia/threatlens/internal/embedding/openaiprov"
	"github.com/vharia/threatlens/internal/handlers"
	"github.com/vharia/threatlens/internal/job"
	"github.com/vharia/threatlens/internal/mcpserver"
	"github.com/vharia/threatlens/internal/retrieval"
	"github.com/vharia/threatlens/internal/semcache"
	"github.com/vharia/threatlens/internal/server"
	"github.com/vharia/threatlens/internal/store/graphstore"
	"github.com/vharia/threatlens/internal/worker"
	"github.com/vharia/threatlens/pkg/logger_i"
)

var (
	listenAddr        string
	mcpMode           bool
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.BoolVar(&mcpMode, "mcp", false, "serve MCP over stdio instead of HTTP")
	flag.Parse()

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	cacheService, documentStore, err := buildCacheService(serviceContext, logger)
	if err != nil {
		logger.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := documentStore.Close(context.Background()); err != nil {
			logger.Error("Error closing document store", "error", err)
		}
	}()

	if mcpMode {
		runMCP(serviceContext, cacheService, logger)
		return
	}

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          buildJobStore(serviceContext, logger),
	}
	logger.Info("Starting job service")
	jobService := job.InitJobService(serviceConfig)

	handler := handlers.NewHandler(jobService, cacheService)

	//init worker pool
	pool := worker.NewPool(jobService, cacheService)
	pool.Start(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr, handler)

	<-stopExecution
	logger.Info("Server stopped")
}

// buildCacheService wires the embedding providers, the graph store and the
// retrieval engine into the facade. The selected provider's dimensionality
// pins the vector index for the lifetime of the process.
func buildCacheService(ctx context.Context, logger *logger_i.Logger) (semcache.Service, *graphstore.Store, error) {
	googleClient, err := googleprov.NewClient(ctx)
	if err != nil {
		logger.Warn("Google embedding client unavailable", "error", err)
	}

	providers := []embedding.Provider{
		ollamaprov.NewClient(),
		openaiprov.NewClient(),
	}
	if googleClient != nil {
		providers = append(providers, googleClient)
	}
	gateway := embedding.NewGateway(providers...)

	activeProvider, err := gateway.Select("")
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Embedding provider selected", "provider", activeProvider.Name(), "dimensions", activeProvider.Dimensions())

	documentStore, err := graphstore.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := documentStore.Initialize(ctx, activeProvider.Dimensions()); err != nil {
		_ = documentStore.Close(ctx)
		return nil, nil, err
	}

	engine := retrieval.NewEngine(gateway, documentStore)
	return semcache.NewService(gateway, documentStore, engine), documentStore, nil
}

func buildJobStore(ctx context.Context, logger *logger_i.Logger) jobmodel.JobStore {
	redis, err := redisStore.NewStore(ctx, config.RedisJobStore)
	if err != nil {
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			logger.Error("Redis is offline and fallback is disabled", "error", err)
			os.Exit(1)
		}
		logger.Warn("Redis is offline, using the in-memory job store", "error", err)
		return store.InitInMemoryJobStore()
	}
	go func() {
		<-ctx.Done()
		if err := redis.Close(); err != nil {
			logger.Error("Error closing redis store", "error", err)
		}
	}()
	return store.NewRedisJobStore(redis)
}

func runMCP(ctx context.Context, cacheService semcache.Service, logger *logger_i.Logger) {
	mcpCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := mcpserver.NewServer(cacheService).Run(mcpCtx); err != nil {
		logger.Error("MCP server stopped with error", "error", err)
		os.Exit(1)
	}
}
