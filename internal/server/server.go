package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/vharia/threatlens/internal/adapter/utils"
	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/handlers"
	"github.com/vharia/threatlens/internal/middleware"
	"github.com/vharia/threatlens/pkg/logger_i"
)

var (
	server  *http.Server
	_logger *logger_i.Logger
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

func CreateServer(listenAddr string, h *handlers.Handler) {
	_logger = logger_i.NewLogger("Server")

	r := utils.NewRouter()

	r.Router.Get("/health", middleware.Wrap(h.HealthHandler))
	r.Router.Post("/documents", middleware.Wrap(h.PostIngestHandler))
	r.Router.Delete("/documents", middleware.Wrap(h.DeleteClearHandler))
	r.Router.Post("/documents/upload", middleware.Wrap(h.PostUploadHandler))
	r.Router.Delete("/documents/{id}", middleware.Wrap(h.DeleteDocumentHandler))
	r.Router.Get("/status/{id}", middleware.Wrap(h.GetStatusHandler))
	r.Router.Post("/search", middleware.Wrap(h.PostSearchHandler))
	r.Router.Post("/search/fanout", middleware.Wrap(h.PostFanOutSearchHandler))
	r.Router.Post("/search/context", middleware.Wrap(h.PostContextSearchHandler))
	r.Router.Post("/reconcile", middleware.Wrap(h.PostReconcileHandler))
	r.Router.Get("/stats", middleware.Wrap(h.GetStatsHandler))

	server = &http.Server{
		Addr:         listenAddr,
		Handler:      r.Router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		server.SetKeepAlivesEnabled(false)

		if err := server.Shutdown(ctx); err != nil {
			_logger.Error("Could not shutdown gracefully", "error", err)
		}

		//close workers
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Graceful shutdown complete")
	case <-ctx.Done():
		_logger.Info("Force shut down")
		os.Exit(1)
	}
}
