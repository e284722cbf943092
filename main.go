package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EmmettHwang/ssirn/internal/api"
	"github.com/EmmettHwang/ssirn/internal/core"
	"github.com/EmmettHwang/ssirn/internal/jobs"
	"go.uber.org/zap"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Initialize the core application components
	app, err := core.New(version)
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()
	logger := app.Logger()

	// Registry sweep and nightly conversion.
	scheduler := jobs.StartJobs(app)
	defer scheduler.Stop()

	// Setup the API server
	server := api.NewServer(app)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.Config().Port),
		Handler: server.Router(),
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		logger.Info("Starting web server", zap.String("addr", httpServer.Addr), zap.String("version", version))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not start server", zap.Error(err))
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create a context with a timeout to allow existing connections to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if running := app.Registry().ListRunning(); len(running) > 0 {
		// Jobs are process-lifetime only; anything still running is lost.
		logger.Warn("Exiting with jobs still running", zap.Int("count", len(running)))
	}

	logger.Info("Server exiting.")
}
