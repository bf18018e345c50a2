package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raycarroll/pod-ip-watcher/pkg/api"
	"github.com/raycarroll/pod-ip-watcher/pkg/kube"
	"github.com/raycarroll/pod-ip-watcher/pkg/logger"
	"github.com/raycarroll/pod-ip-watcher/pkg/watcher"
)

func main() {
	logger.Info("Starting Pod IP Watcher...")

	host := getEnvOrDefault("HOST", "0.0.0.0")
	port := getEnvOrDefault("PORT", "8080")

	// Create Kubernetes client (in-cluster config, kubeconfig fallback)
	clientset, err := kube.NewClientset(os.Getenv("KUBECONFIG"))
	if err != nil {
		logger.Fatal("Failed to create Kubernetes client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Check connectivity
	if err := kube.Ping(ctx, clientset); err != nil {
		logger.Warn("Failed to ping Kubernetes API: %v", err)
	} else {
		logger.Info("Successfully connected to Kubernetes API")
	}

	// Start the pod watcher in the background
	svc, err := watcher.New(watcher.Config{Client: clientset})
	if err != nil {
		logger.Fatal("Failed to create watcher: %v", err)
	}
	svc.Start(ctx)

	// Start the API server
	server := api.NewServer(host+":"+port, svc)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal, shutting down gracefully...")
	case err := <-errCh:
		logger.Error("API server error: %v", err)
	}

	// Stop the watcher loop, then drain the HTTP server
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown: %v", err)
	}

	logger.Info("Shutdown complete")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
