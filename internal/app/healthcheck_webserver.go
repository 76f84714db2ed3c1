package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vk/blueetlcore/internal/cache"
	"github.com/vk/blueetlcore/internal/dispatcher"
)

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// statsHandler reports the cache and dispatcher counters.
func (a *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Stats endpoint hit.", "remote_addr", r.RemoteAddr)
	body := struct {
		Cache      cache.Stats      `json:"cache"`
		Dispatcher dispatcher.Stats `json:"dispatcher"`
		Entries    int              `json:"entries"`
	}{a.cache.Stats(), a.dispatcher.Stats(), a.cache.Len()}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Error("Failed to encode stats", "error", err)
	}
}

// startHealthcheckServer binds the port and serves /health and /stats in
// the background until Close.
func (a *App) startHealthcheckServer(port int) error {
	a.logger.Debug("Configuring health check server.")
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/stats", a.statsHandler)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to start health check server: %w", err)
	}
	a.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://%s/health", ln.Addr()))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health check server failed", "error", err)
		}
	}()
	return nil
}

func (a *App) closeHealthcheckServer() error {
	if a.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.httpServer.Shutdown(ctx)
}
