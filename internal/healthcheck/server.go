package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NormalizeListen turns a configured listen value into an address.
// Empty, "off" and "false" disable the server; a bare port gets a
// localhost host.
func NormalizeListen(raw string) string {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "off", "false", "disabled", "none":
		return ""
	}
	if !strings.Contains(raw, ":") {
		return "127.0.0.1:" + raw
	}
	if strings.HasPrefix(raw, ":") {
		return "127.0.0.1" + raw
	}
	return raw
}

// Handler serves GET /health for component.
func Handler(component string, started time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":        true,
			"component": component,
			"uptime":    time.Since(started).Round(time.Second).String(),
		})
	})
	return r
}

// StartServer binds addr and serves the health endpoint until ctx is done.
// The caller owns Shutdown for an earlier stop.
func StartServer(ctx context.Context, logger *slog.Logger, addr, component string) (*http.Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	addr = NormalizeListen(addr)
	if addr == "" {
		return nil, fmt.Errorf("health listen address is empty")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           Handler(component, time.Now()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("health_server_error", "component", component, "addr", addr, "error", err.Error())
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("health_server_start", "component", component, "addr", ln.Addr().String())
	return srv, nil
}
