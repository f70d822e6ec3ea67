package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yourorg/seekd/internal/config"
	"github.com/yourorg/seekd/internal/engine"
	"github.com/yourorg/seekd/internal/logging"
	"github.com/yourorg/seekd/internal/state"
	"github.com/yourorg/seekd/internal/version"
)

// HTTPServer provides health/management endpoints.
type HTTPServer struct {
	addr   string
	logger *logging.Logger
	srv    *http.Server
}

func withOptionalAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Seekd-Token") != token {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("unauthorized"))
			return
		}
		h(w, r)
	}
}

func NewHTTPServer(cfg *config.Config, st *state.State, eng *engine.Engine, logger *logging.Logger) *HTTPServer {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"status": string(st.Status()),
			"data": map[string]any{
				"http":    cfg.HTTPAddr,
				"listen":  cfg.Listen,
				"rg":      cfg.RipgrepPath,
				"max":     cfg.MaxResults,
				"workers": cfg.WalkerConcurrency,
				"roots":   eng.Workspace().Roots(),
				"ver":     version.Version,
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/documents", withOptionalAuth(cfg.HTTPToken, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(eng.Workspace().OpenDocuments())
	}))

	mux.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Support ?after=ID for incremental fetching
		afterStr := r.URL.Query().Get("after")
		if afterStr != "" {
			var afterID int64
			fmt.Sscanf(afterStr, "%d", &afterID)
			_ = json.NewEncoder(w).Encode(eng.Ops().Since(afterID))
			return
		}
		// Default: return recent 50 logs
		_ = json.NewEncoder(w).Encode(eng.Ops().Recent(50))
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return &HTTPServer{addr: cfg.HTTPAddr, logger: logger, srv: srv}
}

func (s *HTTPServer) Start() error {
	s.logger.Info("http server starting", logging.String("addr", s.addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
