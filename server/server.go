// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/paperfeed"
	"github.com/poiesic/paperfeed/cache"
	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/search"
)

const (
	// RequestIDHeader carries the per-request id in responses.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes    = 64 << 10
	shutdownTimeout = 10 * time.Second
)

// Backend is what the handlers need from the service.
type Backend interface {
	Feed(ctx context.Context, req paperfeed.FeedRequest) (*paperfeed.FeedPage, error)
	Categories() []cache.Category
	Paper(ctx context.Context, id string) (*core.PublicPaper, error)
	Similar(ctx context.Context, id string, k int) ([]core.PublicPaper, error)
	Search(ctx context.Context, req search.Request) (*search.Response, error)
	Health(ctx context.Context) paperfeed.Health
}

var _ Backend = (*paperfeed.Service)(nil)

// Server routes HTTP requests to a Backend.
type Server struct {
	backend Backend
	mux     *http.ServeMux
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Server for backend.
func New(backend Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		mux:     http.NewServeMux(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	s.mux.HandleFunc("GET /api/feed", s.handleFeed)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("GET /api/paper/{id}", s.handlePaper)
	s.mux.HandleFunc("GET /api/paper/{id}/similar", s.handleSimilar)
	s.mux.HandleFunc("POST /api/search/semantic", s.handleSearch)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	return s
}

// ServeHTTP tags the request with an id, then dispatches it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	s.mux.ServeHTTP(rec, r.WithContext(withRequestID(r.Context(), id)))
	s.logger.Debug("request served",
		"requestId", id,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.backend.Feed(r.Context(), paperfeed.FeedRequest{
		Page:     intParam(q.Get("page"), 0),
		Limit:    intParam(q.Get("limit"), paperfeed.DefaultPageLimit),
		Refresh:  q.Get("refresh") == "true",
		Search:   q.Get("search"),
		Category: q.Get("category"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]cache.Category{"categories": s.backend.Categories()})
}

func (s *Server) handlePaper(w http.ResponseWriter, r *http.Request) {
	paper, err := s.backend.Paper(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	papers, err := s.backend.Similar(r.Context(), r.PathValue("id"), intParam(r.URL.Query().Get("k"), paperfeed.DefaultSimilarK))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, errors.Join(errBadRequest, err))
		return
	}

	resp, err := s.backend.Search(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if resp.Status == search.StatusRejected {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Health(r.Context()))
}

// intParam parses a query parameter, returning def when absent or malformed.
func intParam(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
