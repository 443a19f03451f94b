/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend serves the font catalog and preview API over HTTP.
package backend

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"tattoofonts/internal/crash"
	applog "tattoofonts/internal/log"
	"tattoofonts/internal/storage"
	"tattoofonts/internal/version"
)

// Options configure a Server.
type Options struct {
	Addr    string
	DataDir string // crash reports
	// Secret signs admin session tokens.
	Secret string
	// AdminHash is a bcrypt hash; AdminPassword a plain fallback from env.
	AdminHash     string
	AdminPassword string
	SessionTTL    time.Duration
	SecureCookies bool

	MaxUploadBytes int64
	PerPage        int
	PixelRatio     float64
	DefaultColor   string
	DefaultSizePx  float64

	ShutdownTimeout time.Duration
	Now             func() time.Time
}

// Server is the HTTP API. Create it with New.
type Server struct {
	store *storage.Store
	opts  Options
	mux   *http.ServeMux
	log   *slog.Logger
	now   func() time.Time
}

// New validates opts, fills defaults and registers every route.
func New(store *storage.Store, opts Options) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, errors.New("auth secret is required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 8 * time.Hour
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 20
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	s := &Server{store: store, opts: opts, mux: http.NewServeMux(), log: applog.WithComponent("backend"), now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	m := s.mux
	m.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	m.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		v, err := s.store.SchemaVersion(ctx)
		if err != nil || v == 0 {
			http.Error(w, "schema not migrated", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "ready schema=%d", v)
	})
	m.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})

	m.HandleFunc("POST /api/admin/login", s.handleLogin)
	m.HandleFunc("POST /api/admin/logout", s.handleLogout)
	m.HandleFunc("GET /api/admin/session", s.handleSession)

	m.HandleFunc("GET /api/categories", s.handleListCategories)
	m.HandleFunc("POST /api/categories", s.withAdmin(s.handleAddCategory))

	m.HandleFunc("GET /api/fonts", s.handleListFonts)
	m.HandleFunc("GET /api/fonts/{id}", s.handleGetFont)
	m.HandleFunc("GET /api/fonts/file/{id}", s.handleFontFile)
	m.HandleFunc("POST /api/fonts/upload", s.withAdmin(s.handleUpload))
	m.HandleFunc("POST /api/fonts/reorder", s.withAdmin(s.handleReorder))
	m.HandleFunc("PATCH /api/fonts/{id}", s.withAdmin(s.handlePatchFont))
	m.HandleFunc("DELETE /api/fonts/{id}", s.withAdmin(s.handleDeleteFont))

	m.HandleFunc("GET /api/favorites", s.handleListFavorites)
	m.HandleFunc("PUT /api/favorites/{id}", s.handleAddFavorite)
	m.HandleFunc("DELETE /api/favorites/{id}", s.handleRemoveFavorite)

	m.HandleFunc("POST /api/preview/layout", s.handleLayout)
	m.HandleFunc("GET /api/preview/{id}/{format}", s.handlePreview)
}

// Handler returns the routed handler wrapped in request logging and panic
// recovery.
func (s *Server) Handler() http.Handler {
	return s.withRequest(crash.Middleware(s.opts.DataDir, s.mux))
}

// statusWriter records the response status for the access log.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func newRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req-" + time.Now().Format("150405.000000")
	}
	return hex.EncodeToString(b[:])
}

// withRequest tags the context with a request id and logs one line per
// request.
func (s *Server) withRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := applog.ContextWithRequest(r.Context(), id, r.Method+" "+r.URL.Path)
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r.WithContext(ctx))
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		lvl := slog.LevelInfo
		if sw.status >= 500 {
			lvl = slog.LevelError
		}
		s.log.Log(ctx, lvl, "request",
			slog.Int("status", sw.status),
			slog.Int("bytes", sw.bytes),
			slog.Duration("dur", time.Since(start)))
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", s.opts.Addr), slog.String("version", version.String()))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps storage and decoding errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
