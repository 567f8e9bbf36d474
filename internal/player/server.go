// Package player serves the pages behind player links: an HTML page that
// embeds a presigned URL in a video, audio or image element. It also
// exposes /health and /metrics.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/filerelay/internal/links"
	"github.com/dmitrijs2005/filerelay/internal/logging"
	"github.com/dmitrijs2005/filerelay/internal/metrics"
)

const (
	serviceName     = "filerelay-player"
	shutdownTimeout = 10 * time.Second
)

var pageTemplate = template.Must(template.New("player").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>File Relay Player</title>
<style>
body { margin: 0; background: #111; color: #eee; font-family: sans-serif; display: flex; flex-direction: column; align-items: center; justify-content: center; min-height: 100vh; }
video, img { max-width: 100vw; max-height: 90vh; }
a { color: #8cf; margin-top: 1em; }
</style>
</head>
<body>
{{if eq .Type "video"}}<video src="{{.URL}}" controls autoplay playsinline></video>
{{else if eq .Type "audio"}}<audio src="{{.URL}}" controls autoplay></audio>
{{else}}<img src="{{.URL}}" alt="image">
{{end}}<a href="{{.URL}}" download>Download</a>
</body>
</html>
`))

type page struct {
	Type links.MediaType
	URL  string
}

type Server struct {
	httpServer *http.Server
	log        logging.Logger
}

func New(addr string, log logging.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{log: log.With("component", "player")}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/player/{type}/{enc}", s.handlePlayer)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "player server listening", "addr", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("player server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("player shutdown: %w", err)
	}
	s.log.Info(ctx, "player server stopped")
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("File relay player is running\n"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": serviceName})
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	mt, ok := links.ParseMediaType(chi.URLParam(r, "type"))
	if !ok {
		http.Error(w, "unknown media type", http.StatusNotFound)
		return
	}

	u, err := links.DecodeURL(chi.URLParam(r, "enc"))
	if err != nil {
		s.log.Debug(r.Context(), "rejected player url", "err", err)
		http.Error(w, "invalid media link", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Referrer-Policy", "no-referrer")
	if err := pageTemplate.Execute(w, page{Type: mt, URL: u}); err != nil {
		s.log.Error(r.Context(), "render player page", "err", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// countRequests labels by route pattern so encoded URLs do not blow up
// label cardinality.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.PlayerRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
