package api

import (
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig controls the surfaces mounted next to the directory endpoints.
type RouterConfig struct {
	// StaticDir is served under /static/. Empty disables the mount.
	StaticDir string
	// AllowedOrigin is echoed in CORS headers. Empty disables CORS.
	AllowedOrigin string
	// Metrics mounts the Prometheus handler at /metrics.
	Metrics bool
}

// NewRouter assembles the HTTP surface of the service.
func NewRouter(handler *Handler, cfg RouterConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger))
	if cfg.AllowedOrigin != "" {
		r.Use(cors(cfg.AllowedOrigin))
	}

	handler.RegisterRoutes(r)

	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.StaticDir != "" {
		r.Get("/static/*", staticFiles(http.Dir(cfg.StaticDir)))
	}
	return r
}

// staticFiles serves files from root. http.FileServer is avoided because it
// redirects ".../index.html" to the directory, which would bounce the landing page.
func staticFiles(root http.FileSystem) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + chi.URLParam(r, "*"))
		f, err := root.Open(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}

// cors allows the local front-end dev server to call the API.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
