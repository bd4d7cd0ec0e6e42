package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/obsync/obsync/internal/logger"
	"github.com/obsync/obsync/pkg/api/handlers"
	apimiddleware "github.com/obsync/obsync/pkg/api/middleware"
	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/metrics"
)

// NewRouter creates the chi router with the middleware stack and all routes.
//
// Routes:
//   - GET  /health                      - liveness probe
//   - GET  /health/ready                - readiness probe
//   - GET  /metrics                     - Prometheus scrape (if enabled)
//   - POST /v1/vaults/{vaultId}/sync/push
//   - GET  /v1/vaults/{vaultId}/sync/pull
//   - GET  /v1/vaults/{vaultId}/realtime        - websocket upgrade
//   - POST /v1/vaults/{vaultId}/blobs/init
//   - PUT  /v1/vaults/{vaultId}/blobs/{blobHash}/chunks/{index}
//   - GET  /v1/vaults/{vaultId}/blobs/{blobHash}
//   - GET  /v1/vaults/{vaultId}/blobs/{blobHash}/chunks/{index}
//   - POST /v1/vaults/{vaultId}/blobs/{blobHash}/commit
//   - PUT  /v1/vaults/{vaultId}/keys/{deviceId}
//   - GET  /v1/vaults/{vaultId}/keys/{deviceId}
func NewRouter(config APIConfig, tokens *auth.TokenService, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Chunks)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if config.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	syncHandler := handlers.NewSyncHandler(deps.Sync)
	blobHandler := handlers.NewBlobHandler(deps.Blobs)
	keyHandler := handlers.NewKeyHandler(deps.Store, deps.Gate)
	realtimeHandler := handlers.NewRealtimeHandler(deps.Store, deps.Bus, deps.Gate,
		func(r *http.Request) (*auth.Principal, error) {
			tokenString, ok := apimiddleware.ExtractToken(r)
			if !ok {
				return nil, auth.ErrUnauthorized
			}
			return tokens.Resolve(tokenString)
		})

	r.Route("/v1/vaults/{vaultId}", func(r chi.Router) {
		// Realtime authenticates after the upgrade so failures can be
		// reported in-band; it must also outlive the request timeout.
		r.Get("/realtime", realtimeHandler.Subscribe)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.RequestTimeout))
			r.Use(apimiddleware.Authenticate(tokens))

			r.Post("/sync/push", syncHandler.Push)
			r.Get("/sync/pull", syncHandler.Pull)

			r.Route("/blobs", func(r chi.Router) {
				r.Post("/init", blobHandler.Init)
				r.Route("/{blobHash}", func(r chi.Router) {
					r.Get("/", blobHandler.GetManifest)
					r.Post("/commit", blobHandler.Commit)
					r.Put("/chunks/{index}", blobHandler.PutChunk)
					r.Get("/chunks/{index}", blobHandler.GetChunk)
				})
			})

			r.Route("/keys/{deviceId}", func(r chi.Router) {
				r.Put("/", keyHandler.Put)
				r.Get("/", keyHandler.Get)
			})
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// redactedQuery returns the raw query with any legacy token parameter value
// masked. Tokens must never reach the logs.
func redactedQuery(q url.Values) string {
	if q.Get("token") == "" {
		return q.Encode()
	}
	redacted := url.Values{}
	for k, vs := range q {
		if k == "token" {
			redacted.Set(k, "REDACTED")
			continue
		}
		for _, v := range vs {
			redacted.Add(k, v)
		}
	}
	return redacted.Encode()
}

// requestLogger logs requests using the internal logger.
//
// Request start is logged at DEBUG, completion at INFO; healthcheck requests
// stay at DEBUG to reduce noise.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"query", redactedQuery(r.URL.Query()),
			"remote_addr", r.RemoteAddr,
		)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
