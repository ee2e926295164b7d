package handlers

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"
	"unibox/internal/models"
	"unibox/internal/utils"
)

type contextKey string

const authContextKey contextKey = "auth"

// WithAuth resolves the caller identity from the auth collaborator's
// headers. The engine trusts them unconditionally; a missing tenant is the
// only rejection, since nothing can be scoped without one.
func WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := models.Auth{
			TenantID: r.Header.Get("X-Tenant-ID"),
			UserID:   r.Header.Get("X-User-ID"),
			Role:     r.Header.Get("X-Role"),
		}
		if auth.TenantID == "" {
			models.RespondWithJSON(w, http.StatusBadRequest,
				models.NewErrorResponse("missing X-Tenant-ID header"))
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey, auth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthFromContext returns the identity WithAuth stored. A zero value comes
// back on routes that skip the middleware.
func AuthFromContext(ctx context.Context) models.Auth {
	auth, _ := ctx.Value(authContextKey).(models.Auth)
	return auth
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps the websocket upgrade working behind the logger.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// RequestLogger logs one line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		utils.Logger().Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("latency", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("request completed")
	})
}
