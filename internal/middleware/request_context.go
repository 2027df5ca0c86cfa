package middleware

import (
	"net/http"

	"blog-client/internal/observability"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestContext copies chi's request id into the logging context and echoes
// it back as X-Request-ID. It must run after chimiddleware.RequestID.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := chimiddleware.GetReqID(r.Context())
		if reqID == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(chimiddleware.RequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), reqID)))
	})
}
