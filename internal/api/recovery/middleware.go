package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/crossedpaths/crossedpaths/server/internal/api/respond"
)

const requestIDHeader = "X-Request-ID"

// New returns a middleware that turns handler panics into a 500 ErrorResponse
// carrying the request id, so a caller can quote it when reporting a failed
// visit or history read.
func New(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				// RequestID runs inside this middleware and sets the header on r.
				reqID := r.Header.Get(requestIDHeader)
				logger.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("route", routeTemplate(r)).
					Str("request_id", reqID).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				msg := "unexpected failure"
				if reqID != "" {
					w.Header().Set(requestIDHeader, reqID)
					msg = "unexpected failure; request_id=" + reqID
				}
				respond.WriteError(w, http.StatusInternalServerError, msg)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// routeTemplate keeps raw paths, which embed profile ids, out of the log.
func routeTemplate(r *http.Request) string {
	if cr := mux.CurrentRoute(r); cr != nil {
		if tpl, err := cr.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
