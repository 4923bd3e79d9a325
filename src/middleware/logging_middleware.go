package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"bankflow-server/src/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger attaches a request-scoped logger to the context and logs
// one line per completed request.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log.With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", chimw.GetReqID(r.Context())).
				Logger()
			r = r.WithContext(logger.WithContext(r.Context(), reqLog))

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				event := reqLog.Info()
				if status >= http.StatusInternalServerError {
					event = reqLog.Error()
				} else if status >= http.StatusBadRequest {
					event = reqLog.Warn()
				}
				event.Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("Request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Recoverer turns a handler panic into a 500 and logs the stack.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log := logger.FromContext(r.Context())
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from handler panic")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
