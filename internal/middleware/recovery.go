package middleware

import (
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Recoverer turns a panic in the handler chain into a 500 with the usual
// JSON error body. http.ErrAbortHandler is re-panicked so the server can
// drop the connection.
func Recoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
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

				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)

				if r.Header.Get("Connection") != "Upgrade" {
					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal server error occurred.", r)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
