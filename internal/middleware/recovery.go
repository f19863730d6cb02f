package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/mustafamilyas/expense-tracker/internal/handler"
	"github.com/mustafamilyas/expense-tracker/internal/logger"
)

// Recovery catches panics and returns a 500 error instead of crashing the
// server.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Log.Error().
					Interface("panic", err).
					Bytes("stack", debug.Stack()).
					Msg("request panicked")
				handler.JSON(w, http.StatusInternalServerError, map[string]string{
					"error": "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
