package httputil

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetIntQueryParameter reads an optional integer query parameter. A missing
// or blank parameter returns fallback. An invalid or negative one writes a
// 400 status code with the reason and returns false.
func GetIntQueryParameter(w http.ResponseWriter, r *http.Request, key string, fallback int64) (int64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		http.Error(w, fmt.Sprintf("expected %s to be a non-negative integer", key), http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// RequestLogger returns a logger carrying the request's method, path and the
// given query parameters when they are set.
func RequestLogger(r *http.Request, paramKeys ...string) zerolog.Logger {
	logger := log.With().Str("method", r.Method).Str("path", r.URL.Path)
	q := r.URL.Query()
	for _, key := range paramKeys {
		if value := q.Get(key); value != "" {
			logger = logger.Str(key, value)
		}
	}
	return logger.Logger()
}
