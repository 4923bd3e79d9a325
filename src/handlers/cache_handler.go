package handlers

import (
	"net/http"

	"bankflow-server/src/logger"

	"github.com/go-chi/chi/v5"
)

type CacheClearer interface {
	Clear(name string) bool
}

func ClearCache(cache CacheClearer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "cache_name")
		cleared := cache.Clear(name)
		log := logger.FromContext(r.Context())
		log.Info().Str("cache_name", name).Bool("had_entries", cleared).Msg("Cleared cache")
		w.WriteHeader(http.StatusNoContent)
	}
}
