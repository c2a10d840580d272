package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/storyshelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
)

const readyTimeout = 2 * time.Second

type readyzResponse struct {
	Ready   bool   `json:"ready"`
	Backend string `json:"backend,omitempty"`
}

// Readyz reports whether the storage backend answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := readyzResponse{Ready: true, Backend: d.Backend}
		if err := ping(r.Context(), d); err != nil {
			d.Logger.Warn("storage not ready",
				logger.String("backend", d.Backend),
				logger.Error(err))
			resp.Ready = false
			writeJSON(w, d.Logger, http.StatusServiceUnavailable, resp)
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, resp)
	}
}

func ping(ctx context.Context, d deps.Deps) error {
	if d.Ping == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return d.Ping(ctx)
}
