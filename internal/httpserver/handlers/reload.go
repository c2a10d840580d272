package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/storyshelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
)

// Reload triggers a manual reload of the seed file
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.SeedReloadTrigger == nil {
			writeStatus(w, d.Logger, http.StatusNotFound, "seeding is disabled")
			return
		}

		select {
		case d.SeedReloadTrigger <- struct{}{}:
			d.Logger.Info("manual seed reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeStatus(w, d.Logger, http.StatusAccepted, "reload triggered")
		default:
			d.Logger.Warn("seed reload already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			writeStatus(w, d.Logger, http.StatusTooManyRequests, "reload already in progress, please wait")
		}
	}
}
