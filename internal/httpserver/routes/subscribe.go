package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/storyshelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/storyshelf/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/storyshelf/internal/httpserver/mw"
)

func init() { Register("subscribe", registerSubscribe) }

func registerSubscribe(r chi.Router, d deps.Deps) {
	limited := r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.RateBurst,
			RefillPerIPPerMin: d.RatePerMinute,
			MaxEntries:        10000,
			TrustProxy:        d.TrustProxy,
		}),
	)

	limited.Post("/subscribe", handlers.Subscribe(d))
	limited.Post("/unsubscribe", handlers.Unsubscribe(d))
	limited.Delete("/subscribe", handlers.Unsubscribe(d))
}
