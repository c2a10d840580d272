package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
	"github.com/MrSnakeDoc/storyshelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
	"github.com/MrSnakeDoc/storyshelf/internal/subscription"
)

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Subscribe registers {endpoint, keys}. Registering a known endpoint again
// refreshes its keys.
func Subscribe(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub domain.Subscription
		if err := decodeJSON(w, r, &sub); err != nil {
			writeBadBody(w, d.Logger, err)
			return
		}

		if _, err := d.Subscriptions.Register(r.Context(), sub); err != nil {
			writeRegistryError(w, d, "subscribe", err)
			return
		}
		writeStatus(w, d.Logger, http.StatusOK, "subscribed")
	}
}

// Unsubscribe removes {endpoint}. Unknown endpoints succeed too.
func Unsubscribe(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req unsubscribeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeBadBody(w, d.Logger, err)
			return
		}

		if err := d.Subscriptions.Unregister(r.Context(), req.Endpoint); err != nil {
			writeRegistryError(w, d, "unsubscribe", err)
			return
		}
		writeStatus(w, d.Logger, http.StatusOK, "unsubscribed")
	}
}

func writeRegistryError(w http.ResponseWriter, d deps.Deps, op string, err error) {
	if errors.Is(err, subscription.ErrInvalidSubscription) {
		writeStatus(w, d.Logger, http.StatusBadRequest, err.Error())
		return
	}
	d.Logger.Error("subscription change failed",
		logger.String("op", op),
		logger.Error(err))
	writeStatus(w, d.Logger, http.StatusServiceUnavailable, "subscription storage unavailable")
}
