package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/storyshelf/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Count  *int   `json:"count,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports per-component status: storage, bookmark count,
// subscription count and seeding.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"storage":       storageStatus(r, d),
			"bookmarks":     bookmarksStatus(r, d),
			"subscriptions": subscriptionsStatus(r, d),
			"seed":          seedStatus(d),
		}

		writeJSON(w, d.Logger, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if storage, ok := components["storage"]; ok && !storage.OK {
		return "critical"
	}
	if subs, ok := components["subscriptions"]; ok && !subs.OK {
		return "degraded"
	}
	return "operational"
}

func storageStatus(r *http.Request, d deps.Deps) componentStatus {
	if err := ping(r.Context(), d); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.Backend,
			Impact: "bookmarks-read-empty",
			Error:  "unreachable",
		}
	}
	return componentStatus{OK: true, Mode: d.Backend}
}

func bookmarksStatus(r *http.Request, d deps.Deps) componentStatus {
	n := len(d.Bookmarks.GetAll(r.Context()))
	return componentStatus{OK: true, Count: &n}
}

func subscriptionsStatus(r *http.Request, d deps.Deps) componentStatus {
	n, err := d.Subscriptions.Count(r.Context())
	if err != nil {
		return componentStatus{
			OK:     false,
			Impact: "push-registration-disabled",
			Error:  "count failed",
		}
	}
	return componentStatus{OK: true, Count: &n}
}

func seedStatus(d deps.Deps) componentStatus {
	if d.SeedReloadTrigger == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}
	return componentStatus{OK: true, Mode: "watching"}
}
