package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
	"github.com/MrSnakeDoc/storyshelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
)

type bookmarkedResponse struct {
	ID         string `json:"id"`
	Bookmarked bool   `json:"bookmarked"`
}

type addResponse struct {
	Added     bool              `json:"added"`
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

// ListBookmarks returns the collection, ranked by ?q= when given.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			writeJSON(w, d.Logger, http.StatusOK, d.Bookmarks.GetAll(r.Context()))
			return
		}

		results := d.Bookmarks.Search(r.Context(), query)
		d.Logger.Debug("bookmark search",
			logger.String("query", query),
			logger.Int("results", len(results)))
		writeJSON(w, d.Logger, http.StatusOK, results)
	}
}

// GetBookmark reports whether a story is bookmarked.
func GetBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		writeJSON(w, d.Logger, http.StatusOK, bookmarkedResponse{
			ID:         id,
			Bookmarked: d.Bookmarks.IsBookmarked(r.Context(), id),
		})
	}
}

// SaveBookmark upserts the body under the path id and returns the fresh collection.
func SaveBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b domain.Bookmark
		if err := decodeJSON(w, r, &b); err != nil {
			writeBadBody(w, d.Logger, err)
			return
		}

		id := chi.URLParam(r, "id")
		if b.ID != "" && b.ID != id {
			writeStatus(w, d.Logger, http.StatusBadRequest, "body id does not match path id")
			return
		}
		b.ID = id

		if err := d.Bookmarks.Save(r.Context(), b); err != nil {
			writeStoreError(w, d, "save", err)
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, d.Bookmarks.GetAll(r.Context()))
	}
}

// AddBookmark stores the body unless its id is taken.
func AddBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b domain.Bookmark
		if err := decodeJSON(w, r, &b); err != nil {
			writeBadBody(w, d.Logger, err)
			return
		}

		added, err := d.Bookmarks.Add(r.Context(), b)
		if err != nil {
			writeStoreError(w, d, "add", err)
			return
		}

		status := http.StatusOK
		if added {
			status = http.StatusCreated
		}
		writeJSON(w, d.Logger, status, addResponse{
			Added:     added,
			Bookmarks: d.Bookmarks.GetAll(r.Context()),
		})
	}
}

// RemoveBookmark deletes a bookmark and returns the fresh collection.
func RemoveBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Bookmarks.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeStoreError(w, d, "remove", err)
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, d.Bookmarks.GetAll(r.Context()))
	}
}

func writeStoreError(w http.ResponseWriter, d deps.Deps, op string, err error) {
	if errors.Is(err, domain.ErrMissingID) {
		writeStatus(w, d.Logger, http.StatusBadRequest, "bookmark id is required")
		return
	}
	d.Logger.Error("bookmark write failed",
		logger.String("op", op),
		logger.Error(err))
	writeStatus(w, d.Logger, http.StatusServiceUnavailable, "bookmark storage unavailable")
}
