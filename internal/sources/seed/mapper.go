package seed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
)

// MapBookmarks converts seed entries into bookmarks. Entries without an id
// get one derived from their photo URL; entries with neither are skipped.
func MapBookmarks(f File) ([]domain.Bookmark, error) {
	bookmarks := make([]domain.Bookmark, 0, len(f.Bookmarks))
	seen := make(map[string]bool, len(f.Bookmarks))

	for i, e := range f.Bookmarks {
		id := strings.TrimSpace(e.ID)
		if id == "" && e.PhotoURL != "" {
			id = generateBookmarkID(e.PhotoURL)
		}
		if id == "" {
			continue
		}
		if seen[id] {
			// First entry wins, like Add does
			continue
		}
		seen[id] = true

		b := domain.Bookmark{
			ID:          id,
			Name:        e.Name,
			Description: e.Description,
			PhotoURL:    e.PhotoURL,
			Lat:         e.Lat,
			Lon:         e.Lon,
		}
		if e.CreatedAt != "" {
			t, err := time.Parse(time.RFC3339, e.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("bookmark %d (%s): invalid createdAt: %w", i, id, err)
			}
			b.CreatedAt = &t
		}
		bookmarks = append(bookmarks, b)
	}

	return bookmarks, nil
}

// generateBookmarkID creates a stable ID from a URL, so the same photo
// always seeds the same record
func generateBookmarkID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return "seed-" + hex.EncodeToString(hash[:])[:12]
}
