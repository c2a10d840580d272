package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/storyshelf/internal/bookmark"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
	"github.com/MrSnakeDoc/storyshelf/internal/subscription"
)

type Deps struct {
	Logger            logger.Logger
	StartTime         time.Time
	Version           string
	Commit            string
	BuildDate         string
	GoVersion         string
	Backend           string                      // storage backend name, reported by /infra
	AllowedCIDRS      []string                    // IPs allowed to access the API (empty = everyone)
	AllowedHosts      []string                    // accepted Host headers (empty = any)
	TrustProxy        bool                        // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateBurst         int                         // subscribe/unsubscribe burst per client IP
	RatePerMinute     int                         // subscribe/unsubscribe refill per client IP
	Bookmarks         *bookmark.Store             // bookmark collection
	Subscriptions     *subscription.Registry      // remote push subscriptions
	Ping              func(context.Context) error // storage readiness probe (nil = always ready)
	SeedReloadTrigger chan struct{}               // manual seed reload (nil if seeding disabled)
}
