package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by STORYSHELF_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Storage
	Backend      string        // sqlite | file | redis | memory
	Namespace    string        // key namespace / table prefix (ex: "storyshelf")
	SQLitePath   string        // path to the sqlite database (backend=sqlite)
	BookmarkFile string        // path to the flat JSON bookmark list (backend=file)
	SeedFile     string        // optional YAML file of bookmarks added at startup
	SeedInterval time.Duration // periodic seed reload (0 = only on file change)

	// Redis (backend=redis)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisPoolSize       int           // connection pool size
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, doubles each attempt
	RedisMaxWait        time.Duration // cap on the wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt
	RedisWarnThreshold  int           // warn (not error) for this many attempts

	// Subscription endpoint
	AllowedCIDRS           []string // optional, restrict the API to these IPs/CIDRs
	AllowedHosts           []string // optional, accepted Host headers for bookmark/admin routes
	TrustProxy             bool     // resolve client IP from proxy headers
	RateBurst              int      // subscribe/unsubscribe burst per client IP
	RatePerMinute          int      // subscribe/unsubscribe refill per client IP
	AllowInsecureEndpoints bool     // accept http:// push endpoints (dev only)

	// Client
	ServerURL      string        // base URL of a running `storyshelf serve`
	VAPIDPublicKey string        // application server key, base64url
	DeviceDir      string        // local registration state directory
	PushServiceURL string        // base of generated device endpoints
	RemoteTimeout  time.Duration // per-request timeout against ServerURL
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("STORYSHELF_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("STORYSHELF_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("STORYSHELF_LOG_LEVEL", "info"),
		PrettyLog: mustBool("STORYSHELF_PRETTY_LOG", true),

		// Storage
		Backend:      strings.ToLower(getenv("STORYSHELF_BACKEND", BackendSQLite)),
		Namespace:    getenv("STORYSHELF_NAMESPACE", "storyshelf"),
		SQLitePath:   getenv("STORYSHELF_SQLITE_PATH", "storyshelf.sqlite"),
		BookmarkFile: getenv("STORYSHELF_BOOKMARK_FILE", "bookmarks.json"),
		SeedFile:     getenv("STORYSHELF_SEED_FILE", ""), // Optional, empty = no seeding
		SeedInterval: mustDuration("STORYSHELF_SEED_INTERVAL", 0),

		// Redis settings
		RedisAddr:           getenv("STORYSHELF_REDIS_ADDR", "localhost:6379"),
		RedisUser:           getenv("STORYSHELF_REDIS_USERNAME", ""),
		RedisPassword:       getenv("STORYSHELF_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("STORYSHELF_REDIS_DB", 0),
		RedisDT:             mustDuration("STORYSHELF_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("STORYSHELF_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("STORYSHELF_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("STORYSHELF_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("STORYSHELF_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("STORYSHELF_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisMaxWait:        mustDuration("STORYSHELF_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("STORYSHELF_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisWarnThreshold:  getenvInt("STORYSHELF_REDIS_WARN_THRESHOLD", 3),

		// Subscription endpoint
		AllowedCIDRS:           splitAndTrim(getenv("STORYSHELF_ALLOWED_CIDRS", "")),
		AllowedHosts:           splitAndTrim(getenv("STORYSHELF_ALLOWED_HOSTS", "")),
		TrustProxy:             mustBool("STORYSHELF_TRUST_PROXY", false),
		RateBurst:              getenvInt("STORYSHELF_RATE_BURST", 10),
		RatePerMinute:          getenvInt("STORYSHELF_RATE_PER_MIN", 30),
		AllowInsecureEndpoints: mustBool("STORYSHELF_ALLOW_INSECURE_ENDPOINTS", false),

		// Client
		ServerURL:      strings.TrimRight(getenv("STORYSHELF_SERVER_URL", "http://localhost:8080"), "/"),
		VAPIDPublicKey: getenv("STORYSHELF_VAPID_PUBLIC_KEY", ""),
		DeviceDir:      getenv("STORYSHELF_DEVICE_DIR", defaultDeviceDir()),
		PushServiceURL: strings.TrimRight(getenv("STORYSHELF_PUSH_SERVICE_URL", "https://push.storyshelf.local/send"), "/"),
		RemoteTimeout:  mustDuration("STORYSHELF_REMOTE_TIMEOUT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfgCopy.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// Validate checks cross-field constraints that env parsing alone can't express.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("STORYSHELF_SQLITE_PATH is required for backend %q", c.Backend)
		}
	case BackendFile:
		if c.BookmarkFile == "" {
			return fmt.Errorf("STORYSHELF_BOOKMARK_FILE is required for backend %q", c.Backend)
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("STORYSHELF_REDIS_ADDR is required for backend %q", c.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORYSHELF_BACKEND %q", c.Backend)
	}
	if c.Namespace == "" {
		return fmt.Errorf("STORYSHELF_NAMESPACE must not be empty")
	}
	return nil
}

// RequireVAPIDKey returns the application server key or an error when the
// client is used without one.
func (c *Config) RequireVAPIDKey() (string, error) {
	if c.VAPIDPublicKey == "" {
		return "", fmt.Errorf("STORYSHELF_VAPID_PUBLIC_KEY is not set")
	}
	return c.VAPIDPublicKey, nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func defaultDeviceDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + string(os.PathSeparator) + "storyshelf"
	}
	return ".storyshelf"
}
