package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Renderer and snapshot backend choices.
const (
	RendererMemory = "memory"
	RendererChrome = "chrome"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Engine
	CollapseThreshold int           // member count that auto-collapses a group (default: 3)
	IdleHorizon       time.Duration // idle time that drives the time factor to zero (default: 1h)
	HibernateBelow    float64       // priority below which a tab is hibernated (default: 0.3)
	SnoozeBelow       float64       // priority below which a tab is snoozed (default: 0.6)
	QueueSize         int           // mutation queue capacity (default: 256)
	WorkspaceFile     string        // optional YAML seed (empty = start with no tabs)

	// Pressure monitor
	MonitorInterval time.Duration // sampling interval (default: 60s)
	MemoryThreshold float64       // system memory percent that triggers a sweep (default: 75)
	HistorySize     int           // trailing sample window used for the trend (default: 10)
	JanitorInterval time.Duration // orphan snapshot collection interval (default: 1h)

	// Renderer
	Renderer       string        // "memory" | "chrome"
	ChromeHeadless bool          // run chrome without a window (default: true)
	ChromePath     string        // optional chrome executable
	LoadTimeout    time.Duration // per-page load deadline for chrome (default: 30s)

	// Snapshots
	SnapshotBackend string        // "memory" | "redis"
	SnapshotTTL     time.Duration // redis key expiry (default: 168h)
	InstanceID      string        // redis key namespace (empty = random per process)

	// Redis, only read when SnapshotBackend is "redis"
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedCIDRS []string // optional, restrict /api to specific IPs or CIDRs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	RateLimitBurst  int // mutating /api requests allowed in a burst per IP (0 = unlimited)
	RateLimitPerMin int // bucket refill per IP per minute
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("TABKEEPER_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("TABKEEPER_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("TABKEEPER_LOG_LEVEL", "info"),
		PrettyLog: mustBool("TABKEEPER_PRETTY_LOG", true),

		// Engine
		CollapseThreshold: getenvInt("TABKEEPER_COLLAPSE_THRESHOLD", 3),
		IdleHorizon:       mustDuration("TABKEEPER_IDLE_HORIZON", time.Hour),
		HibernateBelow:    getenvFloat("TABKEEPER_HIBERNATE_BELOW", 0.3),
		SnoozeBelow:       getenvFloat("TABKEEPER_SNOOZE_BELOW", 0.6),
		QueueSize:         getenvInt("TABKEEPER_QUEUE_SIZE", 256),
		WorkspaceFile:     getenv("TABKEEPER_WORKSPACE_FILE", ""),

		// Pressure monitor
		MonitorInterval: mustDuration("TABKEEPER_MONITOR_INTERVAL", 60*time.Second),
		MemoryThreshold: getenvFloat("TABKEEPER_MEMORY_THRESHOLD", 75),
		HistorySize:     getenvInt("TABKEEPER_HISTORY_SIZE", 10),
		JanitorInterval: mustDuration("TABKEEPER_JANITOR_INTERVAL", time.Hour),

		// Renderer
		Renderer:       strings.ToLower(getenv("TABKEEPER_RENDERER", RendererMemory)),
		ChromeHeadless: mustBool("TABKEEPER_CHROME_HEADLESS", true),
		ChromePath:     getenv("TABKEEPER_CHROME_PATH", ""),
		LoadTimeout:    mustDuration("TABKEEPER_LOAD_TIMEOUT", 30*time.Second),

		// Snapshots
		SnapshotBackend: strings.ToLower(getenv("TABKEEPER_SNAPSHOT_BACKEND", BackendMemory)),
		SnapshotTTL:     mustDuration("TABKEEPER_SNAPSHOT_TTL", 7*24*time.Hour),
		InstanceID:      getenv("TABKEEPER_INSTANCE_ID", ""),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("TABKEEPER_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("TABKEEPER_TRUST_PROXY", false),

		RateLimitBurst:  getenvInt("TABKEEPER_RATE_LIMIT_BURST", 30),
		RateLimitPerMin: getenvInt("TABKEEPER_RATE_LIMIT_PER_MIN", 120),
	}

	if cfg.SnapshotBackend == BackendRedis {
		loadRedis(cfg)
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("TABKEEPER_REDIS_ADDR")
	cfg.RedisUser = getenv("TABKEEPER_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("TABKEEPER_REDIS_PASSWORD_REQUIRED", true)
	cfg.RedisPassword = getenv("TABKEEPER_REDIS_PASSWORD", "")
	cfg.RedisDB = requireEnvInt("TABKEEPER_REDIS_DB")
	cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)
}

// Validate checks that thresholds are consistent and choices are known.
func (c *Config) Validate() error {
	if !(c.HibernateBelow > 0 && c.HibernateBelow < c.SnoozeBelow && c.SnoozeBelow <= 1) {
		return fmt.Errorf("thresholds must satisfy 0 < TABKEEPER_HIBERNATE_BELOW (%v) < TABKEEPER_SNOOZE_BELOW (%v) <= 1",
			c.HibernateBelow, c.SnoozeBelow)
	}
	if c.MemoryThreshold <= 0 || c.MemoryThreshold > 100 {
		return fmt.Errorf("TABKEEPER_MEMORY_THRESHOLD must be in (0,100], got %v", c.MemoryThreshold)
	}
	if c.CollapseThreshold < 1 {
		return fmt.Errorf("TABKEEPER_COLLAPSE_THRESHOLD must be >= 1, got %d", c.CollapseThreshold)
	}
	if c.HistorySize < 2 {
		return fmt.Errorf("TABKEEPER_HISTORY_SIZE must be >= 2, got %d", c.HistorySize)
	}
	if c.IdleHorizon <= 0 {
		return fmt.Errorf("TABKEEPER_IDLE_HORIZON must be > 0, got %v", c.IdleHorizon)
	}
	if c.MonitorInterval <= 0 || c.JanitorInterval <= 0 {
		return fmt.Errorf("monitor and janitor intervals must be > 0")
	}
	switch c.Renderer {
	case RendererMemory, RendererChrome:
	default:
		return fmt.Errorf("unknown TABKEEPER_RENDERER %q", c.Renderer)
	}
	switch c.SnapshotBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisPasswordRequired && c.RedisPassword == "" {
			return fmt.Errorf("TABKEEPER_REDIS_PASSWORD is required when TABKEEPER_REDIS_PASSWORD_REQUIRED=true")
		}
	default:
		return fmt.Errorf("unknown TABKEEPER_SNAPSHOT_BACKEND %q", c.SnapshotBackend)
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
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

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
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
