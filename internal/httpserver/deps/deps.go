package deps

import (
	"time"

	"github.com/MrSnakeDoc/tabkeeper/internal/engine"
	"github.com/MrSnakeDoc/tabkeeper/internal/hibernation"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
	"github.com/MrSnakeDoc/tabkeeper/internal/metrics"
	"github.com/MrSnakeDoc/tabkeeper/internal/scheduler"
	"github.com/MrSnakeDoc/tabkeeper/internal/version"
)

// MonitorStatus reports the pressure monitor state.
type MonitorStatus interface {
	Status() scheduler.MonitorStatus
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Build        version.Info
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedCIDRS []string         // IPs allowed to access /api endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateLimit    RateLimit        // per-IP limit on mutating /api requests

	Loop         *engine.Loop        // every engine call goes through the loop
	Monitor      MonitorStatus       // nil when the monitor is disabled
	SweepTrigger chan struct{}       // manual pressure check, buffered with capacity 1
	Renderer     string              // "memory" | "chrome"
	Snapshots    hibernation.Backend // stored snapshots, safe for concurrent use
	Metrics      *metrics.Metrics    // nil disables /metrics and request metrics
}

// RateLimit configures the token bucket on mutating requests. Burst 0 disables it.
type RateLimit struct {
	Burst     int
	PerMinute int
}
