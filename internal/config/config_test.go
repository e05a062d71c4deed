package config

import (
	"os"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestRequireEnvInt(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		expected  int
		wantPanic bool
	}{
		{
			name:      "valid integer",
			key:       "TEST_INT",
			value:     "42",
			expected:  42,
			wantPanic: false,
		},
		{
			name:      "invalid integer",
			key:       "TEST_INT_INVALID",
			value:     "not_a_number",
			wantPanic: true,
		},
		{
			name:      "missing variable",
			key:       "TEST_INT_MISSING",
			value:     "",
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnvInt() should have panicked")
					}
				}()
			}

			result := requireEnvInt(tt.key)
			if !tt.wantPanic && result != tt.expected {
				t.Errorf("requireEnvInt() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestGetenvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_FLOAT_INVALID", "quarter")

	if got := getenvFloat("TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getenvFloat() = %v, want 0.25", got)
	}
	if got := getenvFloat("TEST_FLOAT_INVALID", 1); got != 1 {
		t.Errorf("getenvFloat() = %v, want default 1", got)
	}
	if got := getenvFloat("TEST_FLOAT_MISSING", 2); got != 2 {
		t.Errorf("getenvFloat() = %v, want default 2", got)
	}
}

func validConfig() Config {
	return Config{
		CollapseThreshold: 3,
		IdleHorizon:       time.Hour,
		HibernateBelow:    0.3,
		SnoozeBelow:       0.6,
		MonitorInterval:   time.Minute,
		MemoryThreshold:   75,
		HistorySize:       10,
		JanitorInterval:   time.Hour,
		Renderer:          RendererMemory,
		SnapshotBackend:   BackendMemory,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "snooze equals one", mutate: func(c *Config) { c.SnoozeBelow = 1 }},
		{name: "hibernate zero", mutate: func(c *Config) { c.HibernateBelow = 0 }, wantErr: true},
		{name: "thresholds inverted", mutate: func(c *Config) { c.HibernateBelow = 0.7 }, wantErr: true},
		{name: "snooze above one", mutate: func(c *Config) { c.SnoozeBelow = 1.5 }, wantErr: true},
		{name: "memory threshold zero", mutate: func(c *Config) { c.MemoryThreshold = 0 }, wantErr: true},
		{name: "memory threshold hundred", mutate: func(c *Config) { c.MemoryThreshold = 100 }},
		{name: "memory threshold above hundred", mutate: func(c *Config) { c.MemoryThreshold = 101 }, wantErr: true},
		{name: "collapse threshold zero", mutate: func(c *Config) { c.CollapseThreshold = 0 }, wantErr: true},
		{name: "history of one", mutate: func(c *Config) { c.HistorySize = 1 }, wantErr: true},
		{name: "unknown renderer", mutate: func(c *Config) { c.Renderer = "webkit" }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.SnapshotBackend = "disk" }, wantErr: true},
		{
			name: "redis without required password",
			mutate: func(c *Config) {
				c.SnapshotBackend = BackendRedis
				c.RedisPasswordRequired = true
			},
			wantErr: true,
		},
		{
			name: "redis without password allowed",
			mutate: func(c *Config) {
				c.SnapshotBackend = BackendRedis
				c.RedisPasswordRequired = false
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Renderer != RendererMemory || cfg.SnapshotBackend != BackendMemory {
		t.Errorf("Load() renderer=%q backend=%q, want memory/memory", cfg.Renderer, cfg.SnapshotBackend)
	}
	if cfg.CollapseThreshold != 3 || cfg.HistorySize != 10 {
		t.Errorf("Load() collapse=%d history=%d", cfg.CollapseThreshold, cfg.HistorySize)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("redis settings should not be read for the memory backend, got %q", cfg.RedisAddr)
	}
}

func TestLoadRedisBackendRequiresAddr(t *testing.T) {
	t.Setenv("TABKEEPER_SNAPSHOT_BACKEND", "redis")

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should have panicked without TABKEEPER_REDIS_ADDR")
		}
	}()
	Load()
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("TABKEEPER_HIBERNATE_BELOW", "0.8")
	t.Setenv("TABKEEPER_SNOOZE_BELOW", "0.5")

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should have panicked on inverted thresholds")
		}
	}()
	Load()
}
