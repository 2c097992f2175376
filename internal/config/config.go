package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/crack2116/fleettrack/internal/tracking"
	"github.com/crack2116/fleettrack/pkg/model"
	"github.com/crack2116/fleettrack/pkg/storeerr"
)

const (
	StoreMemory = "memory"
	StoreSQL    = "sql"
	StoreRedis  = "redis"
)

type AppConfig struct {
	v *viper.Viper
}

func NewAppConfig() *AppConfig {
	c := &AppConfig{v: viper.New()}

	setDefaults(c.v)

	return c
}

// Load merges every readable yaml file, returns true if at least one was loaded.
func (c *AppConfig) Load(filename ...string) bool {
	loaded := false

	for _, name := range filename {
		c.v.SetConfigFile(name)

		if err := c.v.MergeInConfig(); err != nil {
			slog.Info(fmt.Sprintf("error loading config: %s", err.Error()))
		} else {
			loaded = true
		}
	}

	return loaded
}

// LoadEnv makes PREFIX_TRACKING_CAPACITY override tracking.capacity and so on.
func (c *AppConfig) LoadEnv(prefix string) {
	c.v.SetEnvPrefix(strings.TrimSuffix(prefix, "_"))
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()
}

func (c *AppConfig) Bool(key string) bool {
	return c.v.GetBool(key)
}

func (c *AppConfig) String(key string) string {
	return c.v.GetString(key)
}

func (c *AppConfig) Float64(key string) float64 {
	return c.v.GetFloat64(key)
}

func (c *AppConfig) Int(key string) int {
	return c.v.GetInt(key)
}

func (c *AppConfig) Set(key string, v any) {
	c.v.Set(key, v)
}

func (c *AppConfig) APIAddr() string {
	return c.v.GetString("api_addr")
}

func (c *AppConfig) Store() string {
	return strings.ToLower(c.v.GetString("store"))
}

func (c *AppConfig) DB() string {
	return c.v.GetString("db")
}

func (c *AppConfig) RedisURL() string {
	return c.v.GetString("redis_url")
}

func (c *AppConfig) UsersFile() string {
	return c.v.GetString("users_file")
}

func (c *AppConfig) ServiceUser() string {
	return c.v.GetString("service_user")
}

func (c *AppConfig) LogLevel() slog.Level {
	var l slog.Level

	if err := l.UnmarshalText([]byte(c.v.GetString("log_level"))); err != nil {
		return slog.LevelInfo
	}

	return l
}

func (c *AppConfig) Layout() tracking.Layout {
	return tracking.Layout{
		Anchor:  model.NewPos(c.v.GetFloat64("anchor.lat"), c.v.GetFloat64("anchor.lon")),
		Radius:  c.v.GetFloat64("layout.radius"),
		Epsilon: c.v.GetFloat64("layout.epsilon"),
	}
}

func (c *AppConfig) Tracking() tracking.Config {
	return tracking.Config{
		Layout:        c.Layout(),
		Capacity:      c.v.GetInt("tracking.capacity"),
		Interval:      c.v.GetDuration("tracking.interval"),
		Step:          c.v.GetFloat64("tracking.step"),
		Jitter:        c.v.GetFloat64("tracking.jitter"),
		ArrivalMeters: c.v.GetFloat64("tracking.arrival_meters"),
	}
}

func (c *AppConfig) NotifyCap() int {
	return c.v.GetInt("notify.cap")
}

func (c *AppConfig) Retry() storeerr.Policy {
	return storeerr.Policy{
		Attempts: c.v.GetInt("retry.attempts"),
		Delay:    c.v.GetDuration("retry.delay"),
	}
}

// Validate checks values the server can't start with.
func (c *AppConfig) Validate() error {
	switch c.Store() {
	case StoreMemory:
	case StoreSQL:
		if c.DB() == "" {
			return fmt.Errorf("store %s needs db", StoreSQL)
		}
	case StoreRedis:
		if c.RedisURL() == "" {
			return fmt.Errorf("store %s needs redis_url", StoreRedis)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store())
	}

	if l := c.Layout(); l.Radius <= 0 || l.Epsilon <= 0 {
		return fmt.Errorf("layout radius and epsilon must be positive")
	}

	if c.v.GetFloat64("tracking.step") <= 0 || c.v.GetFloat64("tracking.step") > 1 {
		return fmt.Errorf("tracking.step must be in (0, 1]")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	d := tracking.DefaultConfig()

	v.SetDefault("api_addr", ":8080")
	v.SetDefault("store", StoreMemory)
	v.SetDefault("db", "fleettrack.sqlite")
	v.SetDefault("redis_url", "")
	v.SetDefault("users_file", "users.yml")
	v.SetDefault("service_user", "dispatcher")
	v.SetDefault("log_level", "info")

	v.SetDefault("anchor.lat", d.Layout.Anchor.Lat)
	v.SetDefault("anchor.lon", d.Layout.Anchor.Lon)
	v.SetDefault("layout.radius", d.Layout.Radius)
	v.SetDefault("layout.epsilon", d.Layout.Epsilon)

	v.SetDefault("tracking.capacity", d.Capacity)
	v.SetDefault("tracking.interval", d.Interval)
	v.SetDefault("tracking.step", d.Step)
	v.SetDefault("tracking.jitter", d.Jitter)
	v.SetDefault("tracking.arrival_meters", d.ArrivalMeters)

	v.SetDefault("notify.cap", 50)

	v.SetDefault("retry.attempts", storeerr.DefaultPolicy.Attempts)
	v.SetDefault("retry.delay", storeerr.DefaultPolicy.Delay)
}
