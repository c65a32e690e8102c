// Package config loads the hub configuration from defaults, an optional YAML file
// and HUB_ environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// PathEnvVar names the YAML file to load.
	PathEnvVar = "CONFIG_PATH"
	// DefaultPath is used when PathEnvVar is unset.
	DefaultPath = "config.yaml"
	envPrefix   = "HUB_"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Storage backends.
const (
	BackendFile   = "file"
	BackendGCS    = "gcs"
	BackendBadger = "badger"
)

// Config is the whole hub configuration.
type Config struct {
	LogLevel    string          `koanf:"log_level"`
	API         APIConfig       `koanf:"api"`
	Storage     StorageConfig   `koanf:"storage"`
	LaMetric    LaMetricConfig  `koanf:"lametric"`
	Sports      SportsConfig    `koanf:"sports"`
	Music       MusicConfig     `koanf:"music"`
	Livescore   LivescoreConfig `koanf:"livescore"`
	Rotation    RotationConfig  `koanf:"rotation"`
	Poll        PollConfig      `koanf:"poll"`
	MQTT        MQTTConfig      `koanf:"mqtt"`
	Display     []string        `koanf:"display"`     // normal rotation, in order
	Screensaver []string        `koanf:"screensaver"` // rotation while the screensaver window is active
	Mock        bool            `koanf:"mock"`        // log device calls instead of sending them
}

// APIConfig is the ingestion server.
type APIConfig struct {
	Host    string   `koanf:"host"`
	Port    string   `koanf:"port"`
	Secret  string   `koanf:"secret"`
	Devices []string `koanf:"devices"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	Bucket  string `koanf:"bucket"`
}

// AppConfig describes one app slot on the device.
type AppConfig struct {
	Package  string `koanf:"package"`
	PushURL  string `koanf:"push_url"`
	Token    string `koanf:"token"`
	Duration int    `koanf:"duration"` // seconds
}

// LaMetricConfig is the display device.
type LaMetricConfig struct {
	Apps          map[string]AppConfig `koanf:"apps"`
	Host          string               `koanf:"host"`
	User          string               `koanf:"user"`
	APIKey        string               `koanf:"api_key"`
	Timezone      string               `koanf:"timezone"`
	Timeout       time.Duration        `koanf:"timeout"`
	RatePerSecond float64              `koanf:"rate_per_second"`
	QueueSize     int                  `koanf:"queue_size"`
}

// SportsConfig is the sports backend.
type SportsConfig struct {
	Host              string        `koanf:"host"`
	Group             string        `koanf:"group"`
	Webhook           string        `koanf:"webhook"`
	Timeout           time.Duration `koanf:"timeout"`
	LeagueScheduleTTL time.Duration `koanf:"league_schedule_ttl"`
	TeamScheduleTTL   time.Duration `koanf:"team_schedule_ttl"`
}

// MusicConfig is the music-player backend.
type MusicConfig struct {
	Host    string        `koanf:"host"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
}

// TeamConfig binds the single-team widget.
type TeamConfig struct {
	App string `koanf:"app"`
	ID  int    `koanf:"id"`
}

// LivescoreConfig lists the subscription widgets.
type LivescoreConfig struct {
	Leagues  map[string]int `koanf:"leagues"` // app name -> competition id
	Team     TeamConfig     `koanf:"team"`
	Expiry   time.Duration  `koanf:"expiry"`
	CronHour int            `koanf:"cron_hour"`
}

// RotationConfig tunes the display loop.
type RotationConfig struct {
	Tick      time.Duration `koanf:"tick"`
	BusBuffer int64         `koanf:"bus_buffer"`
}

// PollConfig tunes score refreshes.
type PollConfig struct {
	InPlay time.Duration `koanf:"in_play"`
	Idle   time.Duration `koanf:"idle"`
}

// MQTTConfig is the sensor broker. An empty broker disables the listener.
type MQTTConfig struct {
	Broker          string `koanf:"broker"`
	Username        string `koanf:"username"`
	Password        string `koanf:"password"`
	Topic           string `koanf:"topic"`
	PrimaryLocation string `koanf:"primary_location"`
}

func defaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		API: APIConfig{
			Port: "8080",
		},
		Storage: StorageConfig{
			Backend: BackendBadger,
			Path:    "data",
		},
		LaMetric: LaMetricConfig{
			User:          "dev",
			Timezone:      "Local",
			Timeout:       10 * time.Second,
			RatePerSecond: 5,
			QueueSize:     64,
		},
		Sports: SportsConfig{
			Timeout:           10 * time.Second,
			LeagueScheduleTTL: 5 * time.Hour,
			TeamScheduleTTL:   time.Hour,
		},
		Music: MusicConfig{
			Timeout: 3 * time.Second,
		},
		Livescore: LivescoreConfig{
			Expiry:   4 * time.Hour,
			CronHour: 6,
		},
		Rotation: RotationConfig{
			Tick:      150 * time.Millisecond,
			BusBuffer: 256,
		},
		Poll: PollConfig{
			InPlay: time.Minute,
			Idle:   10 * time.Minute,
		},
		MQTT: MQTTConfig{
			Topic:           "sensors/#",
			PrimaryLocation: "living",
		},
	}
}

// sliceConfigPaths are read from the environment as comma-separated lists.
var sliceConfigPaths = []string{
	"api.devices",
	"display",
	"screensaver",
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path := os.Getenv(PathEnvVar)
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if os.Getenv(PathEnvVar) != "" {
		return nil, fmt.Errorf("stat config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps HUB_LAMETRIC__API_KEY to lametric.api_key.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

func splitSlices(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for p := range strings.SplitSeq(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// Location returns the display timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.LaMetric.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.LaMetric.Timezone, err)
	}
	return loc, nil
}

// Validate fails on settings the hub cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendFile, BackendBadger:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required"))
		}
	case BackendGCS:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	if !c.Mock {
		if c.LaMetric.Host == "" {
			errs = append(errs, errors.New("lametric.host is required"))
		}
		if c.LaMetric.APIKey == "" {
			errs = append(errs, errors.New("lametric.api_key is required"))
		}
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	if len(c.Display) == 0 {
		errs = append(errs, errors.New("display rotation list is empty"))
	}
	for _, name := range append(append([]string(nil), c.Display...), c.Screensaver...) {
		if _, ok := c.LaMetric.Apps[name]; !ok {
			errs = append(errs, fmt.Errorf("rotation entry %q has no lametric.apps definition", name))
		}
	}
	if c.Livescore.CronHour < 0 || c.Livescore.CronHour > 23 {
		errs = append(errs, fmt.Errorf("livescore.cron_hour %d out of range", c.Livescore.CronHour))
	}
	if c.Livescore.Team.App != "" && c.Livescore.Team.ID == 0 {
		errs = append(errs, errors.New("livescore.team.id is required when livescore.team.app is set"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
