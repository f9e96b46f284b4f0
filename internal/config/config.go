// ABOUTME: Configuration for the player binary
// ABOUTME: YAML file over defaults, then environment overrides, then validation
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"gopkg.in/yaml.v3"

	"github.com/Sendspin/sendspin-client/pkg/clock"
	"github.com/Sendspin/sendspin-client/pkg/sendspin"
)

// Config represents the player configuration
type Config struct {
	Player    PlayerConfig    `yaml:"player"`
	Server    ServerConfig    `yaml:"server"`
	Sync      SyncConfig      `yaml:"sync"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	UI        UIConfig        `yaml:"ui"`
}

// PlayerConfig describes this player
type PlayerConfig struct {
	Name           string `yaml:"name"`
	ClientID       string `yaml:"client_id"`
	Volume         int    `yaml:"volume"`
	StaticDelayMs  int    `yaml:"static_delay_ms"`
	BufferCapacity int    `yaml:"buffer_capacity"`
	QueueCapacity  int    `yaml:"queue_capacity"`
	Artwork        bool   `yaml:"artwork"`
}

// ServerConfig selects the server. An empty address means discover via mDNS.
type ServerConfig struct {
	Address    string            `yaml:"address"`
	Path       string            `yaml:"path"`
	Candidates []CandidateConfig `yaml:"candidates"`
	Discover   bool              `yaml:"discover"`
}

// CandidateConfig is an alternative address tried on reconnect
type CandidateConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// SyncConfig controls clock sync bursts
type SyncConfig struct {
	BurstSize    int           `yaml:"burst_size"`
	Interval     time.Duration `yaml:"interval"`
	Grace        time.Duration `yaml:"grace"`
	Period       time.Duration `yaml:"period"`
	WarmupPeriod time.Duration `yaml:"warmup_period"`
}

// ReconnectConfig controls connection retries
type ReconnectConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // color, nocolor or json
	File   string `yaml:"file"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// UIConfig selects the terminal UI
type UIConfig struct {
	TUI bool `yaml:"tui"`
}

// Default returns the configuration used without a file
func Default() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "SendSpin Player"
	}
	burst := clock.DefaultBurstConfig()

	return &Config{
		Player: PlayerConfig{
			Name:           hostname,
			Volume:         100,
			BufferCapacity: sendspin.DefaultBufferCapacity,
			QueueCapacity:  100,
			Artwork:        true,
		},
		Server: ServerConfig{
			Path:     "/sendspin",
			Discover: true,
		},
		Sync: SyncConfig{
			BurstSize:    burst.Size,
			Interval:     burst.Interval,
			Grace:        burst.Grace,
			Period:       burst.Period,
			WarmupPeriod: burst.WarmupPeriod,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts:      sendspin.DefaultMaxReconnectAttempts,
			MaxBackoff:       sendspin.DefaultMaxBackoff,
			HandshakeTimeout: sendspin.DefaultHandshakeTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "color",
		},
		UI: UIConfig{TUI: true},
	}
}

// Load reads the configuration file at path over the defaults. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvironmentOverrides(config)

	if config.Player.ClientID == "" {
		config.Player.ClientID = uuid.New().String()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvironmentOverrides applies environment overrides
func applyEnvironmentOverrides(config *Config) {
	if addr := os.Getenv("SENDSPIN_SERVER"); addr != "" {
		config.Server.Address = addr
	}
	if name := os.Getenv("SENDSPIN_NAME"); name != "" {
		config.Player.Name = name
	}
	if level := os.Getenv("SENDSPIN_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if addr := os.Getenv("SENDSPIN_METRICS_ADDR"); addr != "" {
		config.Metrics.Address = addr
	}
}

// Validate checks the configuration for values the player cannot use
func (c *Config) Validate() error {
	var errs []error

	if c.Player.Name == "" {
		errs = append(errs, errors.New("player.name is required"))
	}
	if c.Player.Volume < 0 || c.Player.Volume > 100 {
		errs = append(errs, fmt.Errorf("player.volume %d out of range 0-100", c.Player.Volume))
	}
	if c.Player.StaticDelayMs < -clock.MaxStaticDelayMs || c.Player.StaticDelayMs > clock.MaxStaticDelayMs {
		errs = append(errs, fmt.Errorf("player.static_delay_ms %d out of range ±%d",
			c.Player.StaticDelayMs, clock.MaxStaticDelayMs))
	}
	if c.Player.QueueCapacity < 0 {
		errs = append(errs, errors.New("player.queue_capacity must not be negative"))
	}
	if c.Server.Address == "" && !c.Server.Discover {
		errs = append(errs, errors.New("server.address is required when discovery is disabled"))
	}
	for i, cand := range c.Server.Candidates {
		if cand.Address == "" {
			errs = append(errs, fmt.Errorf("server.candidates[%d].address is required", i))
		}
	}
	if c.Sync.BurstSize < 0 || c.Sync.Interval < 0 || c.Sync.Grace < 0 || c.Sync.Period < 0 || c.Sync.WarmupPeriod < 0 {
		errs = append(errs, errors.New("sync values must not be negative"))
	}
	if c.Reconnect.MaxAttempts < 0 || c.Reconnect.MaxBackoff < 0 || c.Reconnect.HandshakeTimeout < 0 {
		errs = append(errs, errors.New("reconnect values must not be negative"))
	}
	if _, err := logging.LevelFromString(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "color", "nocolor", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be color, nocolor or json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Session converts the configuration into engine settings. Transport,
// metrics and callbacks are left for the caller to fill in.
func (c *Config) Session() sendspin.Config {
	cfg := sendspin.Config{
		ClientID:             c.Player.ClientID,
		Name:                 c.Player.Name,
		BufferCapacity:       c.Player.BufferCapacity,
		Volume:               c.Player.Volume,
		// The engine reads volume 0 as unset
		Muted:                c.Player.Volume == 0,
		QueueCapacity:        c.Player.QueueCapacity,
		HandshakeTimeout:     c.Reconnect.HandshakeTimeout,
		MaxReconnectAttempts: c.Reconnect.MaxAttempts,
		MaxBackoff:           c.Reconnect.MaxBackoff,
		Burst: clock.BurstConfig{
			Size:         c.Sync.BurstSize,
			Interval:     c.Sync.Interval,
			Grace:        c.Sync.Grace,
			Period:       c.Sync.Period,
			WarmupPeriod: c.Sync.WarmupPeriod,
		},
	}
	for _, cand := range c.Server.Candidates {
		cfg.Candidates = append(cfg.Candidates, sendspin.Candidate{Name: cand.Name, Address: cand.Address})
	}
	return cfg
}
