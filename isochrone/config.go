package isochrone

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration loaded from YAML
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Graph      GraphConfig     `yaml:"graph"`
	Profiles   []ProfileConfig `yaml:"profiles"`
	Isochrones IsochroneConfig `yaml:"isochrones"`
	Logging    LoggingConfig   `yaml:"logging"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
	Statistics *StatsConfig    `yaml:"statistics,omitempty"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// GraphConfig locates the road network
type GraphConfig struct {
	Path            string `yaml:"path"`
	MaxVisitedNodes int    `yaml:"max_visited_nodes"`
}

// ProfileConfig describes one travel profile
type ProfileConfig struct {
	Name     string  `yaml:"name"`
	Speed    float64 `yaml:"speed"`     // km/h
	MaxSpeed float64 `yaml:"max_speed"` // km/h, defaults to speed
}

// IsochroneConfig tunes the engine
type IsochroneConfig struct {
	Workers          int     `yaml:"workers"`
	DefaultSmoothing float64 `yaml:"default_smoothing"`
	Limits           Limits  `yaml:"limits"`
}

// LoggingConfig selects the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MQTTConfig configures the optional MQTT transport
type MQTTConfig struct {
	Broker        string `yaml:"broker"`
	ClientID      string `yaml:"client_id"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	RequestTopic  string `yaml:"request_topic"`
	PublishPrefix string `yaml:"publish_prefix"`
	QoS           byte   `yaml:"qos"`
}

// DefaultConfig returns a configuration usable without a file
func DefaultConfig() *Config {
	cfg := &Config{
		Profiles: []ProfileConfig{
			{Name: "foot-walking", Speed: 5, MaxSpeed: 5},
			{Name: "cycling-regular", Speed: 18, MaxSpeed: 30},
			{Name: "driving-car", Speed: 50, MaxSpeed: 130},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Graph.MaxVisitedNodes == 0 {
		c.Graph.MaxVisitedNodes = 1000000
	}
	if c.Isochrones.Workers == 0 {
		c.Isochrones.Workers = 4
	}
	if c.Isochrones.DefaultSmoothing == 0 {
		c.Isochrones.DefaultSmoothing = DefaultSmoothing
	}
	if c.Isochrones.Limits == (Limits{}) {
		c.Isochrones.Limits = Limits{
			MaxLocations:     5,
			MaxRanges:        10,
			MaxRangeTime:     3600,
			MaxRangeDistance: 120000,
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.MQTT.RequestTopic == "" {
		c.MQTT.RequestTopic = "isoreach/request"
	}
	if c.MQTT.PublishPrefix == "" {
		c.MQTT.PublishPrefix = "isoreach"
	}
	for i := range c.Profiles {
		if c.Profiles[i].MaxSpeed == 0 {
			c.Profiles[i].MaxSpeed = c.Profiles[i].Speed
		}
	}
}

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the fields the service cannot default
func (c *Config) Validate() error {
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile must be defined")
	}
	seen := make(map[string]bool, len(c.Profiles))
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profiles[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("profile %s is defined twice", p.Name)
		}
		seen[p.Name] = true
		if p.Speed <= 0 {
			return fmt.Errorf("profiles[%d].speed must be positive for %s", i, p.Name)
		}
		if p.MaxSpeed < p.Speed {
			return fmt.Errorf("profiles[%d].max_speed must not be below speed for %s", i, p.Name)
		}
	}
	if c.Isochrones.Workers < 0 {
		return fmt.Errorf("isochrones.workers must not be negative")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if c.Statistics != nil && c.Statistics.DSN == "" {
		return fmt.Errorf("statistics.dsn is required when statistics are configured")
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ProfileNames lists the configured profiles in order
func (c *Config) ProfileNames() []string {
	names := make([]string, len(c.Profiles))
	for i, p := range c.Profiles {
		names[i] = p.Name
	}
	return names
}
