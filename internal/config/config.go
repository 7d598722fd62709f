// Package config loads configs/config.yml through viper, with a default for
// every key so the process can start without a file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // display timezone must resolve in minimal containers

	"github.com/spf13/viper"

	"cellar_monitor/internal/models"
)

const envPrefix = "CELLAR"

// Config is the full process configuration.
type Config struct {
	Port    string                  `mapstructure:"port"`
	Server  ServerConfig            `mapstructure:"server"`
	Log     LogConfig               `mapstructure:"log"`
	DB      DBConfig                `mapstructure:"db"`
	Broker  BrokerConfig            `mapstructure:"broker"`
	Sensors map[string]SensorConfig `mapstructure:"sensors"`
	Window  WindowConfig            `mapstructure:"window"`
	Poll    PollConfig              `mapstructure:"poll"`
	Banner  BannerConfig            `mapstructure:"banner"`
	Display DisplayConfig           `mapstructure:"display"`
}

type ServerConfig struct {
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type BrokerConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Service     string        `mapstructure:"service"`
	ServicePath string        `mapstructure:"service_path"`
	EntityType  string        `mapstructure:"entity_type"`
	EntityID    string        `mapstructure:"entity_id"`
	LastN       int           `mapstructure:"last_n"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// Simulate replaces the broker with a local random-walk source.
	Simulate bool  `mapstructure:"simulate"`
	Seed     int64 `mapstructure:"seed"`
}

// SensorConfig binds a sensor kind to its broker attribute and band.
type SensorConfig struct {
	Attribute string  `mapstructure:"attribute"`
	Min       float64 `mapstructure:"min"`
	Max       float64 `mapstructure:"max"`
}

type WindowConfig struct {
	MaxPoints int `mapstructure:"max_points"`
}

type PollConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type BannerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type DisplayConfig struct {
	Timezone   string `mapstructure:"timezone"`
	TimeFormat string `mapstructure:"time_format"`
}

var (
	errMissingAttribute = errors.New("sensor attribute must not be empty")
	errInvalidBand      = errors.New("sensor min must be <= max")
	errInvalidInterval  = errors.New("intervals must be positive")
	errMissingEntity    = errors.New("broker.entity_id must not be empty")
)

// setDefaults registers a default for every key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", ":memory:")

	v.SetDefault("broker.base_url", "http://107.23.174.107:8666")
	v.SetDefault("broker.service", "smart")
	v.SetDefault("broker.service_path", "/")
	v.SetDefault("broker.entity_type", "device")
	v.SetDefault("broker.entity_id", "urn:ngsi-ld:device007")
	v.SetDefault("broker.last_n", 20)
	v.SetDefault("broker.timeout", "10s")
	v.SetDefault("broker.simulate", false)
	v.SetDefault("broker.seed", 1)

	v.SetDefault("sensors.temperature.attribute", "temperatura")
	v.SetDefault("sensors.temperature.min", 10)
	v.SetDefault("sensors.temperature.max", 18)
	v.SetDefault("sensors.humidity.attribute", "umidade")
	v.SetDefault("sensors.humidity.min", 50)
	v.SetDefault("sensors.humidity.max", 70)
	v.SetDefault("sensors.luminosity.attribute", "luminosidade")
	v.SetDefault("sensors.luminosity.min", 60)
	v.SetDefault("sensors.luminosity.max", 100)

	v.SetDefault("window.max_points", 500)
	v.SetDefault("poll.interval", "5s")
	v.SetDefault("poll.stale_after", "0s") // zero: derived from poll.interval
	v.SetDefault("banner.interval", "3s")
	v.SetDefault("display.timezone", "America/Sao_Paulo")
	v.SetDefault("display.time_format", "02/01 15:04")
}

// Load reads config.yml from dir (if present), overlays CELLAR_* env vars
// and validates the result.
func Load(dir string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(dir) // configs/config.yml
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the monitor relies on.
func (c Config) Validate() error {
	if c.Broker.EntityID == "" {
		return errMissingEntity
	}
	for _, k := range models.SensorKinds {
		sc := c.Sensors[string(k)]
		if sc.Attribute == "" {
			return fmt.Errorf("%s: %w", k, errMissingAttribute)
		}
		if sc.Min > sc.Max {
			return fmt.Errorf("%s: %w", k, errInvalidBand)
		}
	}
	if c.Poll.Interval <= 0 || c.Banner.Interval <= 0 {
		return errInvalidInterval
	}
	return nil
}

// Attributes maps each sensor kind to its broker attribute name.
func (c Config) Attributes() map[models.SensorKind]string {
	out := make(map[models.SensorKind]string, len(models.SensorKinds))
	for _, k := range models.SensorKinds {
		out[k] = c.Sensors[string(k)].Attribute
	}
	return out
}

// Bands maps each sensor kind to its threshold band.
func (c Config) Bands() map[models.SensorKind]models.ThresholdBand {
	out := make(map[models.SensorKind]models.ThresholdBand, len(models.SensorKinds))
	for _, k := range models.SensorKinds {
		sc := c.Sensors[string(k)]
		out[k] = models.ThresholdBand{Min: sc.Min, Max: sc.Max}
	}
	return out
}

// Location resolves the display timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.Display.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
