package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	delayqueue "github.com/timzifer/delay_queue"
)

// EnvPrefix is prepended to every environment variable, e.g.
// DELAYQ_QUEUE_CAPACITY overrides queue.capacity.
const EnvPrefix = "DELAYQ"

// Config represents the configuration of the load driver and the queue it
// exercises.
type Config struct {
	Queue   QueueConfig   `mapstructure:"queue"`
	Bench   BenchConfig   `mapstructure:"bench"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// QueueConfig holds the queue's capacity and default wait budgets.
type QueueConfig struct {
	// Capacity of zero means unbounded.
	Capacity     int           `mapstructure:"capacity"`
	OfferTimeout time.Duration `mapstructure:"offer_timeout"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

type BenchConfig struct {
	Producers        int           `mapstructure:"producers"`
	Consumers        int           `mapstructure:"consumers"`
	ItemsPerProducer int           `mapstructure:"items_per_producer"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Prefix         string        `mapstructure:"prefix"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"capacity":      "queue.capacity",
	"offer-timeout": "queue.offer_timeout",
	"poll-timeout":  "queue.poll_timeout",
	"producers":     "bench.producers",
	"consumers":     "bench.consumers",
	"items":         "bench.items_per_producer",
	"max-delay":     "bench.max_delay",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
}

// Load reads configuration from defaults, the optional file at path,
// environment variables and, when flags is non-nil, any flag the user set.
// Later sources win.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "failed to bind flag %s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not unmarshal: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.capacity", 0)
	v.SetDefault("queue.offer_timeout", 100*time.Millisecond)
	v.SetDefault("queue.poll_timeout", 50*time.Millisecond)

	v.SetDefault("bench.producers", 4)
	v.SetDefault("bench.consumers", 4)
	v.SetDefault("bench.items_per_producer", 1000)
	v.SetDefault("bench.max_delay", 10*time.Millisecond)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.prefix", "delayq")
	v.SetDefault("metrics.report_interval", time.Second)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Queue.Capacity < 0 {
		return fmt.Errorf("queue.capacity must not be negative, got %d", c.Queue.Capacity)
	}
	if c.Queue.OfferTimeout < 0 || c.Queue.PollTimeout < 0 {
		return fmt.Errorf("queue timeouts must not be negative")
	}
	if c.Bench.Producers < 1 || c.Bench.Consumers < 1 {
		return fmt.Errorf("bench.producers and bench.consumers must be at least 1")
	}
	if c.Bench.ItemsPerProducer < 0 {
		return fmt.Errorf("bench.items_per_producer must not be negative")
	}
	if c.Bench.MaxDelay < 0 {
		return fmt.Errorf("bench.max_delay must not be negative")
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, "invalid logging.level")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Metrics.ReportInterval <= 0 {
		return fmt.Errorf("metrics.report_interval must be positive")
	}
	return nil
}

// QueueCapacity converts the configured capacity into a capacity policy.
func (c *Config) QueueCapacity() delayqueue.Capacity {
	if c.Queue.Capacity == 0 {
		return delayqueue.Unbounded()
	}
	return delayqueue.Bounded(c.Queue.Capacity)
}

// Apply configures logger with the level and formatter.
func (l LoggingConfig) Apply(logger *log.Logger) error {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return errors.Wrap(err, "invalid logging.level")
	}
	logger.SetLevel(level)

	switch l.Format {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
