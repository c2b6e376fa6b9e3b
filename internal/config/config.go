package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	LockLocal = "local"
	LockRedis = "redis"

	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`

	Store     StoreConfig     `yaml:"store"`
	Lock      LockConfig      `yaml:"lock"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
}

type LockConfig struct {
	Driver   string        `yaml:"driver"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	EventsTopic     string   `yaml:"events_topic"`
	CommandsTopic   string   `yaml:"commands_topic"`
	RepliesTopic    string   `yaml:"replies_topic"`
	ConsumerGroup   string   `yaml:"consumer_group"`
	ListenerEnabled bool     `yaml:"listener_enabled"`
}

type TelemetryConfig struct {
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		AppEnv:   "dev",
		LogLevel: "info",
		HTTPAddr: ":8080",
		Store: StoreConfig{
			Driver: StoreMemory,
		},
		Lock: LockConfig{
			Driver: LockLocal,
			TTL:    10 * time.Second,
		},
		Kafka: KafkaConfig{
			EventsTopic:   "cart.events",
			CommandsTopic: "cart.commands",
			RepliesTopic:  "cart.commands.reply",
			ConsumerGroup: "shopping-cart",
		},
		Telemetry: TelemetryConfig{
			Exporter: ExporterNone,
		},
	}
}

// Load starts from Default, applies the YAML file named by CONFIG_FILE if any,
// then environment variables, and validates the result.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.AppEnv = getEnv("APP_ENV", c.AppEnv)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DatabaseURL = getEnv("DATABASE_URL", c.Store.DatabaseURL)

	c.Lock.Driver = getEnv("LOCK_DRIVER", c.Lock.Driver)
	c.Lock.RedisURL = getEnv("REDIS_URL", c.Lock.RedisURL)
	ttl, err := getEnvDuration("LOCK_TTL", c.Lock.TTL)
	if err != nil {
		return err
	}
	c.Lock.TTL = ttl

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.EventsTopic = getEnv("KAFKA_EVENTS_TOPIC", c.Kafka.EventsTopic)
	c.Kafka.CommandsTopic = getEnv("KAFKA_COMMANDS_TOPIC", c.Kafka.CommandsTopic)
	c.Kafka.RepliesTopic = getEnv("KAFKA_REPLIES_TOPIC", c.Kafka.RepliesTopic)
	c.Kafka.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", c.Kafka.ConsumerGroup)
	enabled, err := getEnvBool("KAFKA_LISTENER_ENABLED", c.Kafka.ListenerEnabled)
	if err != nil {
		return err
	}
	c.Kafka.ListenerEnabled = enabled

	c.Telemetry.Exporter = getEnv("OTEL_EXPORTER", c.Telemetry.Exporter)
	c.Telemetry.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Endpoint)
	return nil
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Lock.Driver {
	case LockLocal:
	case LockRedis:
		if c.Lock.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock driver %q", c.Lock.Driver))
	}
	if c.Lock.TTL <= 0 {
		errs = append(errs, errors.New("LOCK_TTL must be positive"))
	}

	if c.Kafka.ListenerEnabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when the listener is enabled"))
	}

	switch c.Telemetry.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("unknown telemetry exporter %q", c.Telemetry.Exporter))
	}

	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
