package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"i4.energy/across/loragw/kafka"
	"i4.energy/across/loragw/mqtt"
	"i4.energy/across/loragw/valkey"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// HTTPToken, if set, is required as "Authorization: Bearer <token>"
	HTTPToken string `yaml:"http_token"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 9600)
	BaudRate int `yaml:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// PollInterval is the period of the CheckAlive poll. Zero disables polling.
	PollInterval time.Duration `yaml:"poll_interval"`
	// ReplyTimeout bounds a single command cycle
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
	// MaxRetries is the number of times a command failing on the serial
	// line is repeated
	MaxRetries int `yaml:"max_retries"`

	// Result sinks. A sink is enabled when its address is set.
	MQTT   mqtt.Config   `yaml:"mqtt"`
	Valkey valkey.Config `yaml:"valkey"`
	Kafka  kafka.Config  `yaml:"kafka"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 9600
		c.LogLevel = "info"
		c.PollInterval = 30 * time.Second
		c.ReplyTimeout = 5 * time.Second
		c.MaxRetries = 2
		c.MQTT.ClientID = "lorae5-gw"
		c.MQTT.Topic = "lorae5"
		c.Valkey.KeyPrefix = "lorae5"
		c.Kafka.Topic = "lorae5"
		return nil
	}
}

// WithFile overlays the YAML file at path. An empty path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		strs := map[string]*string{
			"BIND_ADDRESS":    &c.BindAddress,
			"HTTP_TOKEN":      &c.HTTPToken,
			"SERIAL_PORT":     &c.SerialPort,
			"LOG_LEVEL":       &c.LogLevel,
			"MQTT_BROKER":     &c.MQTT.Broker,
			"MQTT_CLIENT_ID":  &c.MQTT.ClientID,
			"MQTT_TOPIC":      &c.MQTT.Topic,
			"MQTT_USERNAME":   &c.MQTT.Username,
			"MQTT_PASSWORD":   &c.MQTT.Password,
			"VALKEY_ADDRESS":  &c.Valkey.Address,
			"VALKEY_PASSWORD": &c.Valkey.Password,
			"KAFKA_TOPIC":     &c.Kafka.Topic,
		}
		for key, dst := range strs {
			if v := os.Getenv(key); v != "" {
				*dst = v
			}
		}

		if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
			c.Kafka.Brokers = splitList(brokers)
		}

		if err := setInt(&c.BaudRate, "BAUD_RATE", os.Getenv("BAUD_RATE")); err != nil {
			return err
		}
		if err := setInt(&c.MaxRetries, "MAX_RETRIES", os.Getenv("MAX_RETRIES")); err != nil {
			return err
		}
		if err := setDuration(&c.PollInterval, "POLL_INTERVAL", os.Getenv("POLL_INTERVAL")); err != nil {
			return err
		}
		return setDuration(&c.ReplyTimeout, "REPLY_TIMEOUT", os.Getenv("REPLY_TIMEOUT"))
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *flag.Flag) {
			if err != nil {
				return
			}
			value := f.Value.String()
			switch f.Name {
			case "bind-address":
				c.BindAddress = value
			case "http-token":
				c.HTTPToken = value
			case "serial-port":
				c.SerialPort = value
			case "baud-rate":
				err = setInt(&c.BaudRate, f.Name, value)
			case "log-level":
				c.LogLevel = value
			case "poll-interval":
				err = setDuration(&c.PollInterval, f.Name, value)
			case "reply-timeout":
				err = setDuration(&c.ReplyTimeout, f.Name, value)
			case "max-retries":
				err = setInt(&c.MaxRetries, f.Name, value)
			case "mqtt-broker":
				c.MQTT.Broker = value
			case "mqtt-topic":
				c.MQTT.Topic = value
			case "valkey-address":
				c.Valkey.Address = value
			case "kafka-brokers":
				c.Kafka.Brokers = splitList(value)
			case "kafka-topic":
				c.Kafka.Topic = value
			}
		})
		return err
	}
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setInt(dst *int, name, value string) error {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, name, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
