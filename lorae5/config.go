package lorae5

import (
	"log/slog"
	"time"
)

type Config struct {
	Dialer Dialer
	Logger *slog.Logger
	// ReplyTimeout bounds every SendCommand. An earlier context deadline
	// still wins.
	ReplyTimeout time.Duration
	// InitTimeout bounds the probe performed by New.
	InitTimeout time.Duration
	// PollInterval is the pause before retrying a transport that had no
	// byte ready.
	PollInterval time.Duration
	// ReplyBudget is the number of bytes read before giving up on a line
	// terminator. It cannot exceed ReplyBufferSize.
	ReplyBudget int
	// SkipProbe disables the CheckAlive probe in New.
	SkipProbe bool
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.ReplyTimeout == 0 {
		c.ReplyTimeout = 5 * time.Second
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = 10 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Millisecond
	}
	if c.ReplyBudget <= 0 || c.ReplyBudget > ReplyBufferSize {
		c.ReplyBudget = ReplyBufferSize
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithReplyTimeout(d time.Duration) *ConfigBuilder {
	b.config.ReplyTimeout = d
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.InitTimeout = d
	return b
}

func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.PollInterval = d
	return b
}

func (b *ConfigBuilder) WithReplyBudget(n int) *ConfigBuilder {
	b.config.ReplyBudget = n
	return b
}

func (b *ConfigBuilder) WithoutProbe() *ConfigBuilder {
	b.config.SkipProbe = true
	return b
}

// Build validates the collected settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
