// Package valkey stores the latest modem command results in Valkey/Redis
// and announces them on Pub/Sub.
package valkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotRunning is returned by Publish before Start or after Stop.
var ErrNotRunning = errors.New("valkey publisher not running")

type Config struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
	// KeyPrefix is prepended to every key and channel, e.g. "lorae5".
	KeyPrefix string `yaml:"key_prefix"`
	// KeyTTL expires stored results. Zero keeps them forever.
	KeyTTL time.Duration `yaml:"key_ttl"`
}

// joinKey joins key segments with colons, trimming colons from each
// segment so no empty key parts appear.
func joinKey(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, ":")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

// Publisher handles publishing results to a Valkey server.
type Publisher struct {
	config Config
	logger *slog.Logger
	client *redis.Client
	mu     sync.RWMutex
}

func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{config: cfg, logger: logger}
}

// Start connects to the server and checks it answers PING.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.RLock()
	running := p.client != nil
	p.mu.RUnlock()
	if running {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         p.config.Address,
		Password:     p.config.Password,
		DB:           p.config.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("connect to valkey at %s: %w", p.config.Address, err)
	}
	p.logger.Info("Connected", "address", p.config.Address, "db", p.config.Database)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		client.Close()
		return nil
	}
	p.client = client
	return nil
}

// Stop disconnects from the server.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// Key returns the key the latest result of command is stored under.
func (p *Publisher) Key(command string) string {
	return joinKey(p.config.KeyPrefix, "result", command)
}

// Channel returns the Pub/Sub channel results of command are announced on.
func (p *Publisher) Channel(command string) string {
	return joinKey(p.config.KeyPrefix, "results", command)
}

// Publish stores payload as the latest result of command and publishes it
// on the command's channel.
func (p *Publisher) Publish(ctx context.Context, command string, payload []byte) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return ErrNotRunning
	}

	key := p.Key(command)
	if err := client.Set(ctx, key, payload, p.config.KeyTTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	channel := p.Channel(command)
	if err := client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}
