// Package mqtt publishes modem command results to an MQTT broker and
// accepts command requests from it.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotRunning is returned by Publish before Start or after Stop.
var ErrNotRunning = errors.New("mqtt publisher not running")

// RequestTopic is the subtopic of Config.Topic carrying command requests.
const RequestTopic = "request"

type Config struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	// Topic is the root topic. Results go to <Topic>/<command>, requests
	// are read from <Topic>/request.
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RequestHandler receives the payload of a message on the request topic.
type RequestHandler func(payload []byte)

// Publisher handles publishing results to a single broker.
type Publisher struct {
	config  Config
	logger  *slog.Logger
	client  pahomqtt.Client
	handler RequestHandler
	running bool
	mu      sync.RWMutex
}

func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		config: cfg,
		logger: logger,
	}
}

// SetRequestHandler installs the handler for command requests. It must be
// called before Start.
func (p *Publisher) SetRequestHandler(h RequestHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Start connects to the broker and subscribes to the request topic if a
// RequestHandler is installed.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	handler := p.handler
	p.mu.RUnlock()

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.logger.Warn("Connection lost", "broker", p.config.Broker, "error", err)
	})

	requestTopic := JoinTopic(p.config.Topic, RequestTopic)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		p.logger.Info("Connected", "broker", p.config.Broker)
		if handler == nil {
			return
		}
		token := c.Subscribe(requestTopic, 1, func(_ pahomqtt.Client, m pahomqtt.Message) {
			handler(m.Payload())
		})
		if token.Wait() && token.Error() != nil {
			p.logger.Error("Subscribe failed", "topic", requestTopic, "error", token.Error())
		}
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("connect to %s: timeout", p.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", p.config.Broker, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		client.Disconnect(100)
		return nil
	}
	p.client = client
	p.running = true
	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.running = false
	p.mu.Unlock()

	if client != nil {
		client.Disconnect(500)
	}
}

// Topic returns the topic results of command are published to.
func (p *Publisher) Topic(command string) string {
	return JoinTopic(p.config.Topic, command)
}

// Publish sends payload to <Topic>/<command> and waits for the broker to
// acknowledge it or ctx to end.
func (p *Publisher) Publish(ctx context.Context, command string, payload []byte) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return ErrNotRunning
	}

	topic := p.Topic(command)
	token := client.Publish(topic, 1, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
}

// JoinTopic joins topic levels with slashes, dropping empty levels and
// stray separators.
func JoinTopic(levels ...string) string {
	var parts []string
	for _, l := range levels {
		l = strings.Trim(l, "/")
		if l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "/")
}
