package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"i4.energy/across/loragw/lorae5"
)

// Sender runs a single command cycle. *lorae5.Driver implements it.
type Sender interface {
	SendCommand(ctx context.Context, cmd lorae5.Command) (lorae5.Reply, error)
}

// Sink receives the JSON encoded Result of every command.
type Sink interface {
	Publish(ctx context.Context, command string, payload []byte) error
}

// Result is the outcome of a command as reported to clients and sinks.
type Result struct {
	Command   string    `json:"command"`
	Reply     string    `json:"reply,omitempty"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// Health summarizes the outcome of the last poll.
type Health struct {
	Healthy  bool    `json:"healthy"`
	LastPoll *Result `json:"last_poll,omitempty"`
}

type GatewayConfig struct {
	// PollInterval is the period of the CheckAlive poll. Zero disables it.
	PollInterval time.Duration
	// MaxRetries is the number of repeats of a command that failed on the
	// serial line. Modem error replies are not repeated.
	MaxRetries int
	// RetryDelay is the base pause before a repeat. A random jitter of up
	// to the same amount is added.
	RetryDelay time.Duration
	// PublishTimeout bounds the delivery of a result to one sink.
	PublishTimeout time.Duration
}

type outcome struct {
	result Result
	err    error
}

type job struct {
	ctx  context.Context
	cmd  lorae5.Command
	done chan outcome
}

// Gateway owns the driver. Commands from the API, from MQTT and from the
// poll timer are queued and executed one at a time by Run.
type Gateway struct {
	driver Sender
	logger *slog.Logger
	config GatewayConfig
	sinks  []Sink
	jobs   chan job

	healthy  atomic.Bool
	lastPoll atomic.Pointer[Result]
}

func NewGateway(driver Sender, logger *slog.Logger, config GatewayConfig, sinks ...Sink) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 800 * time.Millisecond
	}
	if config.PublishTimeout == 0 {
		config.PublishTimeout = 5 * time.Second
	}

	g := &Gateway{
		driver: driver,
		logger: logger,
		config: config,
		sinks:  sinks,
		jobs:   make(chan job, 64),
	}
	g.healthy.Store(true)
	return g
}

// AddSink attaches another result sink. It must be called before Run.
func (g *Gateway) AddSink(sink Sink) {
	g.sinks = append(g.sinks, sink)
}

// startSink runs start and attaches sink to g only when it succeeds, so no
// result is handed to a sink without a connection.
func startSink(g *Gateway, logger *slog.Logger, name string, sink Sink, start func() error) bool {
	if err := start(); err != nil {
		logger.Error("Result sink disabled", "sink", name, "error", err)
		return false
	}
	g.AddSink(sink)
	return true
}

// Run executes queued commands and the periodic poll until ctx ends.
func (g *Gateway) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if g.config.PollInterval > 0 {
		ticker := time.NewTicker(g.config.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-g.jobs:
			if err := j.ctx.Err(); err != nil {
				j.done <- outcome{err: err}
				continue
			}
			result, err := g.execute(j.ctx, j.cmd)
			j.done <- outcome{result: result, err: err}
		case <-tick:
			g.poll(ctx)
		}
	}
}

// Execute queues cmd and waits for its result.
func (g *Gateway) Execute(ctx context.Context, cmd lorae5.Command) (Result, error) {
	j := job{ctx: ctx, cmd: cmd, done: make(chan outcome, 1)}

	select {
	case g.jobs <- j:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case o := <-j.done:
		return o.result, o.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// HandleRequest executes a JSON encoded Request. It is the MQTT request
// handler; the result reaches the requester through the sinks.
func (g *Gateway) HandleRequest(payload []byte) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		g.logger.Warn("Malformed request", "error", err)
		return
	}

	cmd, err := ParseCommand(req.Command, req.Arg)
	if err != nil {
		g.logger.Warn("Invalid request", "command", req.Command, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := g.Execute(ctx, cmd); err != nil {
		g.logger.Error("Request failed", "command", req.Command, "error", err)
	}
}

// Health reports the outcome of the last poll.
func (g *Gateway) Health() Health {
	return Health{Healthy: g.healthy.Load(), LastPoll: g.lastPoll.Load()}
}

func (g *Gateway) poll(ctx context.Context) {
	result, err := g.execute(ctx, lorae5.CheckAlive{})
	g.lastPoll.Store(&result)

	healthy := err == nil
	if g.healthy.Swap(healthy) != healthy {
		if healthy {
			g.logger.Info("Modem is responding again")
		} else {
			g.logger.Warn("Modem stopped responding", "error", err)
		}
	}
}

// execute sends cmd, repeating it on serial line failures, and hands the
// result to every sink.
func (g *Gateway) execute(ctx context.Context, cmd lorae5.Command) (Result, error) {
	result := Result{Command: CommandName(cmd)}

	var reply lorae5.Reply
	var err error
	for {
		result.Attempts++
		reply, err = g.driver.SendCommand(ctx, cmd)
		if err == nil || !retryable(err) || result.Attempts > g.config.MaxRetries {
			break
		}

		back := g.config.RetryDelay + rand.N(g.config.RetryDelay)
		g.logger.Debug("Command failed, retrying", "command", result.Command, "error", err, "in", back)
		if !sleep(ctx, back) {
			break
		}
	}

	result.Timestamp = time.Now().UTC()
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Reply = reply.Payload().Text()
	}

	g.publish(ctx, result)
	return result, err
}

func (g *Gateway) publish(ctx context.Context, result Result) {
	if len(g.sinks) == 0 {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		g.logger.Error("Failed to encode result", "error", err)
		return
	}

	for _, sink := range g.sinks {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.config.PublishTimeout)
		if err := sink.Publish(pubCtx, result.Command, payload); err != nil {
			g.logger.Warn("Failed to publish result", "command", result.Command, "sink", fmt.Sprintf("%T", sink), "error", err)
		}
		cancel()
	}
}

// retryable reports whether err came from the serial line rather than from
// the modem rejecting the command or from a caller bug.
func retryable(err error) bool {
	var modemErr *lorae5.ModemError
	if errors.As(err, &modemErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return lorae5.IsTransportError(err)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
