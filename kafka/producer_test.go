package kafka

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMessage(t *testing.T) {
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	msg := Message("read-id", []byte(`{"ok":true}`), at)

	if string(msg.Key) != "read-id" {
		t.Errorf("Key = %q, want read-id", msg.Key)
	}
	if string(msg.Value) != `{"ok":true}` {
		t.Errorf("Value = %q", msg.Value)
	}
	if !msg.Time.Equal(at) {
		t.Errorf("Time = %s, want %s", msg.Time, at)
	}
}

func TestStartValidatesConfig(t *testing.T) {
	if err := NewProducer(Config{Topic: "lorae5"}, nil).Start(context.Background()); err == nil {
		t.Error("expected error without brokers")
	}
	if err := NewProducer(Config{Brokers: []string{"localhost:9092"}}, nil).Start(context.Background()); err == nil {
		t.Error("expected error without topic")
	}
}

func TestPublishNotRunning(t *testing.T) {
	p := NewProducer(Config{Brokers: []string{"localhost:9092"}, Topic: "lorae5"}, nil)

	err := p.Publish(context.Background(), "check-alive", []byte("{}"))
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Stop() on idle producer: %v", err)
	}
}
