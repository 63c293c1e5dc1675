package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"i4.energy/across/loragw/lorae5"
	"i4.energy/across/loragw/kafka"
	"i4.energy/across/loragw/mqtt"
	"i4.energy/across/loragw/valkey"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML configuration file")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", lorae5.DefaultBaudRate, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("http-token", "", "Bearer token required by the HTTP API (optional)")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Duration("poll-interval", 30*time.Second, "Interval of the modem health poll, 0 disables it")
	flag.Duration("reply-timeout", 5*time.Second, "Timeout of a single command")
	flag.Int("max-retries", 2, "Repeats of a command that failed on the serial line")
	flag.String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (optional)")
	flag.String("mqtt-topic", "lorae5", "MQTT root topic")
	flag.String("valkey-address", "", "Valkey/Redis address, e.g. localhost:6379 (optional)")
	flag.String("kafka-brokers", "", "Comma separated Kafka brokers (optional)")
	flag.String("kafka-topic", "lorae5", "Kafka topic for results")
	flag.Parse()

	if *listPorts {
		ports, err := lorae5.ListPorts()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: config.SlogLevel()}))

	driverConfig, err := lorae5.NewConfigBuilder().
		WithReplyTimeout(config.ReplyTimeout).
		WithLogger(logger.With("component", "lorae5")).
		WithDialer(lorae5.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		Build()
	if err != nil {
		logger.Error("Failed to create driver config", "error", err)
		os.Exit(1)
	}

	driver, err := lorae5.New(context.Background(), driverConfig)
	if err != nil {
		logger.Error("Failed to open modem", "error", err, "port", config.SerialPort)
		os.Exit(1)
	}

	logger.Info("Starting LoRa-E5 gateway", "port", config.SerialPort, "baud", config.BaudRate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.With("component", "websocket"))
	gateway := NewGateway(driver, logger.With("component", "gateway"), GatewayConfig{
		PollInterval: config.PollInterval,
		MaxRetries:   config.MaxRetries,
	}, hub)
	var stops []func()

	if config.MQTT.Broker != "" {
		pub := mqtt.NewPublisher(config.MQTT, logger.With("component", "mqtt"))
		// Requests can arrive as soon as the subscription exists.
		pub.SetRequestHandler(gateway.HandleRequest)
		if startSink(gateway, logger, "mqtt", pub, pub.Start) {
			stops = append(stops, pub.Stop)
		}
	}

	if config.Valkey.Address != "" {
		pub := valkey.NewPublisher(config.Valkey, logger.With("component", "valkey"))
		if startSink(gateway, logger, "valkey", pub, func() error { return pub.Start(ctx) }) {
			stops = append(stops, func() { pub.Stop() })
		}
	}

	if len(config.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(config.Kafka, logger.With("component", "kafka"))
		if startSink(gateway, logger, "kafka", producer, func() error { return producer.Start(ctx) }) {
			stops = append(stops, func() { producer.Stop() })
		}
	}

	gatewayDone := make(chan error, 1)
	go func() {
		gatewayDone <- gateway.Run(ctx)
	}()

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:  logger.With("component", "server"),
			Gateway: gateway,
			Token:   config.HTTPToken,
			Stream:  hub,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	cancel()
	<-gatewayDone

	for _, stop := range stops {
		stop()
	}

	logger.Info("Closing modem connection")
	if err := driver.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}
}
