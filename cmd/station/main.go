package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"station-assistant/config"
	"station-assistant/internal/application"
	"station-assistant/internal/infra/httpapi"
	"station-assistant/internal/infra/mqtt"
	"station-assistant/internal/infra/station"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("initializing",
		"app", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)
	if cfg.IsDevelopment() {
		logger.Warn("running in development mode, API is open to any origin")
	}

	sendTimeout, err := time.ParseDuration(cfg.Station.SendTimeout)
	if err != nil {
		logger.Warn("invalid send timeout, using default", "error", err, "value", cfg.Station.SendTimeout)
		sendTimeout = 10 * time.Second
	}

	httpClient := station.NewClient(sendTimeout)

	sender, closeTransport, err := createSender(ctx, cfg, httpClient, logger)
	if err != nil {
		logger.Error("creating transport", "error", err)
		os.Exit(1)
	}
	defer closeTransport()

	defaults := application.Defaults{
		Room:         cfg.Defaults.Room,
		LightsRoom:   cfg.Defaults.LightsRoom,
		Genre:        cfg.Defaults.Genre,
		City:         cfg.Defaults.City,
		NewsCategory: cfg.Defaults.NewsCategory,
	}

	registry := application.NewRegistry(logger)
	application.RegisterDefaultCommands(registry, defaults, time.Now)

	st := application.NewStation(application.StationConfig{
		Name:        cfg.Station.Name,
		Address:     cfg.Station.Address,
		SendTimeout: sendTimeout,
	}, registry, sender, logger, application.WithProbe(httpClient))
	defer st.Wait()

	if b, ok := sender.(*mqtt.Broker); ok {
		if err := b.OnState(func(_ string, properties map[string]any) {
			for key, value := range properties {
				st.UpdateProperty(key, value)
			}
		}); err != nil {
			logger.Warn("subscribing to station state", "error", err)
		}
	}

	if cfg.Station.ConnectOnStart {
		st.Connect(ctx)
	}

	assistant := application.NewAssistant(st, application.DefaultRules(defaults), logger)

	server := httpapi.NewServer(cfg.HTTP.Addr, st, registry, assistant, httpapi.AppInfo{
		Name:        cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	}, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("starting HTTP API", "error", err)
		os.Exit(1)
	}

	logger.Info("station assistant ready",
		"http_addr", cfg.HTTP.Addr,
		"transport", cfg.Transport.Kind,
		"station_address", cfg.Station.Address,
	)

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		logger.Error("stopping HTTP API", "error", err)
	}
	st.Disconnect()
}

func createSender(ctx context.Context, cfg *config.Config, httpClient *station.Client, logger *slog.Logger) (application.Sender, func(), error) {
	mq := cfg.Transport.MQTT

	switch cfg.Transport.Kind {
	case "mqtt":
		publisher := mqtt.NewPublisher(mqtt.PublisherConfig{
			Broker:      mq.Broker,
			ClientID:    mq.ClientID,
			Username:    mq.Username,
			Password:    mq.Password,
			TopicPrefix: mq.TopicPrefix,
		}, logger)

		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := publisher.Connect(connectCtx); err != nil {
			logger.Warn("mqtt broker unavailable, commands will not be delivered until it is", "error", err)
		}
		return publisher, publisher.Close, nil

	case "embedded":
		broker, err := mqtt.NewBroker(mqtt.BrokerConfig{
			ListenAddr:  mq.ListenAddr,
			Username:    mq.Username,
			Password:    mq.Password,
			TopicPrefix: mq.TopicPrefix,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		broker.Start()
		return broker, func() {
			if err := broker.Close(); err != nil {
				logger.Warn("closing broker", "error", err)
			}
		}, nil

	case "http":
		return httpClient, func() {}, nil

	default:
		logger.Warn("unknown transport, using http", "transport", cfg.Transport.Kind)
		return httpClient, func() {}, nil
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
