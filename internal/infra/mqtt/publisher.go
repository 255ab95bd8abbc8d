package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"station-assistant/internal/domain"
)

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Publisher sends station commands through an external MQTT broker.
type Publisher struct {
	client paho.Client
	prefix string
	logger *slog.Logger
}

func NewPublisher(cfg PublisherConfig, logger *slog.Logger) *Publisher {
	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker)).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(5 * time.Second).
		SetMaxReconnectInterval(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})

	return &Publisher{
		client: paho.NewClient(opts),
		prefix: cfg.TopicPrefix,
		logger: logger,
	}
}

// Connect makes a single connection attempt. Once connected the client
// reconnects on its own.
func (p *Publisher) Connect(ctx context.Context) error {
	if err := wait(ctx, p.client.Connect()); err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	return nil
}

func (p *Publisher) Send(ctx context.Context, address, command string, params domain.Params) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt client not connected")
	}

	payload, err := encodeCommand(command, params)
	if err != nil {
		return err
	}

	topic := CommandTopic(p.prefix, address)
	if err := wait(ctx, p.client.Publish(topic, 1, false, payload)); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}

	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
