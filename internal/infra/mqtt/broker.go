package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"station-assistant/internal/domain"
)

type BrokerConfig struct {
	ListenAddr  string
	Username    string
	Password    string
	TopicPrefix string
}

// StateFunc receives the properties a station reported on its state topic.
type StateFunc func(station string, properties map[string]any)

// Broker is an embedded MQTT broker. Commands are published through its
// inline client, so stations connect to this process directly.
type Broker struct {
	server *mochi.Server
	cfg    BrokerConfig
	logger *slog.Logger
	subID  atomic.Int32
}

func NewBroker(cfg BrokerConfig, logger *slog.Logger) (*Broker, error) {
	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       logger,
	})

	if err := addAuth(server, cfg); err != nil {
		return nil, err
	}

	if cfg.ListenAddr != "" {
		tcp := listeners.NewTCP(listeners.Config{ID: "stations", Address: cfg.ListenAddr})
		if err := server.AddListener(tcp); err != nil {
			return nil, fmt.Errorf("adding mqtt listener: %w", err)
		}
	}

	return &Broker{server: server, cfg: cfg, logger: logger}, nil
}

func addAuth(server *mochi.Server, cfg BrokerConfig) error {
	if cfg.Username == "" {
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return fmt.Errorf("adding mqtt auth hook: %w", err)
		}
		return nil
	}

	err := server.AddHook(new(auth.Hook), &auth.Options{
		Ledger: &auth.Ledger{
			Auth: auth.AuthRules{
				{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true},
				{Remote: "127.0.0.1:*", Allow: true},
				{Remote: "localhost:*", Allow: true},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("adding mqtt auth hook: %w", err)
	}
	return nil
}

func (b *Broker) Start() {
	go func() {
		b.logger.Info("mqtt broker starting", "addr", b.cfg.ListenAddr)
		if err := b.server.Serve(); err != nil {
			b.logger.Error("mqtt broker error", "error", err)
		}
	}()
}

func (b *Broker) Close() error {
	if err := b.server.Close(); err != nil {
		return fmt.Errorf("closing mqtt broker: %w", err)
	}
	return nil
}

func (b *Broker) Send(ctx context.Context, address, command string, params domain.Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := encodeCommand(command, params)
	if err != nil {
		return err
	}

	topic := CommandTopic(b.cfg.TopicPrefix, address)
	if err := b.server.Publish(topic, payload, false, 0); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}

	return nil
}

// OnState subscribes fn to state reports. Payloads must be JSON objects;
// anything else is logged and dropped.
func (b *Broker) OnState(fn StateFunc) error {
	filter := StateFilter(b.cfg.TopicPrefix)
	id := int(b.subID.Add(1))

	err := b.server.Subscribe(filter, id, func(cl *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		station, ok := stationFromTopic(b.cfg.TopicPrefix, pk.TopicName)
		if !ok {
			return
		}

		var properties map[string]any
		if err := json.Unmarshal(pk.Payload, &properties); err != nil {
			b.logger.Warn("invalid station state payload", "client", cl.ID, "topic", pk.TopicName, "error", err)
			return
		}

		b.logger.Debug("station state received", "client", cl.ID, "station", station, "properties", len(properties))
		fn(station, properties)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", filter, err)
	}

	return nil
}
