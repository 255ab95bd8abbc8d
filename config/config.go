package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	HTTP      HTTPConfig      `yaml:"http"`
	Station   StationConfig   `yaml:"station"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
}

type AppConfig struct {
	Name        string `yaml:"name" env:"STATION_APP_NAME"`
	Version     string `yaml:"version" env:"STATION_APP_VERSION"`
	Environment string `yaml:"environment" env:"STATION_ENVIRONMENT"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" env:"STATION_HTTP_ADDR"`
}

type StationConfig struct {
	Name           string `yaml:"name" env:"STATION_NAME"`
	Address        string `yaml:"address" env:"STATION_ADDRESS"`
	SendTimeout    string `yaml:"send_timeout" env:"STATION_SEND_TIMEOUT"`
	ConnectOnStart bool   `yaml:"connect_on_start" env:"STATION_CONNECT_ON_START"`
}

type DefaultsConfig struct {
	Room         string `yaml:"room" env:"STATION_DEFAULT_ROOM"`
	LightsRoom   string `yaml:"lights_room" env:"STATION_DEFAULT_LIGHTS_ROOM"`
	Genre        string `yaml:"genre" env:"STATION_DEFAULT_GENRE"`
	City         string `yaml:"city" env:"STATION_DEFAULT_CITY"`
	NewsCategory string `yaml:"news_category" env:"STATION_DEFAULT_NEWS_CATEGORY"`
}

type TransportConfig struct {
	Kind string     `yaml:"kind" env:"STATION_TRANSPORT"`
	MQTT MQTTConfig `yaml:"mqtt"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker" env:"STATION_MQTT_BROKER"`
	ClientID    string `yaml:"client_id" env:"STATION_MQTT_CLIENT_ID"`
	Username    string `yaml:"username" env:"STATION_MQTT_USERNAME"`
	Password    string `yaml:"password" env:"STATION_MQTT_PASSWORD"`
	TopicPrefix string `yaml:"topic_prefix" env:"STATION_MQTT_TOPIC_PREFIX"`
	ListenAddr  string `yaml:"listen_addr" env:"STATION_MQTT_LISTEN_ADDR"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"STATION_LOG_LEVEL"`
	Format string `yaml:"format" env:"STATION_LOG_FORMAT"`
}

// Load reads the YAML file at path, applies STATION_* environment overrides
// and fills in defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "SmartHomeSystem"
	}
	if c.App.Version == "" {
		c.App.Version = "1.0.0"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:5000"
	}
	if c.Station.Name == "" {
		c.Station.Name = "Яндекс Станция"
	}
	if c.Station.SendTimeout == "" {
		c.Station.SendTimeout = "10s"
	}
	if c.Defaults.Room == "" {
		c.Defaults.Room = "дом"
	}
	if c.Defaults.LightsRoom == "" {
		c.Defaults.LightsRoom = "вся квартира"
	}
	if c.Defaults.Genre == "" {
		c.Defaults.Genre = "популярная музыка"
	}
	if c.Defaults.City == "" {
		c.Defaults.City = "вашем городе"
	}
	if c.Defaults.NewsCategory == "" {
		c.Defaults.NewsCategory = "главные"
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = "http"
	}
	if c.Transport.MQTT.Broker == "" {
		c.Transport.MQTT.Broker = "localhost:1883"
	}
	if c.Transport.MQTT.ClientID == "" {
		c.Transport.MQTT.ClientID = "station-assistant"
	}
	if c.Transport.MQTT.TopicPrefix == "" {
		c.Transport.MQTT.TopicPrefix = "stations"
	}
	if c.Transport.MQTT.ListenAddr == "" {
		c.Transport.MQTT.ListenAddr = ":1883"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
