package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"4000" validate:"min=1000,max=65535"`

	LogLevel       string `env:"LOG_LEVEL"       envDefault:"info"  validate:"oneof=debug info warn error"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`

	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS"      envSeparator:","`
	WsSendBuffer      int           `env:"WS_SEND_BUFFER"       envDefault:"64"    validate:"min=1,max=4096"`
	WsReadLimit       int64         `env:"WS_READ_LIMIT"        envDefault:"65536" validate:"min=512"`
	WsPongWait        time.Duration `env:"WS_PONG_WAIT"         envDefault:"60s"   validate:"min=1s"`
	WsEventsPerSecond float64       `env:"WS_EVENTS_PER_SECOND" envDefault:"50"    validate:"gt=0"`
	WsEventBurst      int           `env:"WS_EVENT_BURST"       envDefault:"100"   validate:"min=1"`

	ICEServersJSON string `env:"ICE_SERVERS_JSON"`
	StunURLs       string `env:"STUN_URLS"       envDefault:"stun:stun.l.google.com:19302"`
	TurnURLs       string `env:"TURN_URLS"`
	TurnUsername   string `env:"TURN_USERNAME"`
	TurnCredential string `env:"TURN_CREDENTIAL"`

	iceServers []webrtc.ICEServer

	RedisPresenceHost string        `env:"REDIS_PRESENCE_HOST"`
	RedisPresencePort uint16        `env:"REDIS_PRESENCE_PORT" envDefault:"6379" validate:"min=1000,max=65535"`
	PresenceInterval  time.Duration `env:"PRESENCE_INTERVAL"   envDefault:"5s"   validate:"min=100ms"`
	InstanceName      string        `env:"INSTANCE_NAME"`

	PostgresHost     string `env:"POSTGRES_HOST"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"pairsignal"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"pairsignal"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"pairsignal"`
}

// ICEServers is built from ICE_SERVERS_JSON or the STUN/TURN values.
func (c *Config) ICEServers() []webrtc.ICEServer { return c.iceServers }

// PresenceEnabled reports whether cross-instance presence is configured.
func (c *Config) PresenceEnabled() bool { return c.RedisPresenceHost != "" }

// HistoryEnabled reports whether room history goes to Postgres.
func (c *Config) HistoryEnabled() bool { return c.PostgresHost != "" }

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}

	iceServers, err := parseICEServersFromValues(cfg.ICEServersJSON, cfg.StunURLs, cfg.TurnURLs, cfg.TurnUsername, cfg.TurnCredential)
	if err != nil {
		zap.L().Error("config_ice_invalid", zap.Error(err))
		return nil, fmt.Errorf("ice servers: %w", err)
	}
	cfg.iceServers = iceServers

	if cfg.InstanceName == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "pairsignal"
		}
		cfg.InstanceName = host
	}
	return cfg, nil
}
