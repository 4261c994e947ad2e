package coolqamq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fortunewang/coolq-amq/config"
	"github.com/fortunewang/coolq-amq/host"
	"github.com/fortunewang/coolq-amq/internal/rabbitmq"
	"github.com/fortunewang/coolq-amq/messaging"
	rabbitmqTransport "github.com/fortunewang/coolq-amq/transports/rabbitmq"
)

// Plugin is an enabled bridge together with the host callbacks feeding it
type Plugin struct {
	Bridge    *Bridge
	Callbacks *host.Callbacks
	Logger    *slog.Logger
}

// PluginOption configures Enable
type PluginOption func(*pluginConfig)

type pluginConfig struct {
	logLevel  slog.Leveler
	transport func(cfg *config.Config, logger *slog.Logger) messaging.Transport
	stats     *messaging.StatsCollector
}

// WithLogLevel sets the lowest level written to the host log
func WithLogLevel(level slog.Leveler) PluginOption {
	return func(c *pluginConfig) {
		c.logLevel = level
	}
}

// WithTransportFactory replaces the RabbitMQ transport
func WithTransportFactory(factory func(cfg *config.Config, logger *slog.Logger) messaging.Transport) PluginOption {
	return func(c *pluginConfig) {
		c.transport = factory
	}
}

// WithPluginStats shares a stats collector with the bridge
func WithPluginStats(stats *messaging.StatsCollector) PluginOption {
	return func(c *pluginConfig) {
		c.stats = stats
	}
}

// Enable runs the host's app-enabled sequence: it resolves the session,
// loads the configuration from the app directory and starts a bridge.
//
// A configuration error aborts before any connection attempt. A startup
// failure still returns the Plugin, whose bridge is Failed and drops events.
func Enable(ctx context.Context, engine host.Engine, authCode int32, codec host.Codec, options ...PluginOption) (*Plugin, error) {
	pc := &pluginConfig{
		logLevel:  slog.LevelInfo,
		transport: newRabbitMQTransport,
	}
	for _, opt := range options {
		opt(pc)
	}

	logger := slog.New(host.NewLogHandler(engine, authCode, codec, pc.logLevel))
	session := Session{
		AccountID: engine.LoginAccount(authCode),
		AuthCode:  authCode,
	}
	logger.Info("app enabled", "account", session.AccountID)

	dir, err := codec.Decode(engine.AppDirectory(authCode))
	if err != nil {
		logger.Error("failed to decode app directory", "error", err)
		return nil, fmt.Errorf("failed to decode app directory: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return nil, err
	}
	logger.Info("connecting to broker", "url", rabbitmq.SanitizeURL(cfg.URI()))

	bridgeOpts := []Option{
		WithLogger(logger),
		WithConfig(cfg),
		WithTransport(pc.transport(cfg, logger)),
	}
	if pc.stats != nil {
		bridgeOpts = append(bridgeOpts, WithStats(pc.stats))
	}
	bridge := New(session, host.NewClient(engine, authCode, codec), bridgeOpts...)

	plugin := &Plugin{
		Bridge:    bridge,
		Callbacks: host.NewCallbacks(bridge, codec, logger),
		Logger:    logger,
	}
	return plugin, bridge.Start(ctx)
}

func newRabbitMQTransport(cfg *config.Config, logger *slog.Logger) messaging.Transport {
	return rabbitmqTransport.NewTransport(cfg.URI(),
		rabbitmqTransport.WithLogger(logger),
		rabbitmqTransport.WithConnectionOptions(
			rabbitmq.WithLogger(logger),
			rabbitmq.WithConnectTimeout(cfg.ConnectTimeout()),
			rabbitmq.WithHeartbeat(cfg.HeartbeatInterval()),
			rabbitmq.WithVhost(cfg.VHost),
		),
	)
}
