// Copyright 2024 CoolQ-AMQ Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package coolqamq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fortunewang/coolq-amq/config"
	"github.com/fortunewang/coolq-amq/contracts"
	"github.com/fortunewang/coolq-amq/internal/rabbitmq"
	"github.com/fortunewang/coolq-amq/internal/reliability"
	"github.com/fortunewang/coolq-amq/messaging"
)

const maxRetryDelay = 30 * time.Second

// Session identifies the logged-in bot the bridge serves
type Session struct {
	AccountID int64
	AuthCode  int32
}

// Bridge connects one bot session to the broker. It publishes host events
// and serves send commands until closed.
type Bridge struct {
	session   Session
	transport messaging.Transport
	logger    *slog.Logger
	stats     *messaging.StatsCollector
	publisher *messaging.EventPublisher
	server    *messaging.RPCServer
	retry     reliability.RetryPolicy

	mu    sync.RWMutex
	state State
	queue string
}

// bridgeConfig holds options for New
type bridgeConfig struct {
	logger    *slog.Logger
	transport messaging.Transport
	config    *config.Config
	stats     *messaging.StatsCollector
}

// Option configures a Bridge
type Option func(*bridgeConfig)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *bridgeConfig) {
		c.logger = logger
	}
}

// WithTransport sets the broker transport
func WithTransport(transport messaging.Transport) Option {
	return func(c *bridgeConfig) {
		c.transport = transport
	}
}

// WithConfig sets the connection parameters used for startup retry
func WithConfig(cfg *config.Config) Option {
	return func(c *bridgeConfig) {
		c.config = cfg
	}
}

// WithStats shares a stats collector with the bridge
func WithStats(stats *messaging.StatsCollector) Option {
	return func(c *bridgeConfig) {
		c.stats = stats
	}
}

// New creates a bridge for session whose commands are carried out by actions
func New(session Session, actions messaging.Actions, options ...Option) *Bridge {
	cfg := &bridgeConfig{
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.config == nil {
		cfg.config = config.Default()
	}
	if cfg.stats == nil {
		cfg.stats = messaging.NewStatsCollector()
	}

	logger := cfg.logger.With("account", session.AccountID)
	dispatcher := messaging.NewCommandDispatcher(actions, messaging.WithDispatcherLogger(logger))

	return &Bridge{
		session:   session,
		transport: cfg.transport,
		logger:    logger,
		stats:     cfg.stats,
		publisher: messaging.NewEventPublisher(cfg.transport, session.AccountID,
			messaging.WithPublisherLogger(logger),
			messaging.WithPublisherStats(cfg.stats)),
		server: messaging.NewRPCServer(dispatcher,
			messaging.WithServerLogger(logger),
			messaging.WithServerStats(cfg.stats)),
		retry: retryPolicy(cfg.config),
		state: StateUninitialized,
	}
}

// Start connects, declares the session topology and starts serving
// commands. On failure the bridge is left Failed with the transport closed,
// and events are dropped from then on.
func (b *Bridge) Start(ctx context.Context) error {
	if b.transport == nil {
		return ErrNoTransport
	}
	if !b.transition(StateConnecting) {
		return ErrAlreadyStarted
	}

	if n, ok := b.transport.(interface {
		AddStateListener(rabbitmq.ConnectionStateListener)
	}); ok {
		n.AddStateListener(&connectionLogger{logger: b.logger})
	}

	err := reliability.RetryNotify(ctx, b.retry, func() error {
		err := b.transport.Connect(ctx)
		if rabbitmq.IsAccessRefused(err) {
			return reliability.Permanent(err)
		}
		return err
	}, func(err error, attempt int, delay time.Duration) {
		b.logger.Warn("connect failed, retrying",
			"error", err,
			"attempt", attempt+1,
			"delay", delay)
	})
	if err != nil {
		return b.fail("connect", err)
	}

	queue, err := b.transport.DeclareTopology(ctx, b.session.AccountID)
	if err != nil {
		return b.fail("topology", err)
	}
	b.mu.Lock()
	b.queue = queue
	b.mu.Unlock()
	b.transition(StateTopologyReady)

	if err := b.transport.Subscribe(ctx, queue, b.server.HandleDelivery); err != nil {
		return b.fail("consume", err)
	}
	b.transition(StateConsuming)

	b.logger.Info("bridge started", "queue", queue)
	return nil
}

func retryPolicy(cfg *config.Config) reliability.RetryPolicy {
	if cfg.ConnectRetries <= 0 {
		return reliability.NoRetry{}
	}
	return reliability.NewExponentialBackoff(cfg.RetryInterval(), maxRetryDelay, 2.0, cfg.ConnectRetries)
}

func (b *Bridge) fail(stage string, err error) error {
	b.transition(StateFailed)
	b.logger.Error("bridge startup failed", "stage", stage, "error", err)
	if cerr := b.transport.Close(); cerr != nil {
		b.logger.Debug("closing transport after failure", "error", cerr)
	}
	return &StartupError{Stage: stage, Err: err}
}

func (b *Bridge) transition(to State) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !canTransition(b.state, to) {
		return false
	}
	b.logger.Debug("bridge state changed", "from", b.state, "to", to)
	b.state = to
	return true
}

// HandleEvent publishes a host event. It does nothing until the session
// topology exists or after startup failed.
func (b *Bridge) HandleEvent(ctx context.Context, event contracts.Event) {
	switch b.State() {
	case StateTopologyReady, StateConsuming:
		b.publisher.Publish(ctx, event)
	}
}

// State returns the lifecycle state
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Queue returns the command queue name, empty before topology is declared
func (b *Bridge) Queue() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.queue
}

// Session returns the bot session
func (b *Bridge) Session() Session {
	return b.session
}

// Stats returns command and event counters
func (b *Bridge) Stats() messaging.Stats {
	return b.stats.Snapshot()
}

// Connected reports whether the transport has an open session channel
func (b *Bridge) Connected() bool {
	return b.transport != nil && b.transport.IsConnected()
}

// Close tears the session down. The state is left unchanged; Connected
// reports false from then on.
func (b *Bridge) Close() error {
	if b.transport == nil {
		return nil
	}
	return b.transport.Close()
}

// connectionLogger reports connection state changes; the session is not
// re-established after a loss
type connectionLogger struct {
	logger *slog.Logger
}

func (l *connectionLogger) OnConnected() {
	l.logger.Info("connected to broker")
}

func (l *connectionLogger) OnDisconnected(err error) {
	if err != nil {
		l.logger.Error("broker connection lost", "error", err)
		return
	}
	l.logger.Info("broker connection closed")
}
