package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/fortunewang/coolq-amq/config"
	"github.com/fortunewang/coolq-amq/contracts"
	"github.com/fortunewang/coolq-amq/internal/rabbitmq"
)

var errNotPrivate = errors.New("not a private message event")

func newEchoCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "echo",
		Short: "Answer every private message with the same text",
		Long: `Run an example consumer: it binds #.private on coolq.msg and, for each
private message seen by any bot, asks that bot to send the text back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load(*dir)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			return runEcho(ctx, cfg, logger)
		},
	}
}

func runEcho(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("connecting to broker", "url", rabbitmq.SanitizeURL(cfg.URI()))
	manager := rabbitmq.NewConnectionManager(cfg.URI(),
		rabbitmq.WithLogger(logger),
		rabbitmq.WithConnectTimeout(cfg.ConnectTimeout()),
		rabbitmq.WithHeartbeat(cfg.HeartbeatInterval()),
		rabbitmq.WithVhost(cfg.VHost),
	)
	if err := manager.Connect(ctx); err != nil {
		return err
	}
	defer manager.Close()

	ch, err := manager.OpenChannel()
	if err != nil {
		return err
	}
	owner := rabbitmq.NewChannelOwner(ch, rabbitmq.WithChannelLogger(logger))
	defer owner.Close()

	bindingKey := "#." + string(contracts.EventTypePrivate)
	queue, err := rabbitmq.NewTopologyManager(owner, logger).DeclareEvents(ctx, rabbitmq.EventTopology{
		Exchanges: []rabbitmq.ExchangeDeclaration{
			{Name: contracts.EventExchange, Type: contracts.EventExchangeType},
			{Name: contracts.CommandExchange, Type: contracts.CommandExchangeType},
		},
		Queue:      rabbitmq.QueueDeclaration{Exclusive: true},
		Exchange:   contracts.EventExchange,
		BindingKey: bindingKey,
	})
	if err != nil {
		return err
	}

	consumer := rabbitmq.NewConsumer(owner,
		rabbitmq.WithConsumerLogger(logger),
		rabbitmq.WithExclusive(true),
	)
	if err := consumer.Subscribe(ctx, queue.Name, echoHandler(logger)); err != nil {
		return err
	}
	logger.Info("echo consumer started", "queue", queue.Name, "bindingKey", bindingKey)

	select {
	case <-ctx.Done():
		return nil
	case <-owner.Done():
		return errors.New("channel closed")
	}
}

// echoHandler answers private message events on the consuming channel. Every
// delivery is acked; events that cannot be answered are skipped.
func echoHandler(logger *slog.Logger) rabbitmq.MessageHandler {
	return func(ctx context.Context, ch rabbitmq.Channel, d amqp.Delivery) error {
		routingKey, body, err := echoCommand(d.RoutingKey, d.Body)
		if err != nil {
			logger.Warn("skipping event", "routingKey", d.RoutingKey, "error", err)
			return d.Ack(false)
		}

		logger.Info("echoing private message", "routingKey", d.RoutingKey)
		if err := ch.PublishWithContext(ctx, contracts.CommandExchange, routingKey, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		}); err != nil {
			logger.Error("failed to publish command", "error", err, "routingKey", routingKey)
		}
		return d.Ack(false)
	}
}

// echoCommand builds the send_private_message command answering a private
// message event and returns it with its command routing key
func echoCommand(routingKey string, body []byte) (string, []byte, error) {
	accountPart, eventType, ok := strings.Cut(routingKey, ".")
	if !ok || eventType != string(contracts.EventTypePrivate) {
		return "", nil, fmt.Errorf("%w: %q", errNotPrivate, routingKey)
	}
	account, err := strconv.ParseInt(accountPart, 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("bad account in routing key %q: %w", routingKey, err)
	}

	var msg contracts.PrivateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", nil, fmt.Errorf("bad private message: %w", err)
	}

	cmd, err := contracts.EncodeCommand(contracts.SendPrivateMessage{To: msg.From, Message: msg.Message})
	if err != nil {
		return "", nil, err
	}
	return contracts.CommandRoutingKey(account), cmd, nil
}
