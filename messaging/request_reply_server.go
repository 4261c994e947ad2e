package messaging

import (
	"context"
	"log/slog"
)

// RPCServer answers command deliveries from the session's command queue.
// A successful command is replied to (when the delivery names a reply-to
// queue) and acked; any failure is rejected without requeue and without reply.
type RPCServer struct {
	dispatcher *CommandDispatcher
	logger     *slog.Logger
	stats      *StatsCollector
}

// RPCServerOption configures the server
type RPCServerOption func(*RPCServer)

// WithServerLogger sets the logger
func WithServerLogger(logger *slog.Logger) RPCServerOption {
	return func(s *RPCServer) {
		s.logger = logger
	}
}

// WithServerStats records command and reply outcomes in stats
func WithServerStats(stats *StatsCollector) RPCServerOption {
	return func(s *RPCServer) {
		s.stats = stats
	}
}

// NewRPCServer creates a new RPC server
func NewRPCServer(dispatcher *CommandDispatcher, opts ...RPCServerOption) *RPCServer {
	s := &RPCServer{
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// HandleDelivery implements DeliveryHandler. The returned error is the
// settlement error, if any; command failures are settled, not returned.
func (s *RPCServer) HandleDelivery(ctx context.Context, delivery TransportDelivery) error {
	reply, err := s.dispatcher.Dispatch(ctx, delivery.Body())
	if err != nil {
		s.stats.recordCommand(false)
		s.logger.Error("failed to handle command",
			"error", err,
			"correlationId", delivery.CorrelationID())
		return delivery.Reject(false)
	}
	s.stats.recordCommand(true)

	if delivery.ReplyTo() != "" {
		if err := delivery.Reply(ctx, reply); err != nil {
			s.stats.recordReply(false)
			s.logger.Error("failed to send reply",
				"error", err,
				"replyTo", delivery.ReplyTo(),
				"correlationId", delivery.CorrelationID())
		} else {
			s.stats.recordReply(true)
		}
	}

	return delivery.Acknowledge()
}
