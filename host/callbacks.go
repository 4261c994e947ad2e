package host

import (
	"context"
	"log/slog"

	"github.com/fortunewang/coolq-amq/contracts"
)

// EventSink receives decoded host events
type EventSink interface {
	HandleEvent(ctx context.Context, event contracts.Event)
}

// Callbacks turns engine notifications into events for an EventSink. Every
// callback returns EventIgnore so other plugins still see the event.
type Callbacks struct {
	sink   EventSink
	codec  Codec
	logger *slog.Logger
}

// NewCallbacks creates callbacks decoding text with codec
func NewCallbacks(sink EventSink, codec Codec, logger *slog.Logger) *Callbacks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Callbacks{sink: sink, codec: codec, logger: logger}
}

// OnPrivateMessage handles a private message from the account from
func (c *Callbacks) OnPrivateMessage(ctx context.Context, from int64, message []byte) EventResult {
	text, ok := c.decode(message, "private")
	if ok {
		c.sink.HandleEvent(ctx, contracts.PrivateMessage{From: from, Message: text})
	}
	return EventIgnore
}

// OnGroupMessage handles a message posted in group
func (c *Callbacks) OnGroupMessage(ctx context.Context, group, from int64, message []byte) EventResult {
	text, ok := c.decode(message, "group")
	if ok {
		c.sink.HandleEvent(ctx, contracts.GroupMessage{Group: group, From: from, Message: text})
	}
	return EventIgnore
}

// OnDiscussMessage handles a message posted in a discussion group
func (c *Callbacks) OnDiscussMessage(ctx context.Context, discuss, from int64, message []byte) EventResult {
	text, ok := c.decode(message, "discuss")
	if ok {
		c.sink.HandleEvent(ctx, contracts.DiscussMessage{Discuss: discuss, From: from, Message: text})
	}
	return EventIgnore
}

// OnGroupAdminChanged handles operand being made (set) or unmade admin of group
func (c *Callbacks) OnGroupAdminChanged(ctx context.Context, group, operand int64, set bool) EventResult {
	c.sink.HandleEvent(ctx, contracts.GroupAdminChanged{Group: group, Operand: operand, Set: set})
	return EventIgnore
}

// OnGroupMemberIncrease handles from joining group, approved or invited by operator
func (c *Callbacks) OnGroupMemberIncrease(ctx context.Context, group, from, operator int64, invited bool) EventResult {
	c.sink.HandleEvent(ctx, contracts.GroupMemberIncrease{Group: group, From: from, Operator: operator, Invited: invited})
	return EventIgnore
}

func (c *Callbacks) decode(native []byte, kind string) (string, bool) {
	text, err := c.codec.Decode(native)
	if err != nil {
		c.logger.Error("failed to decode message", "error", err, "eventType", kind)
		return "", false
	}
	return text, true
}
