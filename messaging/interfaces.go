package messaging

import (
	"context"
	"sync/atomic"
)

// Actions are the bot operations a command can invoke. Implementations
// receive UTF-8 text; conversion to the host encoding is theirs.
type Actions interface {
	// SendPrivateMessage sends message to the account to
	SendPrivateMessage(ctx context.Context, to int64, message string) error

	// SendGroupMessage posts message in group
	SendGroupMessage(ctx context.Context, group int64, message string) error

	// SendDiscussMessage posts message in the discussion group discuss
	SendDiscussMessage(ctx context.Context, discuss int64, message string) error
}

// Stats contains bridge messaging counters
type Stats struct {
	CommandsProcessed int64
	CommandsFailed    int64
	RepliesSent       int64
	RepliesFailed     int64
	EventsPublished   int64
	EventsFailed      int64
}

// StatsCollector accumulates Stats. The zero value is ready to use and a nil
// collector records nothing.
type StatsCollector struct {
	commandsProcessed atomic.Int64
	commandsFailed    atomic.Int64
	repliesSent       atomic.Int64
	repliesFailed     atomic.Int64
	eventsPublished   atomic.Int64
	eventsFailed      atomic.Int64
}

// NewStatsCollector creates an empty collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

// Snapshot returns the current counters
func (c *StatsCollector) Snapshot() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		CommandsProcessed: c.commandsProcessed.Load(),
		CommandsFailed:    c.commandsFailed.Load(),
		RepliesSent:       c.repliesSent.Load(),
		RepliesFailed:     c.repliesFailed.Load(),
		EventsPublished:   c.eventsPublished.Load(),
		EventsFailed:      c.eventsFailed.Load(),
	}
}

func (c *StatsCollector) recordCommand(success bool) {
	if c == nil {
		return
	}
	if success {
		c.commandsProcessed.Add(1)
	} else {
		c.commandsFailed.Add(1)
	}
}

func (c *StatsCollector) recordReply(success bool) {
	if c == nil {
		return
	}
	if success {
		c.repliesSent.Add(1)
	} else {
		c.repliesFailed.Add(1)
	}
}

func (c *StatsCollector) recordEvent(success bool) {
	if c == nil {
		return
	}
	if success {
		c.eventsPublished.Add(1)
	} else {
		c.eventsFailed.Add(1)
	}
}
