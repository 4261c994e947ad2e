package health

import (
	"context"
	"fmt"
	"time"

	coolqamq "github.com/fortunewang/coolq-amq"
	"github.com/fortunewang/coolq-amq/messaging"
)

// BridgeStatus is the part of a bridge the checkers read
type BridgeStatus interface {
	State() coolqamq.State
	Connected() bool
	Stats() messaging.Stats
}

// LifecycleChecker reports the bridge lifecycle state. Only Consuming with an
// open session is healthy; a bridge still starting up is degraded.
type LifecycleChecker struct {
	bridge BridgeStatus
}

// NewLifecycleChecker creates a lifecycle checker
func NewLifecycleChecker(bridge BridgeStatus) *LifecycleChecker {
	return &LifecycleChecker{bridge: bridge}
}

func (c *LifecycleChecker) Name() string {
	return "lifecycle"
}

func (c *LifecycleChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	state := c.bridge.State()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   map[string]interface{}{"state": state.String()},
	}

	switch {
	case state == coolqamq.StateConsuming && !c.bridge.Connected():
		// closed, or the connection was lost
		result.Status = StatusUnhealthy
		result.Message = "Session is closed"
	case state == coolqamq.StateConsuming:
		result.Status = StatusHealthy
		result.Message = "Serving commands"
	case state == coolqamq.StateFailed:
		result.Status = StatusUnhealthy
		result.Message = "Startup failed"
	default:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("Bridge is %s", state)
	}

	result.Duration = time.Since(start)
	return result
}

// BrokerChecker reports whether the session channel is still open. The
// session is not re-established after a loss, so a closed channel is
// unhealthy for good.
type BrokerChecker struct {
	bridge BridgeStatus
}

// NewBrokerChecker creates a broker link checker
func NewBrokerChecker(bridge BridgeStatus) *BrokerChecker {
	return &BrokerChecker{bridge: bridge}
}

func (c *BrokerChecker) Name() string {
	return "rabbitmq"
}

func (c *BrokerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	connected := c.bridge.Connected()
	result.Details["connection_open"] = connected
	if connected {
		result.Status = StatusHealthy
		result.Message = "Connection is healthy"
	} else {
		result.Status = StatusUnhealthy
		result.Message = "Connection is closed"
	}

	result.Duration = time.Since(start)
	return result
}

// TrafficChecker reports command and event counters. Failures degrade the
// result without making it unhealthy.
type TrafficChecker struct {
	bridge BridgeStatus
}

// NewTrafficChecker creates a traffic checker
func NewTrafficChecker(bridge BridgeStatus) *TrafficChecker {
	return &TrafficChecker{bridge: bridge}
}

func (c *TrafficChecker) Name() string {
	return "traffic"
}

func (c *TrafficChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	stats := c.bridge.Stats()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Status:    StatusHealthy,
		Message:   "No failures",
		Details: map[string]interface{}{
			"commands_processed": stats.CommandsProcessed,
			"commands_failed":    stats.CommandsFailed,
			"replies_sent":       stats.RepliesSent,
			"replies_failed":     stats.RepliesFailed,
			"events_published":   stats.EventsPublished,
			"events_failed":      stats.EventsFailed,
		},
	}

	if failed := stats.CommandsFailed + stats.RepliesFailed + stats.EventsFailed; failed > 0 {
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("%d failed operations", failed)
	}

	result.Duration = time.Since(start)
	return result
}

// NewBridgeRegistry registers every bridge checker
func NewBridgeRegistry(bridge BridgeStatus) *Registry {
	r := NewRegistry()
	r.Register(NewLifecycleChecker(bridge))
	r.Register(NewBrokerChecker(bridge))
	r.Register(NewTrafficChecker(bridge))
	return r
}
