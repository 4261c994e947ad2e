package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	coolqamq "github.com/fortunewang/coolq-amq"
	"github.com/fortunewang/coolq-amq/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fake bridge for testing
type fakeBridge struct {
	state     coolqamq.State
	connected bool
	stats     messaging.Stats
}

func (f *fakeBridge) State() coolqamq.State  { return f.state }
func (f *fakeBridge) Connected() bool        { return f.connected }
func (f *fakeBridge) Stats() messaging.Stats { return f.stats }

type checkerFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func (c checkerFunc) Name() string                          { return c.name }
func (c checkerFunc) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

func TestLifecycleChecker(t *testing.T) {
	ctx := context.Background()

	t.Run("consuming is healthy", func(t *testing.T) {
		result := NewLifecycleChecker(&fakeBridge{state: coolqamq.StateConsuming, connected: true}).Check(ctx)

		assert.Equal(t, StatusHealthy, result.Status)
		assert.Equal(t, "consuming", result.Details["state"])
	})

	t.Run("consuming without a session is unhealthy", func(t *testing.T) {
		result := NewLifecycleChecker(&fakeBridge{state: coolqamq.StateConsuming}).Check(ctx)

		assert.Equal(t, StatusUnhealthy, result.Status)
		assert.Equal(t, "Session is closed", result.Message)
	})

	t.Run("starting is degraded", func(t *testing.T) {
		result := NewLifecycleChecker(&fakeBridge{state: coolqamq.StateConnecting}).Check(ctx)

		assert.Equal(t, StatusDegraded, result.Status)
		assert.Equal(t, "Bridge is connecting", result.Message)
	})

	t.Run("failed is unhealthy", func(t *testing.T) {
		result := NewLifecycleChecker(&fakeBridge{state: coolqamq.StateFailed}).Check(ctx)

		assert.Equal(t, StatusUnhealthy, result.Status)
	})
}

func TestBrokerChecker(t *testing.T) {
	ctx := context.Background()

	t.Run("open channel", func(t *testing.T) {
		result := NewBrokerChecker(&fakeBridge{connected: true}).Check(ctx)

		assert.Equal(t, StatusHealthy, result.Status)
		assert.Equal(t, true, result.Details["connection_open"])
	})

	t.Run("closed channel", func(t *testing.T) {
		result := NewBrokerChecker(&fakeBridge{}).Check(ctx)

		assert.Equal(t, StatusUnhealthy, result.Status)
		assert.Equal(t, "Connection is closed", result.Message)
	})
}

func TestTrafficChecker(t *testing.T) {
	ctx := context.Background()

	t.Run("no failures", func(t *testing.T) {
		bridge := &fakeBridge{stats: messaging.Stats{CommandsProcessed: 4, EventsPublished: 9}}

		result := NewTrafficChecker(bridge).Check(ctx)

		assert.Equal(t, StatusHealthy, result.Status)
		assert.Equal(t, int64(9), result.Details["events_published"])
	})

	t.Run("failures degrade", func(t *testing.T) {
		bridge := &fakeBridge{stats: messaging.Stats{CommandsFailed: 1, EventsFailed: 2}}

		result := NewTrafficChecker(bridge).Check(ctx)

		assert.Equal(t, StatusDegraded, result.Status)
		assert.Equal(t, "3 failed operations", result.Message)
	})
}

func TestRegistry(t *testing.T) {
	t.Run("overall status is the worst check", func(t *testing.T) {
		bridge := &fakeBridge{state: coolqamq.StateConsuming, connected: true}
		r := NewBridgeRegistry(bridge)
		r.SetMetadata("account", int64(12345))

		health := r.Check(context.Background())
		assert.Equal(t, StatusHealthy, health.Status)
		assert.Len(t, health.Checks, 3)
		assert.Equal(t, int64(12345), health.Metadata["account"])

		bridge.stats.RepliesFailed = 1
		assert.Equal(t, StatusDegraded, r.Check(context.Background()).Status)

		bridge.connected = false
		assert.Equal(t, StatusUnhealthy, r.Check(context.Background()).Status)
	})

	t.Run("slow checks time out as unhealthy", func(t *testing.T) {
		r := NewRegistry()
		release := make(chan struct{})
		defer close(release)
		r.Register(checkerFunc{name: "slow", fn: func(ctx context.Context) CheckResult {
			<-release
			return CheckResult{Name: "slow", Status: StatusHealthy}
		}})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		health := r.Check(ctx)

		assert.Equal(t, StatusUnhealthy, health.Status)
		assert.Equal(t, "Check timed out", health.Checks["slow"].Message)
	})
}

func TestHandler(t *testing.T) {
	t.Run("healthy is 200 with JSON body", func(t *testing.T) {
		r := NewBridgeRegistry(&fakeBridge{state: coolqamq.StateConsuming, connected: true})
		rec := httptest.NewRecorder()

		NewHandler(r, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var body OverallHealth
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, StatusHealthy, body.Status)
	})

	t.Run("unhealthy is 503", func(t *testing.T) {
		r := NewBridgeRegistry(&fakeBridge{state: coolqamq.StateFailed})
		rec := httptest.NewRecorder()

		NewHandler(r, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("only GET", func(t *testing.T) {
		rec := httptest.NewRecorder()

		NewHandler(NewRegistry(), time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
