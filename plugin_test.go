package coolqamq

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fortunewang/coolq-amq/config"
	"github.com/fortunewang/coolq-amq/host"
	"github.com/fortunewang/coolq-amq/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(content), 0o600))
	return dir
}

func TestEnable(t *testing.T) {
	ctx := context.Background()

	t.Run("starts a bridge and routes host events", func(t *testing.T) {
		dir := writeConfig(t, "host = \"mq.internal\"\nport = 5673\n")
		var out bytes.Buffer
		engine := host.NewConsoleEngine(555, dir, &out)
		transport := &mockTransport{}
		transport.On("Connect").Return(nil).Once()
		transport.On("DeclareTopology", int64(555)).Return("amq.gen-q", nil).Once()
		transport.On("Subscribe", "amq.gen-q").Return(nil).Once()
		transport.On("Publish", "coolq.msg", "555.group", `{"group":777,"from":888,"message":"hello"}`).Return(nil).Once()

		var seen *config.Config
		plugin, err := Enable(ctx, engine, 9, host.UTF8,
			WithTransportFactory(func(cfg *config.Config, _ *slog.Logger) messaging.Transport {
				seen = cfg
				return transport
			}))

		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, "mq.internal", seen.Host)
		assert.Equal(t, 5673, seen.Port)
		assert.Equal(t, Session{AccountID: 555, AuthCode: 9}, plugin.Bridge.Session())
		assert.Equal(t, StateConsuming, plugin.Bridge.State())

		plugin.Callbacks.OnGroupMessage(ctx, 777, 888, []byte("hello"))

		transport.AssertExpectations(t)
		assert.Contains(t, out.String(), "[INFO] app enabled account=555")
		assert.Contains(t, out.String(), "connecting to broker url=amqp://mq.internal:5673")
	})

	t.Run("command replies go through the engine", func(t *testing.T) {
		var out bytes.Buffer
		engine := host.NewConsoleEngine(555, t.TempDir(), &out)
		transport := &mockTransport{}
		transport.On("Connect").Return(nil).Once()
		transport.On("DeclareTopology", int64(555)).Return("q", nil).Once()
		transport.On("Subscribe", "q").Return(nil).Once()

		_, err := Enable(ctx, engine, 9, host.UTF8,
			WithTransportFactory(func(*config.Config, *slog.Logger) messaging.Transport { return transport }))
		require.NoError(t, err)

		delivery := &mockDelivery{body: []byte(`{"api":"send_discuss_message","params":{"discuss":42,"message":"yo"}}`)}
		delivery.On("Acknowledge").Return(nil).Once()
		require.NoError(t, transport.deliver(ctx, delivery))

		assert.Contains(t, out.String(), "-> discuss 42: yo\n")
	})

	t.Run("config error aborts before connecting", func(t *testing.T) {
		dir := writeConfig(t, "port = \"not a number\"\n")
		var out bytes.Buffer
		engine := host.NewConsoleEngine(555, dir, &out)
		called := false

		plugin, err := Enable(ctx, engine, 9, host.UTF8,
			WithTransportFactory(func(*config.Config, *slog.Logger) messaging.Transport {
				called = true
				return &mockTransport{}
			}))

		var cfgErr *config.Error
		require.ErrorAs(t, err, &cfgErr)
		assert.Nil(t, plugin)
		assert.False(t, called)
		assert.Contains(t, out.String(), "[ERROR] failed to load config")
	})

	t.Run("startup failure leaves a failed bridge", func(t *testing.T) {
		var out bytes.Buffer
		engine := host.NewConsoleEngine(555, t.TempDir(), &out)
		transport := &mockTransport{}
		transport.On("Connect").Return(assert.AnError).Once()
		transport.On("Close").Return(nil).Once()

		plugin, err := Enable(ctx, engine, 9, host.UTF8,
			WithTransportFactory(func(*config.Config, *slog.Logger) messaging.Transport { return transport }))

		require.Error(t, err)
		require.NotNil(t, plugin)
		assert.Equal(t, StateFailed, plugin.Bridge.State())
		assert.Contains(t, out.String(), "[ERROR] bridge startup failed")

		plugin.Callbacks.OnPrivateMessage(ctx, 1, []byte("dropped"))
		transport.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}
