package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/fortunewang/coolq-amq/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mock transport for testing
type mockTransport struct {
	mock.Mock
	connected bool
}

func (m *mockTransport) Connect(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockTransport) DeclareTopology(ctx context.Context, accountID int64) (string, error) {
	args := m.Called(accountID)
	return args.String(0), args.Error(1)
}

func (m *mockTransport) Subscribe(ctx context.Context, queue string, handler DeliveryHandler) error {
	return m.Called(queue).Error(0)
}

func (m *mockTransport) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	return m.Called(exchange, routingKey, string(body)).Error(0)
}

func (m *mockTransport) IsConnected() bool {
	return m.connected
}

func (m *mockTransport) Close() error {
	return m.Called().Error(0)
}

func TestEventPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("group message is published under account.group", func(t *testing.T) {
		transport := &mockTransport{connected: true}
		transport.On("Publish", "coolq.msg", "555.group", `{"group":777,"from":888,"message":"hello"}`).Return(nil).Once()
		stats := NewStatsCollector()

		NewEventPublisher(transport, 555, WithPublisherStats(stats)).
			Publish(ctx, contracts.GroupMessage{Group: 777, From: 888, Message: "hello"})

		transport.AssertExpectations(t)
		assert.Equal(t, int64(1), stats.Snapshot().EventsPublished)
	})

	t.Run("each event type picks its routing key", func(t *testing.T) {
		transport := &mockTransport{connected: true}
		transport.On("Publish", "coolq.msg", "12345.private", `{"from":10001,"message":"hi"}`).Return(nil).Once()
		transport.On("Publish", "coolq.msg", "12345.discuss", `{"discuss":3,"from":4,"message":"m"}`).Return(nil).Once()
		transport.On("Publish", "coolq.msg", "12345.group_admin", mock.Anything).Return(nil).Once()
		transport.On("Publish", "coolq.msg", "12345.group_member_increase", mock.Anything).Return(nil).Once()
		p := NewEventPublisher(transport, 12345)

		p.Publish(ctx, contracts.PrivateMessage{From: 10001, Message: "hi"})
		p.Publish(ctx, contracts.DiscussMessage{Discuss: 3, From: 4, Message: "m"})
		p.Publish(ctx, contracts.GroupAdminChanged{Group: 1, Operand: 2, Set: true})
		p.Publish(ctx, contracts.GroupMemberIncrease{Group: 1, From: 2, Operator: 3, Invited: true})

		transport.AssertExpectations(t)
	})

	t.Run("no session channel publishes nothing", func(t *testing.T) {
		transport := &mockTransport{connected: false}

		NewEventPublisher(transport, 555).Publish(ctx, contracts.PrivateMessage{From: 1, Message: "x"})

		transport.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("nil transport publishes nothing", func(t *testing.T) {
		assert.NotPanics(t, func() {
			NewEventPublisher(nil, 555).Publish(ctx, contracts.PrivateMessage{From: 1, Message: "x"})
		})
	})

	t.Run("publish failure is swallowed", func(t *testing.T) {
		transport := &mockTransport{connected: true}
		transport.On("Publish", "coolq.msg", "555.private", mock.Anything).Return(errors.New("channel closed")).Once()
		stats := NewStatsCollector()

		assert.NotPanics(t, func() {
			NewEventPublisher(transport, 555, WithPublisherStats(stats)).
				Publish(ctx, contracts.PrivateMessage{From: 1, Message: "x"})
		})
		assert.Equal(t, Stats{EventsFailed: 1}, stats.Snapshot())
	})
}

func TestStatsCollector(t *testing.T) {
	t.Run("nil collector records nothing", func(t *testing.T) {
		var c *StatsCollector
		c.recordCommand(true)
		c.recordReply(false)
		c.recordEvent(true)
		assert.Equal(t, Stats{}, c.Snapshot())
	})
}
