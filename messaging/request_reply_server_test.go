package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock delivery for testing
type mockTransportDelivery struct {
	mock.Mock
	body          []byte
	replyTo       string
	correlationID string
}

func (m *mockTransportDelivery) Body() []byte          { return m.body }
func (m *mockTransportDelivery) ReplyTo() string       { return m.replyTo }
func (m *mockTransportDelivery) CorrelationID() string { return m.correlationID }

func (m *mockTransportDelivery) Reply(ctx context.Context, body []byte) error {
	return m.Called(string(body)).Error(0)
}

func (m *mockTransportDelivery) Acknowledge() error {
	return m.Called().Error(0)
}

func (m *mockTransportDelivery) Reject(requeue bool) error {
	return m.Called(requeue).Error(0)
}

func newTestServer(actions Actions, stats *StatsCollector) *RPCServer {
	return NewRPCServer(NewCommandDispatcher(actions), WithServerStats(stats))
}

func TestRPCServer(t *testing.T) {
	ctx := context.Background()

	t.Run("successful command replies then acks", func(t *testing.T) {
		actions := &mockActions{}
		actions.On("SendPrivateMessage", int64(10001), "hi").Return(nil)
		delivery := &mockTransportDelivery{
			body:          []byte(`{"api":"send_private_message","params":{"to":10001,"message":"hi"}}`),
			replyTo:       "q1",
			correlationID: "c1",
		}
		var order []string
		delivery.On("Reply", `{"ok":true}`).Run(func(mock.Arguments) { order = append(order, "reply") }).Return(nil).Once()
		delivery.On("Acknowledge").Run(func(mock.Arguments) { order = append(order, "ack") }).Return(nil).Once()
		stats := NewStatsCollector()

		err := newTestServer(actions, stats).HandleDelivery(ctx, delivery)

		require.NoError(t, err)
		assert.Equal(t, []string{"reply", "ack"}, order)
		delivery.AssertNotCalled(t, "Reject", mock.Anything)
		actions.AssertExpectations(t)
		assert.Equal(t, Stats{CommandsProcessed: 1, RepliesSent: 1}, stats.Snapshot())
	})

	t.Run("unknown api rejects without reply", func(t *testing.T) {
		actions := &mockActions{}
		delivery := &mockTransportDelivery{
			body:    []byte(`{"api":"unknown_thing","params":{}}`),
			replyTo: "q1",
		}
		delivery.On("Reject", false).Return(nil).Once()
		stats := NewStatsCollector()

		err := newTestServer(actions, stats).HandleDelivery(ctx, delivery)

		require.NoError(t, err)
		delivery.AssertExpectations(t)
		delivery.AssertNotCalled(t, "Reply", mock.Anything)
		delivery.AssertNotCalled(t, "Acknowledge")
		assert.Equal(t, int64(1), stats.Snapshot().CommandsFailed)
	})

	t.Run("non-string message rejects without invoking the action", func(t *testing.T) {
		actions := &mockActions{}
		delivery := &mockTransportDelivery{
			body:    []byte(`{"api":"send_group_message","params":{"group":777,"message":42}}`),
			replyTo: "q1",
		}
		delivery.On("Reject", false).Return(nil).Once()

		require.NoError(t, newTestServer(actions, nil).HandleDelivery(ctx, delivery))

		delivery.AssertExpectations(t)
		delivery.AssertNotCalled(t, "Reply", mock.Anything)
		actions.AssertNotCalled(t, "SendGroupMessage", mock.Anything, mock.Anything)
	})

	t.Run("missing reply-to acks without reply", func(t *testing.T) {
		actions := &mockActions{}
		actions.On("SendDiscussMessage", int64(5), "yo").Return(nil)
		delivery := &mockTransportDelivery{
			body: []byte(`{"api":"send_discuss_message","params":{"discuss":5,"message":"yo"}}`),
		}
		delivery.On("Acknowledge").Return(nil).Once()
		stats := NewStatsCollector()

		require.NoError(t, newTestServer(actions, stats).HandleDelivery(ctx, delivery))

		delivery.AssertExpectations(t)
		delivery.AssertNotCalled(t, "Reply", mock.Anything)
		assert.Equal(t, Stats{CommandsProcessed: 1}, stats.Snapshot())
	})

	t.Run("failed reply still acks", func(t *testing.T) {
		actions := &mockActions{}
		actions.On("SendGroupMessage", int64(777), "hi").Return(nil)
		delivery := &mockTransportDelivery{
			body:    []byte(`{"api":"send_group_message","params":{"group":777,"message":"hi"}}`),
			replyTo: "gone",
		}
		delivery.On("Reply", `{"ok":true}`).Return(errors.New("channel closed")).Once()
		delivery.On("Acknowledge").Return(nil).Once()
		stats := NewStatsCollector()

		require.NoError(t, newTestServer(actions, stats).HandleDelivery(ctx, delivery))

		delivery.AssertExpectations(t)
		assert.Equal(t, int64(1), stats.Snapshot().RepliesFailed)
	})

	t.Run("failing action rejects", func(t *testing.T) {
		actions := &mockActions{}
		actions.On("SendPrivateMessage", int64(1), "x").Return(errors.New("host refused"))
		delivery := &mockTransportDelivery{
			body:    []byte(`{"api":"send_private_message","params":{"to":1,"message":"x"}}`),
			replyTo: "q1",
		}
		delivery.On("Reject", false).Return(nil).Once()

		require.NoError(t, newTestServer(actions, nil).HandleDelivery(ctx, delivery))

		delivery.AssertExpectations(t)
		delivery.AssertNotCalled(t, "Reply", mock.Anything)
		delivery.AssertNotCalled(t, "Acknowledge")
	})

	t.Run("settlement errors are returned", func(t *testing.T) {
		delivery := &mockTransportDelivery{body: []byte(`not json`)}
		delivery.On("Reject", false).Return(errors.New("delivery not initialized")).Once()

		err := newTestServer(&mockActions{}, nil).HandleDelivery(ctx, delivery)

		assert.EqualError(t, err, "delivery not initialized")
	})
}
