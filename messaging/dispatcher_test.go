package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/fortunewang/coolq-amq/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock bot actions for testing
type mockActions struct {
	mock.Mock
}

func (m *mockActions) SendPrivateMessage(ctx context.Context, to int64, message string) error {
	return m.Called(to, message).Error(0)
}

func (m *mockActions) SendGroupMessage(ctx context.Context, group int64, message string) error {
	return m.Called(group, message).Error(0)
}

func (m *mockActions) SendDiscussMessage(ctx context.Context, discuss int64, message string) error {
	return m.Called(discuss, message).Error(0)
}

func TestCommandDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("send_private_message invokes the private action", func(t *testing.T) {
		actions := &mockActions{}
		actions.On("SendPrivateMessage", int64(10001), "hi").Return(nil)

		reply, err := NewCommandDispatcher(actions).Dispatch(ctx,
			[]byte(`{"api":"send_private_message","params":{"to":10001,"message":"hi"}}`))

		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(reply))
		actions.AssertExpectations(t)
	})

	t.Run("send_group_message invokes the group action", func(t *testing.T) {
		actions := &mockActions{}
		actions.On("SendGroupMessage", int64(777), "hello group").Return(nil)

		reply, err := NewCommandDispatcher(actions).Dispatch(ctx,
			[]byte(`{"api":"send_group_message","params":{"group":777,"message":"hello group"}}`))

		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, string(reply))
		actions.AssertExpectations(t)
	})

	t.Run("send_discuss_message invokes the discuss action", func(t *testing.T) {
		actions := &mockActions{}
		actions.On("SendDiscussMessage", int64(4242), "").Return(nil)

		_, err := NewCommandDispatcher(actions).Dispatch(ctx,
			[]byte(`{"api":"send_discuss_message","params":{"discuss":4242,"message":""}}`))

		require.NoError(t, err)
		actions.AssertExpectations(t)
	})

	t.Run("unknown api invokes nothing", func(t *testing.T) {
		actions := &mockActions{}

		reply, err := NewCommandDispatcher(actions).Dispatch(ctx,
			[]byte(`{"api":"delete_everything","params":{}}`))

		assert.Nil(t, reply)
		assert.ErrorIs(t, err, contracts.ErrUnknownAPI)
		actions.AssertNotCalled(t, "SendPrivateMessage", mock.Anything, mock.Anything)
		actions.AssertNotCalled(t, "SendGroupMessage", mock.Anything, mock.Anything)
		actions.AssertNotCalled(t, "SendDiscussMessage", mock.Anything, mock.Anything)
	})

	t.Run("malformed params invoke nothing", func(t *testing.T) {
		actions := &mockActions{}

		_, err := NewCommandDispatcher(actions).Dispatch(ctx,
			[]byte(`{"api":"send_group_message","params":{"group":777,"message":42}}`))

		assert.ErrorIs(t, err, contracts.ErrMalformedCommand)
		var cmdErr *contracts.CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, "payload.params.message", cmdErr.Field)
		actions.AssertNotCalled(t, "SendGroupMessage", mock.Anything, mock.Anything)
	})

	t.Run("failing action is an ActionError", func(t *testing.T) {
		actions := &mockActions{}
		hostErr := errors.New("host refused")
		actions.On("SendPrivateMessage", int64(1), "x").Return(hostErr)

		reply, err := NewCommandDispatcher(actions).Dispatch(ctx,
			[]byte(`{"api":"send_private_message","params":{"to":1,"message":"x"}}`))

		assert.Nil(t, reply)
		assert.ErrorIs(t, err, ErrActionFailed)
		assert.ErrorIs(t, err, hostErr)
		var actionErr *ActionError
		require.True(t, errors.As(err, &actionErr))
		assert.Equal(t, contracts.APISendPrivateMessage, actionErr.API)
	})
}
