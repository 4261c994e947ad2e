package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelOwner(t *testing.T) {
	t.Run("Execute runs on the owned channel", func(t *testing.T) {
		ch := &mockChannel{}
		owner := newTestOwner(t, ch)

		var got Channel
		err := owner.Execute(context.Background(), func(c Channel) error {
			got = c
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, Channel(ch), got)
		assert.NotEmpty(t, owner.ID())
	})

	t.Run("Execute returns the operation error", func(t *testing.T) {
		owner := newTestOwner(t, &mockChannel{})
		opErr := errors.New("precondition failed")

		err := owner.Execute(context.Background(), func(Channel) error { return opErr })

		assert.Equal(t, opErr, err)
	})

	t.Run("Execute recovers from panics", func(t *testing.T) {
		owner := newTestOwner(t, &mockChannel{})

		err := owner.Execute(context.Background(), func(Channel) error { panic("boom") })

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "panic in channel execution")
	})

	t.Run("concurrent Execute calls never overlap", func(t *testing.T) {
		owner := newTestOwner(t, &mockChannel{})

		var (
			wg      sync.WaitGroup
			inside  int
			overlap bool
			count   int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = owner.Execute(context.Background(), func(Channel) error {
					inside++
					if inside > 1 {
						overlap = true
					}
					count++
					time.Sleep(time.Millisecond)
					inside--
					return nil
				})
			}()
		}
		wg.Wait()

		assert.False(t, overlap)
		assert.Equal(t, 50, count)
	})

	t.Run("Execute waits while a delivery is being handled", func(t *testing.T) {
		ch := &mockChannel{}
		owner := newTestOwner(t, ch)
		deliveries := make(chan amqp.Delivery, 1)

		release := make(chan struct{})
		handling := make(chan struct{})
		require.NoError(t, owner.Attach(context.Background(), "q", deliveries, func(ctx context.Context, c Channel, d amqp.Delivery) {
			close(handling)
			<-release
		}))
		deliveries <- amqp.Delivery{}
		<-handling

		executed := make(chan struct{})
		go func() {
			_ = owner.Execute(context.Background(), func(Channel) error { return nil })
			close(executed)
		}()

		select {
		case <-executed:
			t.Fatal("Execute ran while a delivery was in flight")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		select {
		case <-executed:
		case <-time.After(time.Second):
			t.Fatal("Execute never ran")
		}
	})

	t.Run("Execute after Close fails with ErrChannelClosed", func(t *testing.T) {
		ch := &mockChannel{}
		ch.On("Close").Return(nil).Once()
		owner := NewChannelOwner(ch)

		require.NoError(t, owner.Close())
		require.NoError(t, owner.Close())
		err := owner.Execute(context.Background(), func(Channel) error { return nil })

		assert.ErrorIs(t, err, ErrChannelClosed)
		var chanErr *ChannelError
		require.True(t, errors.As(err, &chanErr))
		assert.Equal(t, owner.ID(), chanErr.ChannelID)
		ch.AssertExpectations(t)
	})

	t.Run("Execute honours a cancelled context while the owner is busy", func(t *testing.T) {
		owner := newTestOwner(t, &mockChannel{})
		release := make(chan struct{})
		go func() {
			_ = owner.Execute(context.Background(), func(Channel) error {
				<-release
				return nil
			})
		}()
		time.Sleep(10 * time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := owner.Execute(ctx, func(Channel) error { return nil })
		close(release)

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed delivery stream detaches", func(t *testing.T) {
		owner := newTestOwner(t, &mockChannel{})
		deliveries := make(chan amqp.Delivery)
		require.NoError(t, owner.Attach(context.Background(), "q", deliveries, func(context.Context, Channel, amqp.Delivery) {
			t.Error("handler must not run for a closed stream")
		}))

		close(deliveries)

		assert.NoError(t, owner.Execute(context.Background(), func(Channel) error { return nil }))
	})

	t.Run("Done closes after Close", func(t *testing.T) {
		ch := &mockChannel{}
		ch.On("Close").Return(nil)
		owner := NewChannelOwner(ch)

		require.NoError(t, owner.Close())

		select {
		case <-owner.Done():
		default:
			t.Fatal("Done not closed")
		}
	})
}
