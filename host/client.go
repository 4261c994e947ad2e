package host

import (
	"context"
)

// Client implements messaging.Actions on an Engine
type Client struct {
	engine   Engine
	authCode int32
	codec    Codec
}

// NewClient creates a client for the plugin identified by authCode
func NewClient(engine Engine, authCode int32, codec Codec) *Client {
	return &Client{engine: engine, authCode: authCode, codec: codec}
}

// SendPrivateMessage implements messaging.Actions
func (c *Client) SendPrivateMessage(ctx context.Context, to int64, message string) error {
	native, err := c.codec.Encode(message)
	if err != nil {
		return err
	}
	return c.engine.SendPrivateMessage(c.authCode, to, native)
}

// SendGroupMessage implements messaging.Actions
func (c *Client) SendGroupMessage(ctx context.Context, group int64, message string) error {
	native, err := c.codec.Encode(message)
	if err != nil {
		return err
	}
	return c.engine.SendGroupMessage(c.authCode, group, native)
}

// SendDiscussMessage implements messaging.Actions
func (c *Client) SendDiscussMessage(ctx context.Context, discuss int64, message string) error {
	native, err := c.codec.Encode(message)
	if err != nil {
		return err
	}
	return c.engine.SendDiscussMessage(c.authCode, discuss, native)
}
