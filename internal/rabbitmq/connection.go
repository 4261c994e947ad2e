package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConnectionStateListener receives connection state change notifications
type ConnectionStateListener interface {
	OnConnected()
	OnDisconnected(err error)
}

// ConnectionManager owns the session's single broker connection. It does not
// reconnect: a lost connection is reported to listeners and stays lost.
type ConnectionManager struct {
	url            string
	connectTimeout time.Duration
	heartbeat      time.Duration
	vhost          string
	conn           *amqp.Connection
	mu             sync.RWMutex
	logger         *slog.Logger
	isConnected    bool
	done           chan struct{} // stops the watcher of the current connection
	stateListeners []ConnectionStateListener
	listenersMu    sync.RWMutex
}

// ConnectionOption configures the ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithConnectTimeout bounds the TCP dial and the AMQP handshake
func WithConnectTimeout(timeout time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.connectTimeout = timeout
	}
}

// WithHeartbeat sets the heartbeat interval negotiated with the broker
func WithHeartbeat(interval time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.heartbeat = interval
	}
}

// WithVhost overrides the virtual host given in the URL
func WithVhost(vhost string) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.vhost = vhost
	}
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:            url,
		connectTimeout: 10 * time.Second,
		heartbeat:      10 * time.Second,
		logger:         slog.Default(),
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm
}

type dialResult struct {
	conn *amqp.Connection
	err  error
}

// Connect dials the broker once
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.isConnected {
		return nil
	}

	config := amqp.Config{
		Vhost:     cm.vhost,
		Heartbeat: cm.heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(cm.connectTimeout),
	}

	resultChan := make(chan dialResult, 1)
	go func() {
		conn, err := amqp.DialConfig(cm.url, config)
		resultChan <- dialResult{conn: conn, err: err}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil {
			return &ConnectionError{
				Op:        "connect",
				URL:       SanitizeURL(cm.url),
				Err:       res.err,
				Timestamp: time.Now(),
			}
		}

		cm.conn = res.conn
		cm.isConnected = true

		cm.logger.Info("connected to RabbitMQ",
			"url", SanitizeURL(cm.url))

		cm.notifyConnected()
		cm.startWatch(cm.conn.NotifyClose(make(chan *amqp.Error, 1)))

		return nil

	case <-ctx.Done():
		// Close a connection that completes after the caller gave up
		go func() {
			if res := <-resultChan; res.conn != nil {
				res.conn.Close()
			}
		}()
		return &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(cm.url),
			Err:       ErrConnectionTimeout,
			Timestamp: time.Now(),
		}
	}
}

// OpenChannel opens a new channel on the current connection
func (cm *ConnectionManager) OpenChannel() (*amqp.Channel, error) {
	conn, err := cm.GetConnection()
	if err != nil {
		return nil, &ChannelError{
			Op:        "open channel",
			ChannelID: "new",
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, &ChannelError{
			Op:        "open channel",
			ChannelID: "new",
			Err:       fmt.Errorf("%w: %v", ErrChannelCreationFailed, err),
			Timestamp: time.Now(),
		}
	}
	return ch, nil
}

// GetConnection returns the current connection
func (cm *ConnectionManager) GetConnection() (*amqp.Connection, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.isConnected || cm.conn == nil {
		return nil, ErrConnectionNotReady
	}

	if cm.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}

	return cm.conn, nil
}

// IsConnected returns the connection status
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isConnected
}

// Close closes the connection
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.done != nil {
		close(cm.done)
		cm.done = nil
	}

	if !cm.isConnected {
		return nil
	}
	cm.isConnected = false

	if cm.conn != nil {
		err := cm.conn.Close()
		cm.conn = nil
		return err
	}

	return nil
}

// startWatch watches notifyClose for the current connection. Called with mu held.
func (cm *ConnectionManager) startWatch(notifyClose <-chan *amqp.Error) {
	done := make(chan struct{})
	cm.done = done
	go cm.watchClose(notifyClose, done)
}

// watchClose reports a broker-initiated close of the connection that done
// belongs to. There is no reconnect.
func (cm *ConnectionManager) watchClose(notifyClose <-chan *amqp.Error, done <-chan struct{}) {
	select {
	case amqpErr, ok := <-notifyClose:
		if !ok || amqpErr == nil {
			// graceful close via Close
			return
		}
		cm.logger.Error("connection lost", "error", amqpErr)

		cm.mu.Lock()
		if cm.done != done {
			// a newer connection replaced this one
			cm.mu.Unlock()
			return
		}
		cm.isConnected = false
		cm.conn = nil
		cm.done = nil
		cm.mu.Unlock()

		cm.notifyDisconnected(amqpErr)

	case <-done:
	}
}

// AddStateListener adds a connection state listener
func (cm *ConnectionManager) AddStateListener(listener ConnectionStateListener) {
	cm.listenersMu.Lock()
	defer cm.listenersMu.Unlock()
	cm.stateListeners = append(cm.stateListeners, listener)
}

// notifyConnected notifies all listeners of successful connection
func (cm *ConnectionManager) notifyConnected() {
	cm.listenersMu.RLock()
	defer cm.listenersMu.RUnlock()

	for _, listener := range cm.stateListeners {
		go listener.OnConnected()
	}
}

// notifyDisconnected notifies all listeners of disconnection
func (cm *ConnectionManager) notifyDisconnected(err error) {
	cm.listenersMu.RLock()
	defer cm.listenersMu.RUnlock()

	for _, listener := range cm.stateListeners {
		go listener.OnDisconnected(err)
	}
}
