// Package host is the boundary to the chat-bot engine that loads the bridge.
//
// The engine speaks its own text encoding and identifies the plugin by an
// auth code. This package converts between that world and the bridge:
//   - Client implements messaging.Actions on top of an Engine
//   - LogHandler is a slog.Handler writing to the engine log
//   - Callbacks decodes engine notifications into contracts events
//   - ConsoleEngine is an Engine for running outside a bot host
package host

// LogPriority is the engine log level
type LogPriority int32

const (
	LogDebug       LogPriority = 0
	LogInfo        LogPriority = 10
	LogInfoSuccess LogPriority = 11
	LogInfoRecv    LogPriority = 12
	LogInfoSend    LogPriority = 13
	LogWarning     LogPriority = 20
	LogError       LogPriority = 30
	LogFatal       LogPriority = 40
)

// Engine is the chat-bot host. All text crosses it in the host's native
// encoding.
type Engine interface {
	// LoginAccount returns the account the bot is logged in as
	LoginAccount(authCode int32) int64

	// AppDirectory returns the plugin's data directory
	AppDirectory(authCode int32) []byte

	// SendPrivateMessage sends message to the account to
	SendPrivateMessage(authCode int32, to int64, message []byte) error

	// SendGroupMessage posts message in group
	SendGroupMessage(authCode int32, group int64, message []byte) error

	// SendDiscussMessage posts message in the discussion group discuss
	SendDiscussMessage(authCode int32, discuss int64, message []byte) error

	// AddLog appends an entry to the host log
	AddLog(authCode int32, priority LogPriority, category, content []byte) error
}

// EventResult tells the engine whether later plugins still see an event
type EventResult int32

const (
	// EventIgnore passes the event on
	EventIgnore EventResult = 0
	// EventBlock stops propagation
	EventBlock EventResult = 1
)
