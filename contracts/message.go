package contracts

import (
	"strconv"
)

const (
	// EventExchange is the topic exchange inbound chat events are published to
	EventExchange = "coolq.msg"
	// EventExchangeType is the AMQP kind of EventExchange
	EventExchangeType = "topic"
	// CommandExchange is the direct exchange send commands are routed through
	CommandExchange = "coolq.rpc"
	// CommandExchangeType is the AMQP kind of CommandExchange
	CommandExchangeType = "direct"
	// ReplyExchange is the default exchange; replies are addressed by queue name
	ReplyExchange = ""
)

// EventType is the last segment of an event routing key
type EventType string

const (
	EventTypePrivate             EventType = "private"
	EventTypeGroup               EventType = "group"
	EventTypeDiscuss             EventType = "discuss"
	EventTypeGroupAdmin          EventType = "group_admin"
	EventTypeGroupMemberIncrease EventType = "group_member_increase"
)

// Event is an inbound chat event ready to be published
type Event interface {
	EventType() EventType
}

// PrivateMessage is a one-to-one message received by the bot account
type PrivateMessage struct {
	From    int64  `json:"from"`
	Message string `json:"message"`
}

// EventType implements Event
func (PrivateMessage) EventType() EventType { return EventTypePrivate }

// GroupMessage is a message posted in a group the bot account is a member of
type GroupMessage struct {
	Group   int64  `json:"group"`
	From    int64  `json:"from"`
	Message string `json:"message"`
}

// EventType implements Event
func (GroupMessage) EventType() EventType { return EventTypeGroup }

// DiscussMessage is a message posted in a discussion group
type DiscussMessage struct {
	Discuss int64  `json:"discuss"`
	From    int64  `json:"from"`
	Message string `json:"message"`
}

// EventType implements Event
func (DiscussMessage) EventType() EventType { return EventTypeDiscuss }

// GroupAdminChanged reports that Operand gained (Set) or lost group admin rights
type GroupAdminChanged struct {
	Group   int64 `json:"group"`
	Operand int64 `json:"operand"`
	Set     bool  `json:"set"`
}

// EventType implements Event
func (GroupAdminChanged) EventType() EventType { return EventTypeGroupAdmin }

// GroupMemberIncrease reports a new group member. Invited is false when an
// admin approved a join request.
type GroupMemberIncrease struct {
	Group    int64 `json:"group"`
	From     int64 `json:"from"`
	Operator int64 `json:"operator"`
	Invited  bool  `json:"invited"`
}

// EventType implements Event
func (GroupMemberIncrease) EventType() EventType { return EventTypeGroupMemberIncrease }

// EventRoutingKey returns the topic routing key {account}.{event-type}
func EventRoutingKey(accountID int64, eventType EventType) string {
	return strconv.FormatInt(accountID, 10) + "." + string(eventType)
}

// CommandRoutingKey returns the direct routing key commands for accountID are sent with
func CommandRoutingKey(accountID int64) string {
	return strconv.FormatInt(accountID, 10)
}
