// Package coolqamq bridges a CoolQ chat bot to RabbitMQ.
//
// Chat events seen by the bot are published to the coolq.msg topic exchange
// with routing key {account}.{type}. Other programs send messages through
// the bot by publishing commands to the coolq.rpc direct exchange with the
// bot's account as routing key:
//
//	{"api": "send_group_message", "params": {"group": 777, "message": "hi"}}
//
// A command carrying a reply-to property is answered with {"ok":true} once
// the bot accepted it; invalid commands are rejected without a reply.
//
// Basic usage:
//
//	plugin, err := coolqamq.Enable(ctx, engine, authCode, host.GB18030)
//	if err != nil {
//	    // logged to the host; events are dropped
//	}
//	plugin.Callbacks.OnGroupMessage(ctx, group, from, text)
//
// A Bridge moves through Uninitialized, Connecting, TopologyReady and
// Consuming. Any startup failure leaves it Failed for the rest of the
// session.
package coolqamq
