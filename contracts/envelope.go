package contracts

import (
	"bytes"
	"encoding/json"
	"io"
)

// API names one of the fixed send commands
type API string

const (
	APISendPrivateMessage API = "send_private_message"
	APISendGroupMessage   API = "send_group_message"
	APISendDiscussMessage API = "send_discuss_message"
)

// Command is one decoded send command. The set of implementations is closed:
// SendPrivateMessage, SendGroupMessage and SendDiscussMessage.
type Command interface {
	API() API
}

// SendPrivateMessage sends Message to the account To
type SendPrivateMessage struct {
	To      int64  `json:"to"`
	Message string `json:"message"`
}

// API implements Command
func (SendPrivateMessage) API() API { return APISendPrivateMessage }

// SendGroupMessage posts Message in Group
type SendGroupMessage struct {
	Group   int64  `json:"group"`
	Message string `json:"message"`
}

// API implements Command
func (SendGroupMessage) API() API { return APISendGroupMessage }

// SendDiscussMessage posts Message in the discussion group Discuss
type SendDiscussMessage struct {
	Discuss int64  `json:"discuss"`
	Message string `json:"message"`
}

// API implements Command
func (SendDiscussMessage) API() API { return APISendDiscussMessage }

// Envelope is the wire form of a command
type Envelope struct {
	API    API         `json:"api"`
	Params interface{} `json:"params,omitempty"`
}

// Response is the reply body for a successful command
type Response struct {
	OK bool `json:"ok"`
}

// EncodeCommand wraps cmd in an envelope and marshals it
func EncodeCommand(cmd Command) ([]byte, error) {
	return json.Marshal(Envelope{API: cmd.API(), Params: cmd})
}

// DecodeCommand parses and validates a command envelope.
// All failures are returned as *CommandError.
func DecodeCommand(body []byte) (Command, error) {
	var payload map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, malformed("", "", "payload is not a JSON object: "+err.Error())
	}
	if payload == nil {
		return nil, malformed("", "", "payload is not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformed("", "", "trailing data after payload")
	}

	rawAPI, ok := payload["api"]
	if !ok {
		return nil, malformed("", "payload.api", "is required")
	}
	api, ok := rawAPI.(string)
	if !ok {
		return nil, malformed("", "payload.api", "is not a string")
	}

	rawParams, hasParams := payload["params"]
	switch API(api) {
	case APISendPrivateMessage:
		p, err := requireParams(api, rawParams, hasParams)
		if err != nil {
			return nil, err
		}
		to, err := int64Param(api, p, "to")
		if err != nil {
			return nil, err
		}
		msg, err := stringParam(api, p, "message")
		if err != nil {
			return nil, err
		}
		return SendPrivateMessage{To: to, Message: msg}, nil

	case APISendGroupMessage:
		p, err := requireParams(api, rawParams, hasParams)
		if err != nil {
			return nil, err
		}
		group, err := int64Param(api, p, "group")
		if err != nil {
			return nil, err
		}
		msg, err := stringParam(api, p, "message")
		if err != nil {
			return nil, err
		}
		return SendGroupMessage{Group: group, Message: msg}, nil

	case APISendDiscussMessage:
		p, err := requireParams(api, rawParams, hasParams)
		if err != nil {
			return nil, err
		}
		discuss, err := int64Param(api, p, "discuss")
		if err != nil {
			return nil, err
		}
		msg, err := stringParam(api, p, "message")
		if err != nil {
			return nil, err
		}
		return SendDiscussMessage{Discuss: discuss, Message: msg}, nil
	}

	return nil, &CommandError{API: api, Field: "payload.api", Reason: "names no known command", Err: ErrUnknownAPI}
}

func requireParams(api string, raw interface{}, present bool) (map[string]interface{}, error) {
	if !present {
		return nil, malformed(api, "payload.params", "is required by "+api)
	}
	params, ok := raw.(map[string]interface{})
	if !ok {
		return nil, malformed(api, "payload.params", "is not an object")
	}
	return params, nil
}

func int64Param(api string, params map[string]interface{}, name string) (int64, error) {
	field := "payload.params." + name
	raw, ok := params[name]
	if !ok {
		return 0, malformed(api, field, "is required by "+api)
	}
	num, ok := raw.(json.Number)
	if !ok {
		return 0, malformed(api, field, "is not an integer")
	}
	// Int64 refuses fractions and exponents
	v, err := num.Int64()
	if err != nil {
		return 0, malformed(api, field, "is not an integer")
	}
	return v, nil
}

func stringParam(api string, params map[string]interface{}, name string) (string, error) {
	field := "payload.params." + name
	raw, ok := params[name]
	if !ok {
		return "", malformed(api, field, "is required by "+api)
	}
	s, ok := raw.(string)
	if !ok {
		return "", malformed(api, field, "is not a string")
	}
	return s, nil
}
