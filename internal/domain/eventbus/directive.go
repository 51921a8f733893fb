package eventbus

import "encoding/json"

type DirectiveOp int64

const (
	JoinDirectiveOp      DirectiveOp = 1000
	LeaveDirectiveOp     DirectiveOp = 1001
	BroadcastDirectiveOp DirectiveOp = 1002
)

type ClientDirective struct {
	Op   DirectiveOp `json:"op"`
	Data any         `json:"data"`
}

type ServerDirective struct {
	Op   DirectiveOp     `json:"op"`
	Data json.RawMessage `json:"data"`
}

// JOIN
type JoinDirective struct {
	Topic   string   `json:"topic"`
	Filters []Filter `json:"filters"`
}

func NewJoinDirective(topic string, filters []Filter) *ClientDirective {
	return &ClientDirective{
		Op:   JoinDirectiveOp,
		Data: JoinDirective{Topic: topic, Filters: filters},
	}
}

// LEAVE
type LeaveDirective struct {
	Topic string `json:"topic"`
}

func NewLeaveDirective(topic string) *ClientDirective {
	return &ClientDirective{
		Op:   LeaveDirectiveOp,
		Data: LeaveDirective{Topic: topic},
	}
}

// BROADCAST
type BroadcastDirective struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

func NewBroadcastDirective(topic string, payload []byte) *ClientDirective {
	return &ClientDirective{
		Op:   BroadcastDirectiveOp,
		Data: BroadcastDirective{Topic: topic, Payload: payload},
	}
}
