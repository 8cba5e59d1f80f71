package chat

import (
	"encoding/json"

	"github.com/affanraza84/Chatting-App/module/message/model"
)

// ===== outbound frames =====

const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
	EventPong        = "pong"

	inboundPing = "ping"
)

// Event is the JSON frame written to clients: {"event": ..., "data": ...}.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

func OnlineUsersEvent(users []string) Event {
	if users == nil {
		users = []string{}
	}
	return Event{Name: EventOnlineUsers, Data: users}
}

func NewMessageEvent(m *model.Message) Event {
	return Event{Name: EventNewMessage, Data: m}
}

// inbound is a client frame. Data is kept raw.
type inbound struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}
