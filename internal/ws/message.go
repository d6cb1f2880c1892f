package ws

import (
	"github.com/chatwidget/internal/engine"
	"github.com/chatwidget/internal/widget"
)

type EventType string

// Server -> client events.
const (
	EventSnapshot      EventType = "snapshot"
	EventWidget        EventType = "widget_event"
	EventSessionClosed EventType = "session_closed"
	EventError         EventType = "error"
)

// Client -> server commands, the same actions the REST session routes offer.
const (
	CommandSend          EventType = "send"
	CommandOpen          EventType = "open"
	CommandClose         EventType = "close"
	CommandDismissPrompt EventType = "dismiss_prompt"
	CommandReconnect     EventType = "reconnect"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type EventType `json:"type"`
	Text string    `json:"text,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func SnapshotMessage(s engine.Snapshot) OutgoingMessage {
	return OutgoingMessage{Type: EventSnapshot, Payload: s}
}

func WidgetEventMessage(ev widget.Event) OutgoingMessage {
	return OutgoingMessage{Type: EventWidget, Payload: ev}
}
