// Package livelog implements the per-client WebSocket channel that streams operation output to the UI.
//
// A browser opens the socket, sends {"type":"register","clientId":"..."} and then starts an
// operation over HTTP with the same clientId. The operation resolves the socket once and writes
// log, complete and error events to it until the server closes it.
package livelog

import "encoding/json"

// EventType is the type discriminator of a server-to-client message.
type EventType string

const (
	EventLog      EventType = "log"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Level classifies log events for display.
type Level string

const (
	LevelInfo    Level = "info"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Event is a single server-to-client message.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	Level   Level     `json:"level,omitempty"`
}

// Terminal reports whether the event ends an operation.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Log builds a log event.
func Log(level Level, message string) Event {
	return Event{Type: EventLog, Message: message, Level: level}
}

// Info builds an info-level log event.
func Info(message string) Event { return Log(LevelInfo, message) }

// Complete builds a successful terminal event.
func Complete(message string) Event {
	return Event{Type: EventComplete, Message: message}
}

// Failure builds a failed terminal event.
func Failure(message string) Event {
	return Event{Type: EventError, Message: message}
}

// inbound is a client-to-server message.
type inbound struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
}

const msgRegister = "register"

func parseInbound(data []byte) (inbound, error) {
	var msg inbound
	err := json.Unmarshal(data, &msg)
	return msg, err
}
