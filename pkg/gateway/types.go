package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ChatRequest is the wire form of one conversational exchange.
type ChatRequest struct {
	SessionID  string `json:"session_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Message    string `json:"message,omitempty"`
	NewCall    bool   `json:"new_call,omitempty"`
}

// ChatResponse carries the agent reply for one exchange.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Event names pushed to transcript observers.
const (
	EventCallTurn = "call.turn"
	EventShutdown = "server.shutdown"
)

// TurnEvent is a server-initiated event on the observer stream. Turn
// events carry transcript fields; lifecycle events carry only Data.
type TurnEvent struct {
	Type      string          `json:"type,omitempty"`
	Event     string          `json:"event"`
	Seq       int64           `json:"seq,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []string        `json:"tool_calls,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Phase     string          `json:"phase,omitempty"`
	Data      interface{}     `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Observer is one connected transcript listener.
type Observer struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time
	IPAddress   string

	writeMu sync.Mutex
}

// Send writes one event to the observer. Gorilla connections permit a
// single concurrent writer, so writes serialize here.
func (o *Observer) Send(event TurnEvent) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	return o.Conn.WriteJSON(event)
}

// ObserverInfo describes a connected observer.
type ObserverInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connectedAt"`
	IPAddress   string    `json:"ipAddress"`
}
