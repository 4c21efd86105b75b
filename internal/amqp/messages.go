package amqp

import (
	"encoding/json"
	"time"

	"txview/internal/core"
	"txview/internal/diagnostics"
	"txview/internal/store"
)

// DiagnosticMessage is the wire form of a diagnostics.Event.
type DiagnosticMessage struct {
	Kind          string    `json:"kind"`
	Operation     string    `json:"operation"`
	Cause         string    `json:"cause"`
	StatusCode    int       `json:"status_code,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	SearchTerm    string    `json:"search_term,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewDiagnosticMessage(e diagnostics.Event) *DiagnosticMessage {
	return &DiagnosticMessage{
		Kind:          string(e.Kind),
		Operation:     string(e.Operation),
		Cause:         e.Cause,
		StatusCode:    e.StatusCode,
		TransactionID: e.TransactionID.String(),
		SearchTerm:    e.SearchTerm,
		RequestID:     e.RequestID,
		OccurredAt:    e.At,
		Timestamp:     time.Now(),
	}
}

// Event converts the message back to a diagnostics.Event.
func (m *DiagnosticMessage) Event() diagnostics.Event {
	return diagnostics.Event{
		Kind:          diagnostics.Kind(m.Kind),
		Operation:     store.Operation(m.Operation),
		Cause:         m.Cause,
		StatusCode:    m.StatusCode,
		TransactionID: core.ID(m.TransactionID),
		SearchTerm:    m.SearchTerm,
		RequestID:     m.RequestID,
		At:            m.OccurredAt,
	}
}

func (m *DiagnosticMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DiagnosticMessageFromJSON(data []byte) (*DiagnosticMessage, error) {
	var msg DiagnosticMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
