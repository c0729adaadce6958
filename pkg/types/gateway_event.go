package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/velostore/storefront-backend/pkg/enums"
)

// GatewayEvent is one entry in a payment's gateway log. The log is
// append-only: new events are added, existing entries are never rewritten.
type GatewayEvent struct {
	Event     enums.GatewayEventType `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]any         `json:"payload,omitempty"`
}

// GatewayEventLog is the jsonb-serialized list of gateway events.
type GatewayEventLog []GatewayEvent

// Append returns a new log with the event added; the receiver is not mutated
// so a failed transaction never leaves a half-updated slice behind.
func (l GatewayEventLog) Append(event enums.GatewayEventType, at time.Time, payload map[string]any) GatewayEventLog {
	next := make(GatewayEventLog, 0, len(l)+1)
	next = append(next, l...)
	next = append(next, GatewayEvent{Event: event, Timestamp: at.UTC(), Payload: payload})
	return next
}

// Contains reports whether the log holds at least one entry of the given type.
func (l GatewayEventLog) Contains(event enums.GatewayEventType) bool {
	for _, entry := range l {
		if entry.Event == event {
			return true
		}
	}
	return false
}

// Value marshals the log for the driver. Having the log implement
// driver.Valuer keeps map-based gorm updates working; those bypass model
// serializer tags and hand the value to the driver as-is.
func (l GatewayEventLog) Value() (driver.Value, error) {
	if l == nil {
		l = GatewayEventLog{}
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway events: %w", err)
	}
	return raw, nil
}

// Scan unmarshals a database value into the log. Postgres hands jsonb over
// as bytes, sqlite as text; both decode the same way.
func (l *GatewayEventLog) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch value := src.(type) {
	case []byte:
		raw = value
	case string:
		raw = []byte(value)
	default:
		return fmt.Errorf("unsupported gateway event source %T", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, l)
}
