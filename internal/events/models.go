package events

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Payload is the opaque key/value map carried by an Event. It implements
// driver.Valuer/sql.Scanner so it round-trips through a JSONB column.
type Payload map[string]any

func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	return json.Marshal(p)
}

func (p *Payload) Scan(value any) error {
	if value == nil {
		*p = Payload{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("events: type assertion to []byte or string failed")
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, p)
}

// Event is an immutable, densely and monotonically numbered log entry.
type Event struct {
	ID            string
	EventID       string
	Sequence      int64
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       Payload
	CreatedAt     time.Time
}
