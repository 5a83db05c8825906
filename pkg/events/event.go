package events

import (
	"time"
)

// Envelope is the event value carried by the bus and relayed to brokers.
type Envelope struct {
	Type     string       `json:"type"`
	At       time.Time    `json:"at"`
	Entities []EntityType `json:"entities,omitempty"`
}

// NewEvent stamps an event of the given type with the current time.
func NewEvent(eventType string, entities ...EntityType) *Envelope {
	return &Envelope{
		Type:     eventType,
		At:       time.Now().UTC(),
		Entities: entities,
	}
}

func (e *Envelope) EventType() string { return e.Type }

func (e *Envelope) OccurredAt() time.Time { return e.At }
