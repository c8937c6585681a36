// Package kafka publishes workflow events to the Kafka workflow topic.
// Records are keyed by request ID so per-request ordering is preserved
// across partitions.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ecocert/internal/notification"
	platformkafka "ecocert/internal/platform/kafka"
	id "ecocert/pkg/domain"
)

type Store struct {
	producer *platformkafka.Producer
}

func New(producer *platformkafka.Producer) *Store {
	return &Store{producer: producer}
}

// payload is the JSON structure published to Kafka. Field names are stable:
// consumers depend on them for deserialization.
type payload struct {
	ID            string `json:"ID"`
	Category      string `json:"Category"`
	Timestamp     string `json:"Timestamp"`
	RequestID     string `json:"RequestID"`
	CompanyID     string `json:"CompanyID,omitempty"`
	Action        string `json:"Action"`
	Reason        string `json:"Reason,omitempty"`
	ActorID       string `json:"ActorID,omitempty"`
	CorrelationID string `json:"CorrelationID,omitempty"`
}

func (s *Store) Append(ctx context.Context, event notification.Event) error {
	p := payload{
		ID:            uuid.NewString(),
		Category:      string(event.Category),
		Timestamp:     event.Timestamp.Format(time.RFC3339Nano),
		RequestID:     event.RequestID.String(),
		Action:        event.Action,
		Reason:        event.Reason,
		ActorID:       event.ActorID,
		CorrelationID: event.CorrelationID,
	}
	if !event.CompanyID.IsNil() {
		p.CompanyID = event.CompanyID.String()
	}

	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	return s.producer.Produce(ctx, []byte(event.RequestID.String()), value)
}

// DecodeEvent parses a consumed record back into an Event. Used by
// downstream consumers and integration tests.
func DecodeEvent(value []byte) (notification.Event, error) {
	var p payload
	if err := json.Unmarshal(value, &p); err != nil {
		return notification.Event{}, fmt.Errorf("unmarshal notification payload: %w", err)
	}

	event := notification.Event{
		Category:      notification.EventCategory(p.Category),
		Action:        p.Action,
		Reason:        p.Reason,
		ActorID:       p.ActorID,
		CorrelationID: p.CorrelationID,
	}
	if p.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
			event.Timestamp = ts
		}
	}
	if requestID, err := id.ParseRequestID(p.RequestID); err == nil {
		event.RequestID = requestID
	}
	if p.CompanyID != "" {
		if companyID, err := id.ParseCompanyID(p.CompanyID); err == nil {
			event.CompanyID = companyID
		}
	}
	return event, nil
}
