// Package events carries payment lifecycle notifications to collaborators
// (notifications, activity logs) after the ledger transaction has committed.
// Delivery is asynchronous; payment operations never wait on consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"lmsledger/internal/money"
)

type Type string

const (
	PaymentCreated          Type = "payment.created"
	PaymentCompleted        Type = "payment.completed"
	PaymentCancelled        Type = "payment.cancelled"
	PaymentRefunded         Type = "payment.refunded"
	PaymentStatusOverridden Type = "payment.status_overridden"
)

type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       Type        `json:"type"`
	PaymentID  uuid.UUID   `json:"payment_id"`
	Status     string      `json:"status"`
	Method     string      `json:"method"`
	Reason     string      `json:"reason"`
	Amount     money.Money `json:"amount"`
	SenderID   uuid.UUID   `json:"sender_id"`
	ReceiverID uuid.UUID   `json:"receiver_id"`
	ActorID    uuid.UUID   `json:"actor_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Tries      int         `json:"tries"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Handler func(ctx context.Context, e Event) error

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
