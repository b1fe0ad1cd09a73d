package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking описывает заявку клиента на услугу исполнителя.
// Статус движется строго по линейному пути, терминальные статусы
// completed и cancelled.
type Booking struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	CustomerID         uuid.UUID  `db:"customer_id" json:"customer_id"`
	ProviderID         uuid.UUID  `db:"provider_id" json:"provider_id"`
	ServiceTitle       string     `db:"service_title" json:"service_title"`
	ScheduledAt        *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	Status             string     `db:"status" json:"status"`
	CustomerComment    *string    `db:"customer_comment" json:"customer_comment,omitempty"`
	ProviderNotes      *string    `db:"provider_notes" json:"provider_notes,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	AcceptedAt         *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	StartedAt          *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IsOwnedByProvider проверяет, что бронирование адресовано данному исполнителю.
func (b *Booking) IsOwnedByProvider(userID uuid.UUID) bool {
	return b.ProviderID == userID
}

// IsOwnedByCustomer проверяет, что бронирование создано данным клиентом.
func (b *Booking) IsOwnedByCustomer(userID uuid.UUID) bool {
	return b.CustomerID == userID
}
