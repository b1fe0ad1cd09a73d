package models

import (
	"time"

	"github.com/google/uuid"
)

// Favorite хранит связь "клиент добавил исполнителя в избранное".
// Уникальность пары (customer_id, provider_id) обеспечивается базой.
type Favorite struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CustomerID uuid.UUID `db:"customer_id" json:"customer_id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
