package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/pkg/apperror"
	"github.com/dkovalev/uslugi-backend/internal/repository/common"
)

// BookingRepository отвечает за работу с бронированиями.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository создаёт экземпляр репозитория.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create создаёт новое бронирование в статусе pending.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (customer_id, provider_id, service_title, scheduled_at, status, customer_comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		booking.CustomerID,
		booking.ProviderID,
		booking.ServiceTitle,
		booking.ScheduledAt,
		booking.Status,
		booking.CustomerComment,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return fmt.Errorf("booking repository: create %w", err)
	}

	return nil
}

// GetByID возвращает бронирование по идентификатору.
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return common.GetByID[models.Booking](ctx, r.db, "bookings", id, apperror.ErrBookingNotFound)
}

// ListByProvider возвращает бронирования, адресованные исполнителю.
func (r *BookingRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, status string, limit, offset int) ([]models.Booking, error) {
	return r.list(ctx, "provider_id", providerID, status, limit, offset)
}

// ListByCustomer возвращает бронирования, созданные клиентом.
func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, status string, limit, offset int) ([]models.Booking, error) {
	return r.list(ctx, "customer_id", customerID, status, limit, offset)
}

func (r *BookingRepository) list(ctx context.Context, field string, ownerID uuid.UUID, status string, limit, offset int) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT * FROM bookings WHERE %s = $1`, field)
	args := []interface{}{ownerID}
	argIndex := 2

	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("booking repository: list %w", err)
	}

	return bookings, nil
}

// UpdateStatus переводит бронирование в новый статус и выставляет только
// переданные дополнительные поля. Прочие колонки запрос не трогает.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, fields map[string]interface{}) (*models.Booking, error) {
	setClause := "status = $1, updated_at = $2"
	args := []interface{}{status, time.Now()}
	argIndex := 3

	// Стабильный порядок полей, чтобы запрос был детерминированным.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		setClause += fmt.Sprintf(", %s = $%d", name, argIndex)
		args = append(args, fields[name])
		argIndex++
	}

	query := fmt.Sprintf(`UPDATE bookings SET %s WHERE id = $%d RETURNING *`, setClause, argIndex)
	args = append(args, id)

	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, args...); err != nil {
		return nil, fmt.Errorf("booking repository: update status %w", err)
	}

	return &booking, nil
}
