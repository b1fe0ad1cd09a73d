package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dkovalev/uslugi-backend/internal/models"
)

var (
	ErrFavoriteNotFound = errors.New("favorite not found")
	ErrFavoriteExists   = errors.New("favorite already exists")
)

// FavoriteRepository отвечает за хранение избранных исполнителей.
type FavoriteRepository struct {
	db *sqlx.DB
}

func NewFavoriteRepository(db *sqlx.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add вставляет новую связь (customer, provider).
// Дубликат пары превращается в ErrFavoriteExists через код unique_violation.
func (r *FavoriteRepository) Add(ctx context.Context, customerID, providerID uuid.UUID) (*models.Favorite, error) {
	var f models.Favorite
	err := r.db.GetContext(ctx, &f, `
		INSERT INTO favorites (customer_id, provider_id)
		VALUES ($1, $2)
		RETURNING *
	`, customerID, providerID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrFavoriteExists
		}
		return nil, fmt.Errorf("favorite repository: add %w", err)
	}
	return &f, nil
}

// Remove удаляет связь по паре (customer, provider) и возвращает число удалённых строк.
func (r *FavoriteRepository) Remove(ctx context.Context, customerID, providerID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM favorites WHERE customer_id = $1 AND provider_id = $2
	`, customerID, providerID)
	if err != nil {
		return 0, fmt.Errorf("favorite repository: remove %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("favorite repository: remove rows affected %w", err)
	}
	return n, nil
}

// ListByCustomer возвращает все избранные записи клиента, новые первыми.
func (r *FavoriteRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Favorite, error) {
	var favorites []models.Favorite
	err := r.db.SelectContext(ctx, &favorites, `
		SELECT * FROM favorites WHERE customer_id = $1 ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("favorite repository: list by customer %w", err)
	}
	return favorites, nil
}

// Exists проверяет, есть ли исполнитель в избранном у клиента.
func (r *FavoriteRepository) Exists(ctx context.Context, customerID, providerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM favorites WHERE customer_id = $1 AND provider_id = $2)
	`, customerID, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("favorite repository: exists %w", err)
	}
	return exists, nil
}
