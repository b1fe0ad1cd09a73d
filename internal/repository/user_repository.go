package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/repository/common"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmailTaken      = errors.New("email already registered")
)

// UserRepository отвечает за пользователей, профили и сессии.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateWithProfile атомарно создаёт пользователя и его профиль.
func (r *UserRepository) CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO users (email, username, password_hash, role, is_active)
			VALUES ($1, $2, $3, $4, TRUE)
			RETURNING id, is_active, created_at, updated_at
		`

		if err := tx.QueryRowxContext(
			ctx,
			query,
			strings.ToLower(user.Email),
			user.Username,
			user.PasswordHash,
			user.Role,
		).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			if strings.Contains(err.Error(), "users_email_key") {
				return ErrEmailTaken
			}
			return fmt.Errorf("user repository: create %w", err)
		}

		profile.UserID = user.ID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (user_id, display_name)
			VALUES ($1, $2)
		`, profile.UserID, profile.DisplayName); err != nil {
			return fmt.Errorf("user repository: create profile %w", err)
		}

		return nil
	})
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, ErrUserNotFound)
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return common.GetByField[models.User](ctx, r.db, "users", "email", strings.ToLower(email), ErrUserNotFound)
}

// GetProfile возвращает профиль пользователя.
func (r *UserRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return common.GetByField[models.Profile](ctx, r.db, "profiles", "user_id", userID, ErrUserNotFound)
}

// UpdateProfile обновляет публичный профиль пользователя.
func (r *UserRepository) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	query := `
		UPDATE profiles
		SET display_name = $2, bio = $3, hourly_rate = $4, location = $5, phone = $6, updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		profile.UserID,
		profile.DisplayName,
		profile.Bio,
		profile.HourlyRate,
		profile.Location,
		profile.Phone,
	)
	if err != nil {
		return fmt.Errorf("user repository: update profile %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("user repository: update profile rows affected %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetAvatarPath сохраняет относительный путь до аватара в профиле.
func (r *UserRepository) SetAvatarPath(ctx context.Context, userID uuid.UUID, path string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE profiles SET avatar_path = $2, updated_at = NOW() WHERE user_id = $1
	`, userID, path)
	if err != nil {
		return fmt.Errorf("user repository: set avatar path %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("user repository: set avatar path rows affected %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateLastLoginAt отмечает время последнего входа.
func (r *UserRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("user repository: update last login %w", err)
	}
	return nil
}

// CreateSession сохраняет refresh сессию пользователя.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		session.UserID,
		session.RefreshToken,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}

	return nil
}

// GetSessionByToken возвращает сессию по refresh токену.
func (r *UserRepository) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	var session models.Session
	err := r.db.GetContext(ctx, &session, `SELECT * FROM sessions WHERE refresh_token = $1`, refreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user repository: get session %w", err)
	}
	return &session, nil
}

// DeleteSession удаляет сессию по refresh токену.
func (r *UserRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken)
	if err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}
	return nil
}
