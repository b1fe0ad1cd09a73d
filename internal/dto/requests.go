package dto

import "time"

// RegisterRequest тело запроса регистрации.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

// LoginRequest тело запроса входа.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest тело запроса обновления токенов.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateBookingRequest тело запроса создания заявки.
type CreateBookingRequest struct {
	ProviderID      string     `json:"provider_id" binding:"required,uuid"`
	ServiceTitle    string     `json:"service_title" binding:"required"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	CustomerComment *string    `json:"customer_comment"`
}

// TransitionBookingRequest тело запроса перехода статуса заявки.
type TransitionBookingRequest struct {
	Notes *string `json:"notes"`
}

// CancelBookingRequest тело запроса отмены заявки.
type CancelBookingRequest struct {
	Reason *string `json:"reason"`
}

// AddFavoriteRequest тело запроса добавления в избранное.
type AddFavoriteRequest struct {
	ProviderID string `json:"provider_id" binding:"required,uuid"`
}

// UpdateProfileRequest тело запроса обновления профиля.
type UpdateProfileRequest struct {
	DisplayName string   `json:"display_name"`
	Bio         *string  `json:"bio"`
	HourlyRate  *float64 `json:"hourly_rate"`
	Location    *string  `json:"location"`
	Phone       *string  `json:"phone"`
}
