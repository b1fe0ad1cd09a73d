package dto

import (
	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/service"
)

// ErrorResponse стандартный формат ошибки.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse стандартный формат успешного ответа с данными.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse возвращается после регистрации, входа и refresh.
type AuthResponse struct {
	User      *models.User       `json:"user"`
	Profile   *models.Profile    `json:"profile,omitempty"`
	TokenPair *service.TokenPair `json:"tokens"`
}

// FavoriteCheckResponse результат проверки избранного.
type FavoriteCheckResponse struct {
	IsFavorite bool `json:"is_favorite"`
}

// UnreadCountResponse количество непрочитанных уведомлений.
type UnreadCountResponse struct {
	Count int `json:"count"`
}
