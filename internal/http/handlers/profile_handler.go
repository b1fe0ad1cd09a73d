package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/dkovalev/uslugi-backend/internal/dto"
	"github.com/dkovalev/uslugi-backend/internal/http/handlers/common"
	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/repository"
	"github.com/dkovalev/uslugi-backend/internal/storage"
	"github.com/dkovalev/uslugi-backend/internal/validation"
	"github.com/dkovalev/uslugi-backend/internal/ws"
)

// Разрешённые типы файлов для аватара
var allowedAvatarMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Разрешённые расширения файлов
var allowedAvatarExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// ProfileHandler отвечает за работу с профилем.
type ProfileHandler struct {
	users   *repository.UserRepository
	avatars *storage.AvatarStorage
	hub     *ws.Hub
}

// NewProfileHandler создаёт экземпляр.
func NewProfileHandler(users *repository.UserRepository, avatars *storage.AvatarStorage, hub *ws.Hub) *ProfileHandler {
	return &ProfileHandler{users: users, avatars: avatars, hub: hub}
}

// GetMe возвращает профиль текущего пользователя.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "пользователь не найден"})
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "профиль не найден"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"profile": profile,
	})
}

// UpdateMe обновляет профиль текущего пользователя.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Валидация отображаемого имени
	if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Валидация почасовой ставки
	if req.HourlyRate != nil {
		if err := validation.ValidateHourlyRate(*req.HourlyRate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if req.Bio != nil {
		if err := validation.ValidateLength("описание", *req.Bio, 0, 2000); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	profile := &models.Profile{
		UserID:      userID,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		HourlyRate:  req.HourlyRate,
		Location:    req.Location,
		Phone:       req.Phone,
	}

	if err := h.users.UpdateProfile(c.Request.Context(), profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// WebSocket уведомление об обновлении профиля
	if h.hub != nil {
		_ = h.hub.BroadcastToUser(userID, "profile.updated", gin.H{
			"profile": profile,
		})
	}

	c.JSON(http.StatusOK, profile)
}

// GetUserProfile возвращает публичный профиль пользователя по ID.
func (h *ProfileHandler) GetUserProfile(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный ID пользователя"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "пользователь не найден"})
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "профиль не найден"})
		return
	}

	// Публичная информация, без email и приватных данных
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":         user.ID,
			"username":   user.Username,
			"role":       user.Role,
			"created_at": user.CreatedAt,
		},
		"profile": profile,
	})
}

// UploadAvatar обрабатывает POST /users/me/avatar.
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "поле file обязательно"})
		return
	}

	if file.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "файл не может быть пустым"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedAvatarExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неподдерживаемый формат файла. Разрешены: .jpg, .jpeg, .png, .webp"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	// Проверяем магические байты (реальный тип файла)
	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось прочитать файл"})
		return
	}

	kind, err := filetype.Match(buffer[:n])
	if err != nil || kind == filetype.Unknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось определить тип файла. Разрешены только изображения"})
		return
	}

	if !allowedAvatarMimeTypes[kind.MIME.Value] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("неподдерживаемый тип файла (%s). Разрешены изображения jpeg, png, webp", kind.MIME.Value),
		})
		return
	}

	// Возвращаемся в начало файла перед сохранением
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Удаляем предыдущий аватар, если он есть
	if profile, perr := h.users.GetProfile(c.Request.Context(), userID); perr == nil && profile.AvatarPath != nil {
		_ = h.avatars.Delete(c.Request.Context(), *profile.AvatarPath)
	}

	relativePath, size, err := h.avatars.Save(c.Request.Context(), userID, file.Filename, src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.SetAvatarPath(c.Request.Context(), userID, relativePath); err != nil {
		_ = h.avatars.Delete(c.Request.Context(), relativePath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"avatar_path": relativePath,
		"size":        size,
	})
}
