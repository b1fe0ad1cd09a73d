package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dkovalev/uslugi-backend/internal/dto"
	"github.com/dkovalev/uslugi-backend/internal/http/handlers/common"
	"github.com/dkovalev/uslugi-backend/internal/pkg/apperror"
	"github.com/dkovalev/uslugi-backend/internal/repository"
	"github.com/dkovalev/uslugi-backend/internal/service"
)

// FavoriteHandler предоставляет HTTP слой для избранных исполнителей.
type FavoriteHandler struct {
	svc *service.FavoriteService
}

func NewFavoriteHandler(s *service.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{svc: s}
}

// AddFavorite POST /favorites
func (h *FavoriteHandler) AddFavorite(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.AddFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	providerID, _ := uuid.Parse(req.ProviderID)
	fav, err := h.svc.AddFavorite(c.Request.Context(), userID, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrFavoriteExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "исполнитель уже в избранном"})
			return
		}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, fav)
}

// RemoveFavorite DELETE /favorites/:id
func (h *FavoriteHandler) RemoveFavorite(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	providerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	// Удаление отсутствующей записи не считается ошибкой
	removed, err := h.svc.RemoveFavorite(c.Request.Context(), userID, providerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed > 0})
}

// ListFavorites GET /favorites
func (h *FavoriteHandler) ListFavorites(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	favorites, err := h.svc.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, favorites)
}

// CheckFavorite GET /favorites/:id
func (h *FavoriteHandler) CheckFavorite(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	providerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	isFav, err := h.svc.IsFavorite(c.Request.Context(), userID, providerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.FavoriteCheckResponse{IsFavorite: isFav})
}
