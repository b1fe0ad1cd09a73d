package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dkovalev/uslugi-backend/internal/logger"
	"github.com/dkovalev/uslugi-backend/internal/service"
	"github.com/dkovalev/uslugi-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
// На каждое соединение поднимается FavoritesManager: он держит избранное
// пользователя в памяти и перечитывает его по событиям шины, пока
// соединение живо.
type WSHandler struct {
	hub          *ws.Hub
	tokenManager *service.TokenManager
	favorites    *service.FavoriteService
	feed         service.FavoriteFeed
	upgrader     websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(hub *ws.Hub, tokens *service.TokenManager, favorites *service.FavoriteService, feed service.FavoriteFeed) *WSHandler {
	return &WSHandler{
		hub:          hub,
		tokenManager: tokens,
		favorites:    favorites,
		feed:         feed,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle обслуживает GET /api/ws?token=...
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access токен обязателен"})
		return
	}

	userID, _, err := h.tokenManager.ParseAccess(rawToken)
	if err != nil || userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "невалидный access токен"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	client := ws.NewClient(conn, h.hub, userID)
	h.hub.Register(client)

	// Сессионный кэш избранного живёт вместе с соединением.
	if h.favorites != nil {
		manager := service.NewFavoritesManager(h.favorites, h.feed)
		if err := manager.SetUser(c.Request.Context(), userID); err != nil && logger.Log != nil {
			logger.Log.WithError(err).Warn("ws: не удалось загрузить избранное пользователя")
		}
		defer manager.Close()
	}

	client.Run(c.Request.Context())
}
