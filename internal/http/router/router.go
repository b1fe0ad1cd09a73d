package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkovalev/uslugi-backend/internal/config"
	"github.com/dkovalev/uslugi-backend/internal/http/handlers"
	"github.com/dkovalev/uslugi-backend/internal/http/middleware"
	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	bookingHandler *handlers.BookingHandler,
	favoriteHandler *handlers.FavoriteHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/avatars", http.Dir(cfg.AvatarStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/users/:id", middleware.UUIDValidator("id"), profileHandler.GetUserProfile)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/profile", profileHandler.GetMe)
		protected.PUT("/profile", profileHandler.UpdateMe)
		protected.POST("/profile/avatar", profileHandler.UploadAvatar)

		protected.GET("/favorites", favoriteHandler.ListFavorites)
		protected.POST("/favorites", favoriteHandler.AddFavorite)
		protected.GET("/favorites/:id", middleware.UUIDValidator("id"), favoriteHandler.CheckFavorite)
		protected.DELETE("/favorites/:id", middleware.UUIDValidator("id"), favoriteHandler.RemoveFavorite)

		protected.POST("/bookings", bookingHandler.Create)
		protected.GET("/bookings/provider", bookingHandler.ListAsProvider)
		protected.GET("/bookings/customer", bookingHandler.ListAsCustomer)
		protected.GET("/bookings/:id", middleware.UUIDValidator("id"), bookingHandler.Get)
		protected.POST("/bookings/:id/cancel", middleware.UUIDValidator("id"), bookingHandler.Cancel)

		// Переходы статусов доступны только исполнителям
		providerOnly := protected.Group("/bookings/:id")
		providerOnly.Use(middleware.UUIDValidator("id"), middleware.RequireRole(models.RoleProvider))
		{
			providerOnly.POST("/accept", bookingHandler.Accept)
			providerOnly.POST("/start", bookingHandler.Start)
			providerOnly.POST("/complete", bookingHandler.Complete)
		}

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.Delete)
	}

	return r
}
