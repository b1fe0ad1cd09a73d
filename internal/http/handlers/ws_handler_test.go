package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/dkovalev/uslugi-backend/internal/events"
	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/service"
	"github.com/dkovalev/uslugi-backend/internal/ws"
)

// fakeFavoriteRepo считает обращения к списку избранного.
type fakeFavoriteRepo struct {
	mu    sync.Mutex
	lists int
}

func (f *fakeFavoriteRepo) Add(ctx context.Context, customerID, providerID uuid.UUID) (*models.Favorite, error) {
	return &models.Favorite{ID: uuid.New(), CustomerID: customerID, ProviderID: providerID}, nil
}

func (f *fakeFavoriteRepo) Remove(ctx context.Context, customerID, providerID uuid.UUID) (int64, error) {
	return 1, nil
}

func (f *fakeFavoriteRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	return []models.Favorite{}, nil
}

func (f *fakeFavoriteRepo) Exists(ctx context.Context, customerID, providerID uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeFavoriteRepo) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func newWSTestServer(t *testing.T, repo *fakeFavoriteRepo) (*httptest.Server, *events.Bus, *service.TokenManager, context.CancelFunc) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(ctx)
	go hub.Run()

	bus := events.NewBus()
	favorites := service.NewFavoriteService(repo, bus)
	tokens := service.NewTokenManager("access", "refresh", time.Minute, time.Hour)

	r := gin.New()
	handler := NewWSHandler(hub, tokens, favorites, bus)
	r.GET("/api/ws", handler.Handle)

	srv := httptest.NewServer(r)
	return srv, bus, tokens, cancel
}

func TestWSHandler_Handle_NoToken(t *testing.T) {
	srv, _, _, cancel := newWSTestServer(t, &fakeFavoriteRepo{})
	defer srv.Close()
	defer cancel()

	resp, err := http.Get(srv.URL + "/api/ws")
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSHandler_Handle_ConnectionLoadsFavoritesAndReloadsOnEvent(t *testing.T) {
	repo := &fakeFavoriteRepo{}
	srv, bus, tokens, cancel := newWSTestServer(t, repo)
	defer srv.Close()
	defer cancel()

	user := &models.User{ID: uuid.New(), Role: models.RoleCustomer}
	pair, _, _, err := tokens.GeneratePair(user)
	assert.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + pair.AccessToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn.Close()

	// Подключение загружает избранное пользователя
	assert.Eventually(t, func() bool {
		return repo.listCalls() == 1
	}, time.Second, 10*time.Millisecond)

	// Событие на шине приводит к перечитке списка
	bus.Publish(events.Event{
		UserID: user.ID,
		Name:   events.FavoriteAdded,
	})

	assert.Eventually(t, func() bool {
		return repo.listCalls() == 2
	}, time.Second, 10*time.Millisecond)

	// Чужие события перечитку не вызывают
	bus.Publish(events.Event{
		UserID: uuid.New(),
		Name:   events.FavoriteAdded,
	})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, repo.listCalls())
}
