package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dkovalev/uslugi-backend/internal/events"
	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/pkg/apperror"
	"github.com/dkovalev/uslugi-backend/internal/repository"
)

type mockFavoriteRepo struct {
	mock.Mock
}

func (m *mockFavoriteRepo) Add(ctx context.Context, customerID, providerID uuid.UUID) (*models.Favorite, error) {
	args := m.Called(ctx, customerID, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Favorite), args.Error(1)
}

func (m *mockFavoriteRepo) Remove(ctx context.Context, customerID, providerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, customerID, providerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFavoriteRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Favorite, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Favorite), args.Error(1)
}

func (m *mockFavoriteRepo) Exists(ctx context.Context, customerID, providerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, customerID, providerID)
	return args.Bool(0), args.Error(1)
}

func newTestManager(repo FavoriteRepository) (*FavoritesManager, *events.Bus) {
	bus := events.NewBus()
	svc := NewFavoriteService(repo, bus)
	return NewFavoritesManager(svc, bus), bus
}

func TestFavoritesManager_SetUser_LoadsFavorites(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, _ := newTestManager(repo)
	ctx := context.Background()

	userID := uuid.New()
	providerID := uuid.New()
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{
		{ID: uuid.New(), CustomerID: userID, ProviderID: providerID},
	}, nil)

	err := mgr.SetUser(ctx, userID)

	assert.NoError(t, err)
	assert.True(t, mgr.IsFavorite(providerID))
	assert.Len(t, mgr.Favorites(), 1)
}

func TestFavoritesManager_SetUser_NilClearsState(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, _ := newTestManager(repo)
	ctx := context.Background()

	userID := uuid.New()
	providerID := uuid.New()
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{
		{ID: uuid.New(), CustomerID: userID, ProviderID: providerID},
	}, nil)

	assert.NoError(t, mgr.SetUser(ctx, userID))
	assert.True(t, mgr.IsFavorite(providerID))

	// Выход пользователя сбрасывает состояние без обращения к базе
	assert.NoError(t, mgr.SetUser(ctx, uuid.Nil))
	assert.False(t, mgr.IsFavorite(providerID))
	assert.Empty(t, mgr.Favorites())
}

func TestFavoritesManager_Load_ErrorKeepsPreviousState(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, _ := newTestManager(repo)
	ctx := context.Background()

	userID := uuid.New()
	providerID := uuid.New()
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{
		{ID: uuid.New(), CustomerID: userID, ProviderID: providerID},
	}, nil).Once()

	assert.NoError(t, mgr.SetUser(ctx, userID))

	dbErr := errors.New("db down")
	repo.On("ListByCustomer", mock.Anything, userID).Return(nil, dbErr)

	err := mgr.Load(ctx)

	assert.ErrorIs(t, err, dbErr)
	// Прежний список остаётся доступным
	assert.True(t, mgr.IsFavorite(providerID))
}

func TestFavoritesManager_Add_Success(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, _ := newTestManager(repo)
	ctx := context.Background()

	userID := uuid.New()
	providerID := uuid.New()
	fav := &models.Favorite{ID: uuid.New(), CustomerID: userID, ProviderID: providerID}
	// После добавления шина спровоцирует перечитку, она должна вернуть новую запись
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{}, nil).Once()
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{*fav}, nil)
	repo.On("Add", mock.Anything, userID, providerID).Return(fav, nil)

	assert.NoError(t, mgr.SetUser(ctx, userID))
	assert.False(t, mgr.IsFavorite(providerID))

	added, err := mgr.Add(ctx, providerID)

	assert.NoError(t, err)
	assert.Equal(t, providerID, added.ProviderID)
	assert.True(t, mgr.IsFavorite(providerID))

	mgr.Close()
}

func TestFavoritesManager_Add_DuplicateSkipsRemoteInsert(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, _ := newTestManager(repo)
	ctx := context.Background()

	userID := uuid.New()
	providerID := uuid.New()
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{
		{ID: uuid.New(), CustomerID: userID, ProviderID: providerID},
	}, nil)

	assert.NoError(t, mgr.SetUser(ctx, userID))

	_, err := mgr.Add(ctx, providerID)

	assert.ErrorIs(t, err, apperror.ErrAlreadyFavorite)
	repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

func TestFavoritesManager_Add_RaceWithRemoteDuplicate(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, _ := newTestManager(repo)
	ctx := context.Background()

	userID := uuid.New()
	providerID := uuid.New()
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{}, nil)
	repo.On("Add", mock.Anything, userID, providerID).Return(nil, repository.ErrFavoriteExists)

	assert.NoError(t, mgr.SetUser(ctx, userID))

	_, err := mgr.Add(ctx, providerID)

	assert.ErrorIs(t, err, apperror.ErrAlreadyFavorite)
}

func TestFavoritesManager_Add_Unauthorized(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, _ := newTestManager(repo)

	_, err := mgr.Add(context.Background(), uuid.New())

	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

func TestFavoritesManager_Remove_UpdatesLocalState(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, _ := newTestManager(repo)
	ctx := context.Background()

	userID := uuid.New()
	providerID := uuid.New()
	other := uuid.New()
	kept := models.Favorite{ID: uuid.New(), CustomerID: userID, ProviderID: other}
	// После удаления шина спровоцирует перечитку, она должна вернуть список без записи
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{
		{ID: uuid.New(), CustomerID: userID, ProviderID: providerID},
		kept,
	}, nil).Once()
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{kept}, nil)
	repo.On("Remove", mock.Anything, userID, providerID).Return(int64(1), nil)

	assert.NoError(t, mgr.SetUser(ctx, userID))

	err := mgr.Remove(ctx, providerID)

	assert.NoError(t, err)
	assert.False(t, mgr.IsFavorite(providerID))
	assert.True(t, mgr.IsFavorite(other))

	mgr.Close()
}

func TestFavoritesManager_Remove_AbsentIsNotError(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, _ := newTestManager(repo)
	ctx := context.Background()

	userID := uuid.New()
	providerID := uuid.New()
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{}, nil)
	repo.On("Remove", mock.Anything, userID, providerID).Return(int64(0), nil)

	assert.NoError(t, mgr.SetUser(ctx, userID))
	assert.NoError(t, mgr.Remove(ctx, providerID))
}

func TestFavoritesManager_BusEventTriggersReload(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, bus := newTestManager(repo)
	ctx := context.Background()

	userID := uuid.New()
	providerID := uuid.New()

	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{}, nil).Once()
	assert.NoError(t, mgr.SetUser(ctx, userID))
	assert.False(t, mgr.IsFavorite(providerID))

	// Другая сессия добавила запись: событие на шине приводит к перечитке
	repo.On("ListByCustomer", mock.Anything, userID).Return([]models.Favorite{
		{ID: uuid.New(), CustomerID: userID, ProviderID: providerID},
	}, nil)

	bus.Publish(events.Event{
		UserID:  userID,
		Name:    events.FavoriteAdded,
		Payload: map[string]interface{}{"provider_id": providerID},
	})

	assert.Eventually(t, func() bool {
		return mgr.IsFavorite(providerID)
	}, time.Second, 10*time.Millisecond)

	mgr.Close()
}

func TestFavoritesManager_SwitchUserResubscribes(t *testing.T) {
	repo := new(mockFavoriteRepo)
	mgr, bus := newTestManager(repo)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	providerID := uuid.New()

	repo.On("ListByCustomer", mock.Anything, first).Return([]models.Favorite{
		{ID: uuid.New(), CustomerID: first, ProviderID: providerID},
	}, nil)
	repo.On("ListByCustomer", mock.Anything, second).Return([]models.Favorite{}, nil)

	assert.NoError(t, mgr.SetUser(ctx, first))
	assert.True(t, mgr.IsFavorite(providerID))

	assert.NoError(t, mgr.SetUser(ctx, second))
	assert.False(t, mgr.IsFavorite(providerID))

	// События старого пользователя больше не влияют на состояние
	bus.Publish(events.Event{UserID: first, Name: events.FavoriteRemoved})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, mgr.Favorites())

	mgr.Close()
}
