package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/pkg/apperror"
)

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *mockBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) ListByProvider(ctx context.Context, providerID uuid.UUID, status string, limit, offset int) ([]models.Booking, error) {
	args := m.Called(ctx, providerID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, status string, limit, offset int) ([]models.Booking, error) {
	args := m.Called(ctx, customerID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, fields map[string]interface{}) (*models.Booking, error) {
	args := m.Called(ctx, id, status, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type mockUserGetter struct {
	mock.Mock
}

func (m *mockUserGetter) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newTestBooking(providerID, customerID uuid.UUID, status string) *models.Booking {
	return &models.Booking{
		ID:           uuid.New(),
		CustomerID:   customerID,
		ProviderID:   providerID,
		ServiceTitle: "Ремонт сантехники",
		Status:       status,
	}
}

func TestBookingService_CreateBooking_Success(t *testing.T) {
	repo := new(mockBookingRepo)
	users := new(mockUserGetter)
	svc := NewBookingService(repo, users, NewCacheService(), 0)
	ctx := context.Background()

	customerID := uuid.New()
	providerID := uuid.New()

	users.On("GetByID", ctx, providerID).Return(&models.User{ID: providerID, Role: models.RoleProvider}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Booking")).Return(nil)

	booking, err := svc.CreateBooking(ctx, customerID, CreateBookingInput{
		ProviderID:   providerID,
		ServiceTitle: "Ремонт сантехники",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, customerID, booking.CustomerID)
	assert.Equal(t, providerID, booking.ProviderID)
	repo.AssertExpectations(t)
}

func TestBookingService_CreateBooking_ProviderRoleRequired(t *testing.T) {
	repo := new(mockBookingRepo)
	users := new(mockUserGetter)
	svc := NewBookingService(repo, users, NewCacheService(), 0)
	ctx := context.Background()

	providerID := uuid.New()
	users.On("GetByID", ctx, providerID).Return(&models.User{ID: providerID, Role: models.RoleCustomer}, nil)

	_, err := svc.CreateBooking(ctx, uuid.New(), CreateBookingInput{
		ProviderID:   providerID,
		ServiceTitle: "Уборка",
	})

	assert.Error(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBookingService_CreateBooking_ScheduledInPast(t *testing.T) {
	repo := new(mockBookingRepo)
	users := new(mockUserGetter)
	svc := NewBookingService(repo, users, NewCacheService(), 0)

	past := time.Now().Add(-time.Hour)
	_, err := svc.CreateBooking(context.Background(), uuid.New(), CreateBookingInput{
		ProviderID:   uuid.New(),
		ServiceTitle: "Уборка",
		ScheduledAt:  &past,
	})

	assert.Error(t, err)
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestBookingService_Accept_Success(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	ctx := context.Background()

	providerID := uuid.New()
	booking := newTestBooking(providerID, uuid.New(), models.BookingStatusPending)

	accepted := *booking
	accepted.Status = models.BookingStatusAccepted

	repo.On("GetByID", ctx, booking.ID).Return(booking, nil)
	repo.On("UpdateStatus", ctx, booking.ID, models.BookingStatusAccepted, mock.MatchedBy(func(fields map[string]interface{}) bool {
		_, hasAcceptedAt := fields["accepted_at"]
		notes, hasNotes := fields["provider_notes"]
		return hasAcceptedAt && hasNotes && notes == "возьму в работу" && len(fields) == 2
	})).Return(&accepted, nil)

	notes := "возьму в работу"
	result, err := svc.Accept(ctx, booking.ID, providerID, &notes)

	assert.NoError(t, err)
	assert.Equal(t, models.BookingStatusAccepted, result.Status)
	repo.AssertExpectations(t)
}

func TestBookingService_Accept_WithoutNotes(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	ctx := context.Background()

	providerID := uuid.New()
	booking := newTestBooking(providerID, uuid.New(), models.BookingStatusPending)

	accepted := *booking
	accepted.Status = models.BookingStatusAccepted

	repo.On("GetByID", ctx, booking.ID).Return(booking, nil)
	repo.On("UpdateStatus", ctx, booking.ID, models.BookingStatusAccepted, mock.MatchedBy(func(fields map[string]interface{}) bool {
		_, hasNotes := fields["provider_notes"]
		return !hasNotes && len(fields) == 1
	})).Return(&accepted, nil)

	_, err := svc.Accept(ctx, booking.ID, providerID, nil)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestBookingService_Accept_NotOwner(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	ctx := context.Background()

	booking := newTestBooking(uuid.New(), uuid.New(), models.BookingStatusPending)
	repo.On("GetByID", ctx, booking.ID).Return(booking, nil)

	stranger := uuid.New()
	_, err := svc.Accept(ctx, booking.ID, stranger, nil)

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_Accept_Unauthorized(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)

	_, err := svc.Accept(context.Background(), uuid.New(), uuid.Nil, nil)

	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestBookingService_Start_RequiresAccepted(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	ctx := context.Background()

	providerID := uuid.New()
	booking := newTestBooking(providerID, uuid.New(), models.BookingStatusPending)
	repo.On("GetByID", ctx, booking.ID).Return(booking, nil)

	_, err := svc.Start(ctx, booking.ID, providerID, nil)

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_Complete_SetsCompletedAt(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	ctx := context.Background()

	providerID := uuid.New()
	booking := newTestBooking(providerID, uuid.New(), models.BookingStatusInProgress)

	completed := *booking
	completed.Status = models.BookingStatusCompleted

	repo.On("GetByID", ctx, booking.ID).Return(booking, nil)
	repo.On("UpdateStatus", ctx, booking.ID, models.BookingStatusCompleted, mock.MatchedBy(func(fields map[string]interface{}) bool {
		_, ok := fields["completed_at"]
		return ok
	})).Return(&completed, nil)

	result, err := svc.Complete(ctx, booking.ID, providerID, nil)

	assert.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, result.Status)
}

func TestBookingService_Cancel_FromAnyActiveStatus(t *testing.T) {
	for _, status := range []string{
		models.BookingStatusPending,
		models.BookingStatusAccepted,
		models.BookingStatusInProgress,
	} {
		t.Run(status, func(t *testing.T) {
			repo := new(mockBookingRepo)
			svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
			ctx := context.Background()

			providerID := uuid.New()
			booking := newTestBooking(providerID, uuid.New(), status)

			cancelled := *booking
			cancelled.Status = models.BookingStatusCancelled

			reason := "клиент передумал"
			repo.On("GetByID", ctx, booking.ID).Return(booking, nil)
			repo.On("UpdateStatus", ctx, booking.ID, models.BookingStatusCancelled, mock.MatchedBy(func(fields map[string]interface{}) bool {
				_, hasCancelledAt := fields["cancelled_at"]
				return hasCancelledAt && fields["cancellation_reason"] == reason
			})).Return(&cancelled, nil)

			result, err := svc.Cancel(ctx, booking.ID, providerID, &reason)

			assert.NoError(t, err)
			assert.Equal(t, models.BookingStatusCancelled, result.Status)
		})
	}
}

func TestBookingService_Cancel_TerminalStatusRejected(t *testing.T) {
	for _, status := range []string{
		models.BookingStatusCompleted,
		models.BookingStatusCancelled,
	} {
		t.Run(status, func(t *testing.T) {
			repo := new(mockBookingRepo)
			svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
			ctx := context.Background()

			providerID := uuid.New()
			booking := newTestBooking(providerID, uuid.New(), status)
			repo.On("GetByID", ctx, booking.ID).Return(booking, nil)

			_, err := svc.Cancel(ctx, booking.ID, providerID, nil)

			assert.Error(t, err)
			assert.True(t, apperror.IsInvalidTransition(err))
			repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBookingService_Transition_NotFound(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	ctx := context.Background()

	bookingID := uuid.New()
	repo.On("GetByID", ctx, bookingID).Return(nil, apperror.ErrBookingNotFound)

	_, err := svc.Accept(ctx, bookingID, uuid.New(), nil)

	assert.ErrorIs(t, err, apperror.ErrBookingNotFound)
}

func TestBookingService_GetBooking_PartyOnly(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	ctx := context.Background()

	providerID := uuid.New()
	customerID := uuid.New()
	booking := newTestBooking(providerID, customerID, models.BookingStatusPending)
	repo.On("GetByID", ctx, booking.ID).Return(booking, nil)

	got, err := svc.GetBooking(ctx, booking.ID, customerID)
	assert.NoError(t, err)
	assert.Equal(t, booking, got)

	_, err = svc.GetBooking(ctx, booking.ID, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
}

func TestBookingService_ListForProvider_DefaultPageUsesCache(t *testing.T) {
	repo := new(mockBookingRepo)
	cache := NewCacheService()
	svc := NewBookingService(repo, new(mockUserGetter), cache, time.Minute)
	ctx := context.Background()

	providerID := uuid.New()
	bookings := []models.Booking{*newTestBooking(providerID, uuid.New(), models.BookingStatusPending)}

	repo.On("ListByProvider", ctx, providerID, "", defaultListLimit, 0).Return(bookings, nil).Once()

	// Страница по умолчанию, как её запрашивает HTTP слой
	first, err := svc.ListForProvider(ctx, providerID, "", defaultListLimit, 0)
	assert.NoError(t, err)
	assert.Len(t, first, 1)

	_, ok := cache.Get(ProviderBookingsCacheKey(providerID, ""))
	assert.True(t, ok)

	// Повторный запрос и запрос без пагинации обслуживаются из кэша
	second, err := svc.ListForProvider(ctx, providerID, "", defaultListLimit, 0)
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	third, err := svc.ListForProvider(ctx, providerID, "", 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, first, third)

	repo.AssertExpectations(t)
}

func TestBookingService_ListForProvider_ExplicitPaginationBypassesCache(t *testing.T) {
	repo := new(mockBookingRepo)
	cache := NewCacheService()
	svc := NewBookingService(repo, new(mockUserGetter), cache, time.Minute)
	ctx := context.Background()

	providerID := uuid.New()
	bookings := []models.Booking{*newTestBooking(providerID, uuid.New(), models.BookingStatusPending)}

	repo.On("ListByProvider", ctx, providerID, "", 5, 0).Return(bookings, nil).Twice()
	repo.On("ListByProvider", ctx, providerID, "", defaultListLimit, 40).Return(bookings, nil).Once()

	// Нестандартный размер страницы идёт мимо кэша оба раза
	_, err := svc.ListForProvider(ctx, providerID, "", 5, 0)
	assert.NoError(t, err)
	_, err = svc.ListForProvider(ctx, providerID, "", 5, 0)
	assert.NoError(t, err)

	// Смещение тоже не кэшируется
	_, err = svc.ListForProvider(ctx, providerID, "", defaultListLimit, 40)
	assert.NoError(t, err)

	_, ok := cache.Get(ProviderBookingsCacheKey(providerID, ""))
	assert.False(t, ok)
	repo.AssertExpectations(t)
}

func TestBookingService_ListForCustomer_DefaultPageUsesCache(t *testing.T) {
	repo := new(mockBookingRepo)
	cache := NewCacheService()
	svc := NewBookingService(repo, new(mockUserGetter), cache, time.Minute)
	ctx := context.Background()

	customerID := uuid.New()
	bookings := []models.Booking{*newTestBooking(uuid.New(), customerID, models.BookingStatusPending)}

	repo.On("ListByCustomer", ctx, customerID, "", defaultListLimit, 0).Return(bookings, nil).Once()

	first, err := svc.ListForCustomer(ctx, customerID, "", defaultListLimit, 0)
	assert.NoError(t, err)

	second, err := svc.ListForCustomer(ctx, customerID, "", defaultListLimit, 0)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	repo.AssertExpectations(t)
}

func TestBookingService_Transition_InvalidatesCache(t *testing.T) {
	repo := new(mockBookingRepo)
	cache := NewCacheService()
	svc := NewBookingService(repo, new(mockUserGetter), cache, time.Minute)
	ctx := context.Background()

	providerID := uuid.New()
	customerID := uuid.New()
	booking := newTestBooking(providerID, customerID, models.BookingStatusPending)

	cache.Set(ProviderBookingsCacheKey(providerID, ""), []models.Booking{*booking}, time.Minute)
	cache.Set(CustomerBookingsCacheKey(customerID, ""), []models.Booking{*booking}, time.Minute)

	accepted := *booking
	accepted.Status = models.BookingStatusAccepted

	repo.On("GetByID", ctx, booking.ID).Return(booking, nil)
	repo.On("UpdateStatus", ctx, booking.ID, models.BookingStatusAccepted, mock.Anything).Return(&accepted, nil)

	_, err := svc.Accept(ctx, booking.ID, providerID, nil)
	assert.NoError(t, err)

	_, ok := cache.Get(ProviderBookingsCacheKey(providerID, ""))
	assert.False(t, ok)
	_, ok = cache.Get(CustomerBookingsCacheKey(customerID, ""))
	assert.False(t, ok)
}

func TestBookingService_CreateBooking_TitleTooLong(t *testing.T) {
	repo := new(mockBookingRepo)
	users := new(mockUserGetter)
	svc := NewBookingService(repo, users, NewCacheService(), 0)

	_, err := svc.CreateBooking(context.Background(), uuid.New(), CreateBookingInput{
		ProviderID:   uuid.New(),
		ServiceTitle: strings.Repeat("а", 201),
	})

	assert.Error(t, err)
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBookingService_Accept_NotesTooLong(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)

	notes := strings.Repeat("а", 2001)
	_, err := svc.Accept(context.Background(), uuid.New(), uuid.New(), &notes)

	assert.Error(t, err)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_Cancel_ReasonTooLong(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)

	reason := strings.Repeat("а", 1001)
	_, err := svc.Cancel(context.Background(), uuid.New(), uuid.New(), &reason)

	assert.Error(t, err)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) BroadcastToUser(userID uuid.UUID, event string, data interface{}) error {
	args := m.Called(userID, event, data)
	return args.Error(0)
}

func TestBookingService_Accept_NotifiesBothParties(t *testing.T) {
	repo := new(mockBookingRepo)
	hub := new(mockBroadcaster)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	svc.SetHub(hub)
	ctx := context.Background()

	providerID := uuid.New()
	customerID := uuid.New()
	booking := newTestBooking(providerID, customerID, models.BookingStatusPending)

	accepted := *booking
	accepted.Status = models.BookingStatusAccepted

	repo.On("GetByID", ctx, booking.ID).Return(booking, nil)
	repo.On("UpdateStatus", ctx, booking.ID, models.BookingStatusAccepted, mock.Anything).Return(&accepted, nil)

	// Исполнитель получает уведомление об успехе, клиент о смене статуса
	hub.On("BroadcastToUser", providerID, "notice", mock.MatchedBy(func(data interface{}) bool {
		notice, ok := data.(models.Notice)
		return ok && notice.Severity == models.NoticeSeveritySuccess && notice.Title == "Заявка принята"
	})).Return(nil).Once()
	hub.On("BroadcastToUser", customerID, "notice", mock.MatchedBy(func(data interface{}) bool {
		notice, ok := data.(models.Notice)
		return ok && notice.Severity == models.NoticeSeverityInfo
	})).Return(nil).Once()

	_, err := svc.Accept(ctx, booking.ID, providerID, nil)

	assert.NoError(t, err)
	hub.AssertExpectations(t)
}

func TestBookingService_Transition_FailureNotifiesCallerWithReason(t *testing.T) {
	repo := new(mockBookingRepo)
	hub := new(mockBroadcaster)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	svc.SetHub(hub)
	ctx := context.Background()

	providerID := uuid.New()
	booking := newTestBooking(providerID, uuid.New(), models.BookingStatusCompleted)
	repo.On("GetByID", ctx, booking.ID).Return(booking, nil)

	hub.On("BroadcastToUser", providerID, "notice", mock.MatchedBy(func(data interface{}) bool {
		notice, ok := data.(models.Notice)
		return ok && notice.Severity == models.NoticeSeverityError &&
			notice.Description == "невозможно отменить заявку в текущем статусе"
	})).Return(nil).Once()

	_, err := svc.Cancel(ctx, booking.ID, providerID, nil)

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
	hub.AssertExpectations(t)
}

func TestBookingService_Transition_UnauthenticatedGetsNoNotice(t *testing.T) {
	repo := new(mockBookingRepo)
	hub := new(mockBroadcaster)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	svc.SetHub(hub)

	_, err := svc.Accept(context.Background(), uuid.New(), uuid.Nil, nil)

	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	hub.AssertNotCalled(t, "BroadcastToUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_Transition_RepoErrorPropagates(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockUserGetter), NewCacheService(), 0)
	ctx := context.Background()

	providerID := uuid.New()
	booking := newTestBooking(providerID, uuid.New(), models.BookingStatusPending)
	dbErr := errors.New("db down")

	repo.On("GetByID", ctx, booking.ID).Return(booking, nil)
	repo.On("UpdateStatus", ctx, booking.ID, models.BookingStatusAccepted, mock.Anything).Return(nil, dbErr)

	_, err := svc.Accept(ctx, booking.ID, providerID, nil)
	assert.ErrorIs(t, err, dbErr)
}
