package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dkovalev/uslugi-backend/internal/logger"
	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/pkg/apperror"
	"github.com/dkovalev/uslugi-backend/internal/validation"
)

// defaultListLimit совпадает с размером страницы по умолчанию на HTTP слое;
// кэшируется именно эта первая страница.
const defaultListLimit = 20

// BookingRepository описывает взаимодействие сервиса с хранилищем бронирований.
type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, status string, limit, offset int) ([]models.Booking, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, status string, limit, offset int) ([]models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, fields map[string]interface{}) (*models.Booking, error)
}

// UserGetter нужен сервису, чтобы проверить исполнителя при создании заявки.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Broadcaster отправляет push пользователю (реализуется ws.Hub).
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
}

// CreateBookingInput содержит данные новой заявки.
type CreateBookingInput struct {
	ProviderID      uuid.UUID
	ServiceTitle    string
	ScheduledAt     *time.Time
	CustomerComment *string
}

// BookingService реализует жизненный цикл бронирования.
// Каждый переход статуса заново читает запись из базы, проверяет
// принадлежность исполнителю и текущий статус, и только потом обновляет.
// Взаимного исключения между конкурентными переходами нет: гонка
// чтение-проверка-запись разрешается последней прочитавшей стороной.
type BookingService struct {
	repo  BookingRepository
	users UserGetter
	cache *CacheService
	hub   Broadcaster

	cacheTTL time.Duration
}

// NewBookingService создаёт сервис бронирований.
func NewBookingService(repo BookingRepository, users UserGetter, cache *CacheService, cacheTTL time.Duration) *BookingService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &BookingService{
		repo:     repo,
		users:    users,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// SetHub подключает push-рассылку уведомлений.
func (s *BookingService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// CreateBooking создаёт заявку клиента к исполнителю в статусе pending.
func (s *BookingService) CreateBooking(ctx context.Context, customerID uuid.UUID, in CreateBookingInput) (*models.Booking, error) {
	if customerID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if err := validation.ValidateServiceTitle(in.ServiceTitle); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if in.CustomerComment != nil {
		if err := validation.ValidateNotes(*in.CustomerComment); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}
	if in.ScheduledAt != nil && in.ScheduledAt.Before(time.Now()) {
		return nil, apperror.New(apperror.ErrCodeValidation, "время услуги не может быть в прошлом")
	}

	provider, err := s.users.GetByID(ctx, in.ProviderID)
	if err != nil {
		return nil, apperror.ErrProviderNotFound
	}
	if provider.Role != models.RoleProvider {
		return nil, apperror.New(apperror.ErrCodeValidation, "пользователь не является исполнителем")
	}

	booking := &models.Booking{
		CustomerID:      customerID,
		ProviderID:      in.ProviderID,
		ServiceTitle:    in.ServiceTitle,
		ScheduledAt:     in.ScheduledAt,
		Status:          models.BookingStatusPending,
		CustomerComment: in.CustomerComment,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.invalidateListCaches(booking)
	s.notify(ctx, booking.ProviderID, models.Notice{
		Title:       "Новая заявка",
		Description: "Клиент создал заявку на услугу «" + booking.ServiceTitle + "»",
		Severity:    models.NoticeSeverityInfo,
	})

	return booking, nil
}

// GetBooking возвращает бронирование его участнику.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, callerID uuid.UUID) (*models.Booking, error) {
	if callerID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.IsOwnedByProvider(callerID) && !booking.IsOwnedByCustomer(callerID) {
		return nil, apperror.ErrForbidden
	}

	return booking, nil
}

// ListForProvider возвращает заявки исполнителя.
// Первая страница с размером по умолчанию кэшируется.
func (s *BookingService) ListForProvider(ctx context.Context, providerID uuid.UUID, status string, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	key := ProviderBookingsCacheKey(providerID, status)
	cacheable := s.cache != nil && offset == 0 && limit == defaultListLimit
	if cacheable {
		if cached, ok := s.cache.Get(key); ok {
			return cached.([]models.Booking), nil
		}
	}

	bookings, err := s.repo.ListByProvider(ctx, providerID, status, limit, offset)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.cache.Set(key, bookings, s.cacheTTL)
	}
	return bookings, nil
}

// ListForCustomer возвращает заявки клиента.
// Первая страница с размером по умолчанию кэшируется.
func (s *BookingService) ListForCustomer(ctx context.Context, customerID uuid.UUID, status string, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	key := CustomerBookingsCacheKey(customerID, status)
	cacheable := s.cache != nil && offset == 0 && limit == defaultListLimit
	if cacheable {
		if cached, ok := s.cache.Get(key); ok {
			return cached.([]models.Booking), nil
		}
	}

	bookings, err := s.repo.ListByCustomer(ctx, customerID, status, limit, offset)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.cache.Set(key, bookings, s.cacheTTL)
	}
	return bookings, nil
}

// Accept переводит заявку pending -> accepted.
// Проставляет provider_notes и accepted_at.
func (s *BookingService) Accept(ctx context.Context, bookingID, callerID uuid.UUID, notes *string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, callerID, transitionSpec{
		target:       models.BookingStatusAccepted,
		failMessage:  "невозможно принять заявку в текущем статусе",
		successTitle: "Заявка принята",
		validate:     notesValidator(notes),
		fields: func(now time.Time) map[string]interface{} {
			fields := map[string]interface{}{"accepted_at": now}
			if notes != nil {
				fields["provider_notes"] = *notes
			}
			return fields
		},
	})
}

// Start переводит заявку accepted -> in_progress.
// Проставляет provider_notes и started_at.
func (s *BookingService) Start(ctx context.Context, bookingID, callerID uuid.UUID, notes *string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, callerID, transitionSpec{
		target:       models.BookingStatusInProgress,
		failMessage:  "невозможно начать работу в текущем статусе",
		successTitle: "Работа начата",
		validate:     notesValidator(notes),
		fields: func(now time.Time) map[string]interface{} {
			fields := map[string]interface{}{"started_at": now}
			if notes != nil {
				fields["provider_notes"] = *notes
			}
			return fields
		},
	})
}

// Complete переводит заявку in_progress -> completed.
// Проставляет provider_notes и completed_at.
func (s *BookingService) Complete(ctx context.Context, bookingID, callerID uuid.UUID, notes *string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, callerID, transitionSpec{
		target:       models.BookingStatusCompleted,
		failMessage:  "невозможно завершить заявку в текущем статусе",
		successTitle: "Заявка завершена",
		validate:     notesValidator(notes),
		fields: func(now time.Time) map[string]interface{} {
			fields := map[string]interface{}{"completed_at": now}
			if notes != nil {
				fields["provider_notes"] = *notes
			}
			return fields
		},
	})
}

// Cancel отменяет заявку из любого нетерминального статуса.
// Проставляет cancellation_reason и cancelled_at.
func (s *BookingService) Cancel(ctx context.Context, bookingID, callerID uuid.UUID, reason *string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, callerID, transitionSpec{
		target:       models.BookingStatusCancelled,
		failMessage:  "невозможно отменить заявку в текущем статусе",
		successTitle: "Заявка отменена",
		validate: func() error {
			if reason == nil {
				return nil
			}
			return validation.ValidateCancellationReason(*reason)
		},
		fields: func(now time.Time) map[string]interface{} {
			fields := map[string]interface{}{"cancelled_at": now}
			if reason != nil {
				fields["cancellation_reason"] = *reason
			}
			return fields
		},
	})
}

type transitionSpec struct {
	target       string
	failMessage  string
	successTitle string
	validate     func() error
	fields       func(now time.Time) map[string]interface{}
}

// notesValidator строит проверку необязательного комментария исполнителя.
func notesValidator(notes *string) func() error {
	return func() error {
		if notes == nil {
			return nil
		}
		return validation.ValidateNotes(*notes)
	}
}

// transition выполняет общий для всех переходов сценарий: авторизация,
// свежее чтение, проверка владельца, проверка статуса, обновление.
// Успех и ошибка доводятся до пользователя уведомлением.
func (s *BookingService) transition(ctx context.Context, bookingID, callerID uuid.UUID, spec transitionSpec) (*models.Booking, error) {
	booking, err := s.doTransition(ctx, bookingID, callerID, spec)
	if err != nil {
		// Неавторизованного вызывающего уведомить некому.
		if callerID != uuid.Nil {
			s.notify(ctx, callerID, models.Notice{
				Title:       "Ошибка",
				Description: userMessage(err),
				Severity:    models.NoticeSeverityError,
			})
		}
		return nil, err
	}

	s.invalidateListCaches(booking)

	s.notify(ctx, callerID, models.Notice{
		Title:       spec.successTitle,
		Description: "Заявка «" + booking.ServiceTitle + "» переведена в статус " + booking.Status,
		Severity:    models.NoticeSeveritySuccess,
	})
	s.notify(ctx, booking.CustomerID, models.Notice{
		Title:       "Статус заявки изменился",
		Description: "Заявка «" + booking.ServiceTitle + "» теперь в статусе " + booking.Status,
		Severity:    models.NoticeSeverityInfo,
	})

	return booking, nil
}

func (s *BookingService) doTransition(ctx context.Context, bookingID, callerID uuid.UUID, spec transitionSpec) (*models.Booking, error) {
	if callerID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	if spec.validate != nil {
		if err := spec.validate(); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}

	// Свежее чтение прямо перед проверками: решение принимается по
	// текущему состоянию записи, а не по данным вызывающего.
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.IsOwnedByProvider(callerID) {
		return nil, apperror.ErrForbidden
	}

	if !models.CanTransitionBooking(booking.Status, spec.target) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, spec.failMessage)
	}

	return s.repo.UpdateStatus(ctx, bookingID, spec.target, spec.fields(time.Now()))
}

func (s *BookingService) invalidateListCaches(booking *models.Booking) {
	if s.cache != nil {
		s.cache.InvalidateBookingCaches(booking.ProviderID, booking.CustomerID)
	}
}

func (s *BookingService) notify(ctx context.Context, userID uuid.UUID, notice models.Notice) {
	if s.hub == nil || userID == uuid.Nil {
		return
	}
	if err := s.hub.BroadcastToUser(userID, "notice", notice); err != nil && logger.Log != nil {
		logger.Log.WithError(err).Warn("booking service: не удалось отправить уведомление")
	}
}

// userMessage достаёт человекочитаемое сообщение из ошибки.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "операция не выполнена, попробуйте ещё раз"
}
