package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/dkovalev/uslugi-backend/internal/events"
	"github.com/dkovalev/uslugi-backend/internal/logger"
	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/pkg/apperror"
)

// FavoriteRepository описывает хранилище избранного.
type FavoriteRepository interface {
	Add(ctx context.Context, customerID, providerID uuid.UUID) (*models.Favorite, error)
	Remove(ctx context.Context, customerID, providerID uuid.UUID) (int64, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Favorite, error)
	Exists(ctx context.Context, customerID, providerID uuid.UUID) (bool, error)
}

// FavoritePublisher публикует события изменения избранного.
type FavoritePublisher interface {
	Publish(event events.Event)
}

// FavoriteService содержит бизнес-логику работы с избранными исполнителями.
// После каждой мутации публикует событие на внутреннюю шину (для кэшей
// внутри процесса) и рассылает его по WebSocket подключениям пользователя.
type FavoriteService struct {
	repo FavoriteRepository
	bus  FavoritePublisher
	hub  Broadcaster
}

// NewFavoriteService создаёт сервис избранного.
func NewFavoriteService(repo FavoriteRepository, bus FavoritePublisher) *FavoriteService {
	return &FavoriteService{repo: repo, bus: bus}
}

// SetHub подключает push-рассылку изменений избранного.
func (s *FavoriteService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// AddFavorite добавляет исполнителя в избранное клиента.
func (s *FavoriteService) AddFavorite(ctx context.Context, customerID, providerID uuid.UUID) (*models.Favorite, error) {
	if customerID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if customerID == providerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя добавить самого себя в избранное")
	}

	fav, err := s.repo.Add(ctx, customerID, providerID)
	if err != nil {
		return nil, err
	}

	s.publish(customerID, events.FavoriteAdded, providerID)
	return fav, nil
}

// RemoveFavorite удаляет исполнителя из избранного клиента.
// Возвращает число удалённых записей: удаление отсутствующей связи не ошибка.
func (s *FavoriteService) RemoveFavorite(ctx context.Context, customerID, providerID uuid.UUID) (int64, error) {
	if customerID == uuid.Nil {
		return 0, apperror.ErrUnauthorized
	}

	n, err := s.repo.Remove(ctx, customerID, providerID)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.publish(customerID, events.FavoriteRemoved, providerID)
	}
	return n, nil
}

// ListFavorites возвращает все избранные записи клиента.
func (s *FavoriteService) ListFavorites(ctx context.Context, customerID uuid.UUID) ([]models.Favorite, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

// IsFavorite проверяет наличие исполнителя в избранном по базе.
func (s *FavoriteService) IsFavorite(ctx context.Context, customerID, providerID uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, customerID, providerID)
}

func (s *FavoriteService) publish(customerID uuid.UUID, name string, providerID uuid.UUID) {
	payload := map[string]interface{}{"provider_id": providerID}

	if s.bus != nil {
		s.bus.Publish(events.Event{
			UserID:  customerID,
			Name:    name,
			Payload: payload,
		})
	}

	if s.hub != nil {
		if err := s.hub.BroadcastToUser(customerID, name, payload); err != nil && logger.Log != nil {
			logger.Log.WithError(err).Warn("favorite service: не удалось отправить событие")
		}
	}
}
