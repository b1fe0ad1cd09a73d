package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/dkovalev/uslugi-backend/internal/events"
	"github.com/dkovalev/uslugi-backend/internal/goroutine"
	"github.com/dkovalev/uslugi-backend/internal/logger"
	"github.com/dkovalev/uslugi-backend/internal/models"
	"github.com/dkovalev/uslugi-backend/internal/pkg/apperror"
	"github.com/dkovalev/uslugi-backend/internal/repository"
)

// FavoriteFeed открывает подписку на события изменения избранного пользователя.
type FavoriteFeed interface {
	Subscribe(userID uuid.UUID) (<-chan events.Event, func())
}

// FavoritesManager держит в памяти список избранных исполнителей текущего
// пользователя и сверяет его с базой. Любое событие с шины приводит к полной
// перечитке списка, без инкрементальных слияний.
//
// Привязан к одной пользовательской сессии: смена пользователя через SetUser
// сбрасывает состояние и пересоздаёт подписку.
type FavoritesManager struct {
	svc  *FavoriteService
	feed FavoriteFeed

	mu        sync.RWMutex
	userID    uuid.UUID
	favorites []models.Favorite
	cancelSub func()
}

// NewFavoritesManager создаёт менеджер без привязанного пользователя.
func NewFavoritesManager(svc *FavoriteService, feed FavoriteFeed) *FavoritesManager {
	return &FavoritesManager{svc: svc, feed: feed}
}

// SetUser переключает менеджер на другого пользователя: сносит старую
// подписку, перечитывает список и подписывается на события нового
// пользователя. uuid.Nil означает «пользователь вышел».
func (m *FavoritesManager) SetUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	if m.cancelSub != nil {
		m.cancelSub()
		m.cancelSub = nil
	}
	m.userID = userID
	m.favorites = nil
	m.mu.Unlock()

	if userID == uuid.Nil {
		return nil
	}

	if err := m.Load(ctx); err != nil {
		return err
	}

	if m.feed == nil {
		return nil
	}

	ch, cancel := m.feed.Subscribe(userID)
	m.mu.Lock()
	m.cancelSub = cancel
	m.mu.Unlock()

	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		for range ch {
			if err := m.Load(ctx); err != nil && logger.Log != nil {
				logger.Log.WithError(err).Warn("favorites: не удалось перечитать список после события")
			}
		}
	})

	return nil
}

// Load перечитывает список избранного из базы.
// Без пользователя состояние просто очищается. При ошибке чтения прежнее
// состояние сохраняется, а ошибка возвращается вызывающему.
func (m *FavoritesManager) Load(ctx context.Context) error {
	m.mu.RLock()
	userID := m.userID
	m.mu.RUnlock()

	if userID == uuid.Nil {
		m.mu.Lock()
		m.favorites = nil
		m.mu.Unlock()
		return nil
	}

	favorites, err := m.svc.ListFavorites(ctx, userID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	// Пользователь мог смениться, пока шёл запрос.
	if m.userID == userID {
		m.favorites = favorites
	}
	m.mu.Unlock()

	return nil
}

// Add добавляет исполнителя в избранное.
// Дубликат определяется по локальному состоянию до обращения к базе.
func (m *FavoritesManager) Add(ctx context.Context, providerID uuid.UUID) (*models.Favorite, error) {
	m.mu.RLock()
	userID := m.userID
	m.mu.RUnlock()

	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if m.IsFavorite(providerID) {
		return nil, apperror.ErrAlreadyFavorite
	}

	fav, err := m.svc.AddFavorite(ctx, userID, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrFavoriteExists) {
			return nil, apperror.ErrAlreadyFavorite
		}
		return nil, err
	}

	m.mu.Lock()
	if m.userID == userID {
		m.favorites = append(m.favorites, *fav)
	}
	m.mu.Unlock()

	return fav, nil
}

// Remove удаляет исполнителя из избранного: сперва в базе по паре
// (пользователь, исполнитель), затем все совпадающие локальные записи.
func (m *FavoritesManager) Remove(ctx context.Context, providerID uuid.UUID) error {
	m.mu.RLock()
	userID := m.userID
	m.mu.RUnlock()

	if userID == uuid.Nil {
		return apperror.ErrUnauthorized
	}

	if _, err := m.svc.RemoveFavorite(ctx, userID, providerID); err != nil {
		return err
	}

	m.mu.Lock()
	if m.userID == userID {
		kept := m.favorites[:0]
		for _, f := range m.favorites {
			if f.ProviderID != providerID {
				kept = append(kept, f)
			}
		}
		m.favorites = kept
	}
	m.mu.Unlock()

	return nil
}

// IsFavorite проверяет принадлежность по локальному состоянию, без запросов.
func (m *FavoritesManager) IsFavorite(providerID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, f := range m.favorites {
		if f.ProviderID == providerID {
			return true
		}
	}
	return false
}

// Favorites возвращает копию текущего списка.
func (m *FavoritesManager) Favorites() []models.Favorite {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Favorite, len(m.favorites))
	copy(out, m.favorites)
	return out
}

// Close сносит подписку и локальное состояние.
func (m *FavoritesManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelSub != nil {
		m.cancelSub()
		m.cancelSub = nil
	}
	m.userID = uuid.Nil
	m.favorites = nil
}
