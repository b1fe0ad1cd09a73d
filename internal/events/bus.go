package events

import (
	"sync"

	"github.com/google/uuid"
)

// Имена событий изменения избранного.
const (
	FavoriteAdded   = "favorite.added"
	FavoriteRemoved = "favorite.removed"
)

// Event описывает одно изменение данных пользователя.
type Event struct {
	UserID  uuid.UUID   `json:"user_id"`
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// Bus это внутрипроцессная шина изменений, отфильтрованная по пользователю.
// Подписчик получает события только своего пользователя; медленный подписчик
// события теряет (буфер фиксированный, отправка неблокирующая).
type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan Event]struct{}
}

// NewBus создаёт новую шину.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[uuid.UUID]map[chan Event]struct{}),
	}
}

// Subscribe открывает подписку на события пользователя.
// Возвращает канал и функцию отписки; отписка закрывает канал.
func (b *Bus) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	if _, ok := b.subs[userID]; !ok {
		b.subs[userID] = make(map[chan Event]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subs[userID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, userID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Publish рассылает событие всем подписчикам пользователя.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[event.UserID] {
		select {
		case ch <- event:
		default:
			// Переполненный подписчик пропускает событие.
		}
	}
}
