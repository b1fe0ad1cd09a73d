package models

// BookingStatus константы статусов бронирований
const (
	BookingStatusPending    = "pending"
	BookingStatusAccepted   = "accepted"
	BookingStatusInProgress = "in_progress"
	BookingStatusCompleted  = "completed"
	BookingStatusCancelled  = "cancelled"
)

// UserRole константы ролей пользователей
const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
)

// NoticeSeverity уровни важности пользовательских уведомлений
const (
	NoticeSeveritySuccess = "success"
	NoticeSeverityError   = "error"
	NoticeSeverityInfo    = "info"
)

// ValidBookingStatuses список валидных статусов бронирований
var ValidBookingStatuses = map[string]struct{}{
	BookingStatusPending:    {},
	BookingStatusAccepted:   {},
	BookingStatusInProgress: {},
	BookingStatusCompleted:  {},
	BookingStatusCancelled:  {},
}

// ValidRoles список ролей, доступных при регистрации
var ValidRoles = map[string]struct{}{
	RoleCustomer: {},
	RoleProvider: {},
}

// bookingTransitions описывает, из каких статусов разрешён переход в целевой.
// Жизненный цикл линейный: pending -> accepted -> in_progress -> completed,
// cancelled доступен из любого нетерминального статуса.
var bookingTransitions = map[string][]string{
	BookingStatusAccepted:   {BookingStatusPending},
	BookingStatusInProgress: {BookingStatusAccepted},
	BookingStatusCompleted:  {BookingStatusInProgress},
	BookingStatusCancelled:  {BookingStatusPending, BookingStatusAccepted, BookingStatusInProgress},
}

// CanTransitionBooking проверяет, допустим ли переход статуса from -> to.
func CanTransitionBooking(from, to string) bool {
	allowed, ok := bookingTransitions[to]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// IsTerminalBookingStatus сообщает, что статус финальный и переходов из него больше нет.
func IsTerminalBookingStatus(status string) bool {
	return status == BookingStatusCompleted || status == BookingStatusCancelled
}
