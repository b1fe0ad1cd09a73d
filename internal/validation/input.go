package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength     = 3
	MaxUsernameLength     = 30
	MinDisplayNameLength  = 2
	MaxDisplayNameLength  = 100
	MinServiceTitleLength = 3
	MaxServiceTitleLength = 200
	MaxNotesLength        = 2000
	MaxReasonLength       = 1000
	MaxBioLength          = 1000
	MaxLocationLength     = 100
	MinHourlyRate         = 0.0
	MaxHourlyRate         = 100000.0
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	emailRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !emailRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	usernameRegex := regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	if len(username) > 0 && unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateDisplayName проверяет отображаемое имя.
func ValidateDisplayName(displayName string) error {
	if displayName == "" {
		return fmt.Errorf("отображаемое имя обязательно")
	}

	return ValidateLength("отображаемое имя", strings.TrimSpace(displayName), MinDisplayNameLength, MaxDisplayNameLength)
}

// ValidateServiceTitle проверяет название услуги в заявке.
func ValidateServiceTitle(title string) error {
	if err := ValidateNonEmpty("название услуги", title); err != nil {
		return err
	}
	return ValidateLength("название услуги", strings.TrimSpace(title), MinServiceTitleLength, MaxServiceTitleLength)
}

// ValidateNotes проверяет комментарий исполнителя к переходу статуса.
func ValidateNotes(notes string) error {
	return ValidateLength("комментарий", notes, 0, MaxNotesLength)
}

// ValidateCancellationReason проверяет причину отмены.
func ValidateCancellationReason(reason string) error {
	return ValidateLength("причина отмены", reason, 0, MaxReasonLength)
}

// ValidateHourlyRate проверяет ставку исполнителя.
func ValidateHourlyRate(rate float64) error {
	if rate < MinHourlyRate || rate > MaxHourlyRate {
		return fmt.Errorf("ставка должна быть от %.0f до %.0f", MinHourlyRate, MaxHourlyRate)
	}
	return nil
}
