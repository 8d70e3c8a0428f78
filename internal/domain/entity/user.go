package entity

import "github.com/google/uuid"

// UserState состояние оператора в диалоге
type UserState string

const (
	StateMainMenu             UserState = "main_menu"             // В главном меню
	StateAwaitingPhoto        UserState = "awaiting_photo"        // Ожидание фото платы
	StateProcessing           UserState = "processing"            // Обработка изображения
	StateAwaitingConfirmation UserState = "awaiting_confirmation" // Ожидание подтверждения записи в БД
)

// User представляет оператора, работающего через бота
type User struct {
	ID            int64     // Telegram User ID
	ChatID        int64     // Telegram Chat ID
	State         UserState // Текущее состояние
	PendingReview uuid.UUID // Проверка, ожидающая подтверждения
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
	if state != StateAwaitingConfirmation {
		u.PendingReview = uuid.Nil
	}
}

// AwaitConfirmation запоминает проверку и ждёт решения оператора.
func (u *User) AwaitConfirmation(reviewID uuid.UUID) {
	u.State = StateAwaitingConfirmation
	u.PendingReview = reviewID
}
