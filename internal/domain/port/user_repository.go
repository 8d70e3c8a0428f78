package port

import (
	"context"

	"pcb-inspector/internal/domain/entity"
)

// UserRepository интерфейс хранилища операторов бота
type UserRepository interface {
	// Get возвращает пользователя по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет состояние пользователя вместе с ожидающей проверкой
	Save(ctx context.Context, user *entity.User) error
}
