package repository

import (
	"context"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с учетными записями пользователей.
// Реализации гарантируют уникальность email и external_id на уровне хранилища:
// нарушение уникальности возвращается как apperrors.ErrConflict.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*entity.User, error)
	// LinkExternalID привязывает externalID и выставляет verified только если у записи
	// еще нет external_id. Если условие не выполнено, возвращает apperrors.ErrConflict.
	LinkExternalID(ctx context.Context, userID, externalID string) (*entity.User, error)
}
