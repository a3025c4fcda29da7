package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
)

const uniqueViolation = "23505"

// DBProvider отдает *gorm.DB, когда соединение установлено
type DBProvider interface {
	DB() (*gorm.DB, error)
}

// UserRepo реализует repository.UserRepository
type UserRepo struct {
	provider DBProvider
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(provider DBProvider) *UserRepo {
	return &UserRepo{provider: provider}
}

func (r *UserRepo) db(ctx context.Context) (*gorm.DB, error) {
	db, err := r.provider.DB()
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// Create создает нового пользователя
func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if err := db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
		}
		return err
	}
	return nil
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail возвращает пользователя по email
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.first(ctx, "email = ?", entity.NormalizeEmail(email))
}

// GetByExternalID возвращает пользователя по внешнему идентификатору
func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (*entity.User, error) {
	return r.first(ctx, "external_id = ?", externalID)
}

// LinkExternalID привязывает externalID только к записи, у которой его еще нет
func (r *UserRepo) LinkExternalID(ctx context.Context, userID, externalID string) (*entity.User, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	result := db.Model(&entity.User{}).
		Where("id = ? AND external_id IS NULL", userID).
		Updates(map[string]interface{}{
			"external_id": externalID,
			"verified":    true,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrConflict, result.Error)
		}
		return nil, result.Error
	}

	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: user %s already has an external id", apperrors.ErrConflict, userID)
	}
	return user, nil
}

func (r *UserRepo) first(ctx context.Context, query string, arg interface{}) (*entity.User, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var user entity.User
	if err := db.Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
