package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
)

const usersCollection = "users"

// DatabaseProvider отдает базу данных, когда соединение установлено
type DatabaseProvider interface {
	Database() (*mongo.Database, error)
}

// UserRepo реализует repository.UserRepository поверх MongoDB
type UserRepo struct {
	provider DatabaseProvider
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(provider DatabaseProvider) *UserRepo {
	return &UserRepo{provider: provider}
}

func (r *UserRepo) collection() (*mongo.Collection, error) {
	db, err := r.provider.Database()
	if err != nil {
		return nil, err
	}
	return db.Collection(usersCollection), nil
}

// EnsureUserIndexes создает уникальные индексы по email и external_id.
// Индекс по external_id частичный: записи без привязки в него не попадают.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_email").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "external_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_external_id").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "external_id", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// Create создает нового пользователя. Нарушение уникальности возвращается как ErrConflict.
func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	coll, err := r.collection()
	if err != nil {
		return err
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
		}
		return err
	}
	return nil
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

// GetByEmail возвращает пользователя по email
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: entity.NormalizeEmail(email)}})
}

// GetByExternalID возвращает пользователя по внешнему идентификатору
func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (*entity.User, error) {
	return r.findOne(ctx, bson.D{{Key: "external_id", Value: externalID}})
}

// LinkExternalID условно привязывает externalID: обновление применяется только к записи без external_id
func (r *UserRepo) LinkExternalID(ctx context.Context, userID, externalID string) (*entity.User, error) {
	coll, err := r.collection()
	if err != nil {
		return nil, err
	}

	filter := bson.D{
		{Key: "_id", Value: userID},
		{Key: "external_id", Value: bson.D{{Key: "$exists", Value: false}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "external_id", Value: externalID},
		{Key: "verified", Value: true},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	var user entity.User
	err = coll.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&user)
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		// Либо записи нет, либо привязка уже выполнена конкурентным запросом
		if _, getErr := r.GetByID(ctx, userID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: user %s already has an external id", apperrors.ErrConflict, userID)
	case mongo.IsDuplicateKeyError(err):
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	default:
		return nil, err
	}
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.D) (*entity.User, error) {
	coll, err := r.collection()
	if err != nil {
		return nil, err
	}

	var user entity.User
	if err := coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
