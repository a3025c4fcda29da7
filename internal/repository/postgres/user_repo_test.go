package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
)

type staticDB struct {
	db *gorm.DB
}

func (s staticDB) DB() (*gorm.DB, error) {
	if s.db == nil {
		return nil, apperrors.ErrNotConnected
	}
	return s.db, nil
}

func newMockRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewUserRepo(staticDB{db: db}), mock
}

var userColumns = []string{"id", "external_id", "email", "display_name", "avatar_url", "verified", "password_hash", "role", "created_at", "updated_at"}

func TestUserRepo_Create(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "users"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user := &entity.User{Email: "ann@example.com", DisplayName: "Ann", Verified: true, Role: entity.RoleUser}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.Len(t, user.ID, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_UniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "users"`).WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &entity.User{Email: "ann@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = `).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", nil, "ann@example.com", "Ann", "", false, nil, "user", now, now))

	user, err := repo.GetByEmail(context.Background(), " Ann@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Nil(t, user.ExternalID)
	assert.Nil(t, user.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByExternalID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE external_id = `).
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.GetByExternalID(context.Background(), "sub-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_LinkExternalID(t *testing.T) {
	now := time.Now()

	t.Run("links unlinked record", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = `).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow("u1", "sub-1", "ann@example.com", "Ann", "", true, nil, "user", now, now))

		user, err := repo.LinkExternalID(context.Background(), "u1", "sub-1")
		require.NoError(t, err)
		require.NotNil(t, user.ExternalID)
		assert.Equal(t, "sub-1", *user.ExternalID)
		assert.True(t, user.Verified)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already linked is conflict", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = `).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow("u1", "sub-other", "ann@example.com", "Ann", "", true, nil, "user", now, now))

		_, err := repo.LinkExternalID(context.Background(), "u1", "sub-1")
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = `).
			WillReturnRows(sqlmock.NewRows(userColumns))

		_, err := repo.LinkExternalID(context.Background(), "missing", "sub-1")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestUserRepo_NotConnected(t *testing.T) {
	repo := NewUserRepo(staticDB{})
	_, err := repo.GetByID(context.Background(), "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
}
