package entity

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Роли пользователей
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User представляет учетную запись покупателя.
// Одна и та же структура хранится и в MongoDB (bson), и в PostgreSQL (gorm).
type User struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	ExternalID   *string   `gorm:"size:255;uniqueIndex" bson:"external_id,omitempty" json:"-"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" bson:"email" json:"email"`
	DisplayName  string    `gorm:"size:255;not null" bson:"display_name" json:"name"`
	AvatarURL    string    `gorm:"size:1024;not null" bson:"avatar_url" json:"avatar"`
	Verified     bool      `gorm:"not null" bson:"verified" json:"is_verified"`
	PasswordHash *string   `gorm:"size:100" bson:"password_hash,omitempty" json:"-"`
	Role         string    `gorm:"size:20;not null" bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// HasExternalID сообщает, привязан ли к записи внешний (OAuth) идентификатор
func (u *User) HasExternalID() bool {
	return u.ExternalID != nil && *u.ExternalID != ""
}

// HasPassword возвращает false для учетных записей, созданных только через OAuth
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// SetPassword хеширует пароль и сохраняет хеш
func (u *User) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	h := string(hashed)
	u.PasswordHash = &h
	return nil
}

// CheckPassword проверяет пароль. Для OAuth-only записей всегда false.
func (u *User) CheckPassword(password string) bool {
	if !u.HasPassword() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)) == nil
}

// NormalizeEmail приводит email к каноничному виду (trim + lower)
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
