package dto

import (
	"time"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
)

// UserResponse публичное представление учетной записи
type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar,omitempty"`
	IsVerified bool      `json:"is_verified"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewUserResponse убирает из ответа externalId и хеш пароля
func NewUserResponse(user *entity.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.DisplayName,
		Avatar:     user.AvatarURL,
		IsVerified: user.Verified,
		Role:       user.Role,
		CreatedAt:  user.CreatedAt,
	}
}

// AuthTokenResponse ответ callback'а, когда фронтенд не настроен
type AuthTokenResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}
