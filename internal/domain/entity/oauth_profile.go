package entity

import "strings"

// OAuthProfile содержит утверждения провайдера о пользователе после успешного обмена кода
type OAuthProfile struct {
	ExternalID    string
	DisplayName   string
	Email         string
	AvatarURL     string
	EmailVerified bool
}

// Normalized возвращает копию профиля с обрезанными пробелами и email в нижнем регистре
func (p OAuthProfile) Normalized() OAuthProfile {
	return OAuthProfile{
		ExternalID:    strings.TrimSpace(p.ExternalID),
		DisplayName:   strings.TrimSpace(p.DisplayName),
		Email:         NormalizeEmail(p.Email),
		AvatarURL:     strings.TrimSpace(p.AvatarURL),
		EmailVerified: p.EmailVerified,
	}
}
