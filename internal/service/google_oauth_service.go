package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
)

// OAuthProvider абстрагирует провайдера (Google) для тестов
type OAuthProvider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*entity.OAuthProfile, error)
}

// TokenIssuer выпускает access-токены для учетной записи
type TokenIssuer interface {
	GenerateToken(user *entity.User) (string, time.Time, error)
}

// GoogleAuthResult итог успешного входа через Google
type GoogleAuthResult struct {
	User      *entity.User
	Token     string
	ExpiresAt time.Time
	Outcome   Outcome
}

// GoogleOAuthService связывает обмен кода, разрешение учетной записи и выпуск токена.
// Нулевой provider означает, что вход через Google не настроен.
type GoogleOAuthService struct {
	provider OAuthProvider
	resolver *AccountResolver
	issuer   TokenIssuer
	logger   *zap.Logger
}

// NewGoogleOAuthService создает сервис. provider может быть nil: тогда все методы возвращают ErrFeatureDisabled.
func NewGoogleOAuthService(provider OAuthProvider, resolver *AccountResolver, issuer TokenIssuer, logger *zap.Logger) (*GoogleOAuthService, error) {
	if resolver == nil {
		return nil, fmt.Errorf("account resolver is required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleOAuthService{
		provider: provider,
		resolver: resolver,
		issuer:   issuer,
		logger:   logger.Named("google_oauth"),
	}, nil
}

// Enabled сообщает, настроен ли провайдер
func (s *GoogleOAuthService) Enabled() bool {
	return s.provider != nil
}

// Begin генерирует state и URL авторизации
func (s *GoogleOAuthService) Begin() (state string, authURL string, err error) {
	if !s.Enabled() {
		return "", "", ErrFeatureDisabled
	}
	state, err = generateState()
	if err != nil {
		return "", "", err
	}
	return state, s.provider.AuthCodeURL(state), nil
}

// Complete меняет код на профиль, разрешает учетную запись и выпускает токен
func (s *GoogleOAuthService) Complete(ctx context.Context, code string) (*GoogleAuthResult, error) {
	if !s.Enabled() {
		return nil, ErrFeatureDisabled
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: %w: authorization code is required", ErrGoogleAuthFailed, apperrors.ErrValidation)
	}

	profile, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGoogleAuthFailed, err)
	}

	res, err := s.resolver.Resolve(ctx, *profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGoogleAuthFailed, err)
	}

	token, expiresAt, err := s.issuer.GenerateToken(res.User)
	if err != nil {
		return nil, fmt.Errorf("%w: issue token: %v", ErrGoogleAuthFailed, err)
	}

	return &GoogleAuthResult{
		User:      res.User,
		Token:     token,
		ExpiresAt: expiresAt,
		Outcome:   res.Outcome,
	}, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
