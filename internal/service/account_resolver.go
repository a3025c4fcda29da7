package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
	"github.com/yourusername/ecommerce-api/internal/domain/repository"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
	"github.com/yourusername/ecommerce-api/pkg/metrics"
)

// maxResolveAttempts ограничивает повторное разрешение после конфликта уникальности
const maxResolveAttempts = 3

// Outcome показывает, каким путем получена учетная запись
type Outcome string

const (
	OutcomeExisting Outcome = "existing"
	OutcomeLinked   Outcome = "linked"
	OutcomeCreated  Outcome = "created"
)

// Resolution результат разрешения учетной записи
type Resolution struct {
	User    *entity.User
	Outcome Outcome
}

// AccountResolver сопоставляет OAuth-профиль с локальной учетной записью:
// поиск по externalId, затем по email с привязкой, иначе создание новой записи.
type AccountResolver struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
}

// NewAccountResolver создает AccountResolver
func NewAccountResolver(userRepo repository.UserRepository, logger *zap.Logger) (*AccountResolver, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountResolver{userRepo: userRepo, logger: logger.Named("account_resolver")}, nil
}

// Resolve возвращает учетную запись для профиля. За один вызов выполняется не более одной записи в хранилище;
// если конкурентный запрос успел создать или привязать запись, разрешение повторяется с начала.
//
// Привязка по email выполняется только к записи без externalId и только если провайдер подтвердил email.
// Запись, уже привязанная к другому externalId, не перепривязывается: возвращается ErrIdentityConflict.
func (r *AccountResolver) Resolve(ctx context.Context, profile entity.OAuthProfile) (*Resolution, error) {
	profile = profile.Normalized()
	if profile.ExternalID == "" {
		return nil, fmt.Errorf("%w: external id is required", apperrors.ErrValidation)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}

	var lastErr error
	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		res, err := r.resolveOnce(ctx, profile)
		if err == nil {
			metrics.RecordOAuthResolution(string(res.Outcome))
			r.logger.Info("OAuth account resolved",
				zap.String("outcome", string(res.Outcome)),
				zap.String("user_id", res.User.ID),
				zap.Int("attempt", attempt),
			)
			return res, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		lastErr = err
		r.logger.Warn("OAuth account resolution raced, retrying",
			zap.String("external_id", profile.ExternalID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, lastErr)
}

func (r *AccountResolver) resolveOnce(ctx context.Context, profile entity.OAuthProfile) (*Resolution, error) {
	user, err := r.userRepo.GetByExternalID(ctx, profile.ExternalID)
	if err == nil {
		return &Resolution{User: user, Outcome: OutcomeExisting}, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: lookup by external id: %v", ErrResolutionFailed, err)
	}

	existing, err := r.userRepo.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if existing.HasExternalID() {
			// externalId никогда не переназначается
			return nil, fmt.Errorf("%w: email %s is linked to another account", ErrIdentityConflict, profile.Email)
		}
		if !profile.EmailVerified {
			return nil, fmt.Errorf("%w: email %s is not verified by the provider", ErrIdentityConflict, profile.Email)
		}
		linked, err := r.userRepo.LinkExternalID(ctx, existing.ID, profile.ExternalID)
		if err != nil {
			return nil, wrapWriteErr("link external id", err)
		}
		return &Resolution{User: linked, Outcome: OutcomeLinked}, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("%w: lookup by email: %v", ErrResolutionFailed, err)
	}

	externalID := profile.ExternalID
	user = &entity.User{
		ExternalID:  &externalID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		Verified:    true,
		Role:        entity.RoleUser,
	}
	if err := r.userRepo.Create(ctx, user); err != nil {
		return nil, wrapWriteErr("create user", err)
	}
	return &Resolution{User: user, Outcome: OutcomeCreated}, nil
}

// wrapWriteErr сохраняет ErrConflict, чтобы Resolve мог повторить попытку
func wrapWriteErr(op string, err error) error {
	if errors.Is(err, apperrors.ErrConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrResolutionFailed, op, err)
}
