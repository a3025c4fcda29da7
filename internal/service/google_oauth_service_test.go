package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
)

type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) AuthCodeURL(state string) string {
	return m.Called(state).String(0)
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*entity.OAuthProfile, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.OAuthProfile), args.Error(1)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) GenerateToken(user *entity.User) (string, time.Time, error) {
	args := m.Called(user)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func newGoogleService(t *testing.T, provider OAuthProvider, repo *memoryUserRepo, issuer TokenIssuer) *GoogleOAuthService {
	t.Helper()
	svc, err := NewGoogleOAuthService(provider, newResolver(t, repo), issuer, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestGoogleOAuth_Complete(t *testing.T) {
	provider := new(MockOAuthProvider)
	issuer := new(MockTokenIssuer)
	profile := googleProfile()
	expires := time.Now().Add(time.Hour)

	provider.On("ExchangeCode", mock.Anything, "auth-code").Return(&profile, nil).Once()
	issuer.On("GenerateToken", mock.AnythingOfType("*entity.User")).Return("signed.jwt", expires, nil).Once()

	svc := newGoogleService(t, provider, newMemoryUserRepo(), issuer)
	res, err := svc.Complete(context.Background(), "auth-code")

	require.NoError(t, err)
	assert.Equal(t, "signed.jwt", res.Token)
	assert.Equal(t, expires, res.ExpiresAt)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "ann@example.com", res.User.Email)
	provider.AssertExpectations(t)
	issuer.AssertExpectations(t)
}

func TestGoogleOAuth_ExchangeFailure(t *testing.T) {
	provider := new(MockOAuthProvider)
	issuer := new(MockTokenIssuer)
	provider.On("ExchangeCode", mock.Anything, "bad").Return(nil, errors.New("invalid_grant")).Once()

	svc := newGoogleService(t, provider, newMemoryUserRepo(), issuer)
	_, err := svc.Complete(context.Background(), "bad")

	assert.ErrorIs(t, err, ErrGoogleAuthFailed)
	issuer.AssertNotCalled(t, "GenerateToken", mock.Anything)
}

func TestGoogleOAuth_ResolutionFailureKeepsCause(t *testing.T) {
	provider := new(MockOAuthProvider)
	profile := entity.OAuthProfile{ExternalID: "google-123"}
	provider.On("ExchangeCode", mock.Anything, "code").Return(&profile, nil).Once()

	svc := newGoogleService(t, provider, newMemoryUserRepo(), new(MockTokenIssuer))
	_, err := svc.Complete(context.Background(), "code")

	assert.ErrorIs(t, err, ErrGoogleAuthFailed)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestGoogleOAuth_EmptyCode(t *testing.T) {
	provider := new(MockOAuthProvider)
	svc := newGoogleService(t, provider, newMemoryUserRepo(), new(MockTokenIssuer))

	_, err := svc.Complete(context.Background(), " ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	provider.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything)
}

func TestGoogleOAuth_Disabled(t *testing.T) {
	svc := newGoogleService(t, nil, newMemoryUserRepo(), new(MockTokenIssuer))

	assert.False(t, svc.Enabled())
	_, _, err := svc.Begin()
	assert.ErrorIs(t, err, ErrFeatureDisabled)
	_, err = svc.Complete(context.Background(), "code")
	assert.ErrorIs(t, err, ErrFeatureDisabled)
}

func TestGoogleOAuth_Begin(t *testing.T) {
	provider := new(MockOAuthProvider)
	provider.On("AuthCodeURL", mock.AnythingOfType("string")).Return("https://accounts.google.com/o/oauth2/auth?state=x").Once()

	svc := newGoogleService(t, provider, newMemoryUserRepo(), new(MockTokenIssuer))
	state, url, err := svc.Begin()

	require.NoError(t, err)
	assert.Len(t, state, 43)
	assert.Contains(t, url, "accounts.google.com")
	provider.AssertExpectations(t)
}
