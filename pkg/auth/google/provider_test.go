package google

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), "", "secret", "http://localhost/cb")
	assert.Error(t, err)
}

func TestProvider_AuthCodeURL(t *testing.T) {
	p := newProvider(&oauth2.Config{
		ClientID:    "client",
		RedirectURL: "http://localhost:5000/api/auth/google/callback",
		Endpoint:    oauth2.Endpoint{AuthURL: "https://accounts.google.com/o/oauth2/v2/auth"},
		Scopes:      []string{"openid", "profile", "email"},
	}, nil)

	raw := p.AuthCodeURL("state-123")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
}

func TestProfileFromClaims(t *testing.T) {
	p, err := profileFromClaims(idTokenClaims{
		Subject:       "1234567890",
		Email:         "Ann@Example.com",
		EmailVerified: true,
		Name:          "Ann Lee",
	})
	require.NoError(t, err)
	assert.Equal(t, "1234567890", p.ExternalID)
	assert.Equal(t, "ann@example.com", p.Email)
	assert.Equal(t, "Ann Lee", p.DisplayName)
	assert.Equal(t, "", p.AvatarURL, "нет фото у провайдера, пустая строка")
	assert.True(t, p.EmailVerified)

	_, err = profileFromClaims(idTokenClaims{Email: "ann@example.com"})
	assert.Error(t, err)
	_, err = profileFromClaims(idTokenClaims{Subject: "1"})
	assert.Error(t, err)
}
