package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
)

const issuerURL = "https://accounts.google.com"

// Provider выполняет authorization code flow Google и проверяет id_token
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

// New получает discovery-документ Google и настраивает клиента
func New(ctx context.Context, clientID, clientSecret, redirectURL string) (*Provider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	oidcProvider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	return newProvider(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}, oidcProvider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func newProvider(cfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *Provider {
	return &Provider{oauthConfig: cfg, verifier: verifier}
}

// AuthCodeURL строит URL авторизации Google
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// idTokenClaims поля id_token, которые нужны для профиля
type idTokenClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ExchangeCode меняет код авторизации на токены и возвращает проверенный профиль
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*entity.OAuthProfile, error) {
	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("google did not return id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("google id_token verification failed: %w", err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google id_token claims parse failed: %w", err)
	}
	return profileFromClaims(claims)
}

func profileFromClaims(claims idTokenClaims) (*entity.OAuthProfile, error) {
	if claims.Subject == "" || claims.Email == "" {
		return nil, errors.New("google id_token missing required claims")
	}
	profile := entity.OAuthProfile{
		ExternalID:    claims.Subject,
		DisplayName:   claims.Name,
		Email:         claims.Email,
		AvatarURL:     claims.Picture,
		EmailVerified: claims.EmailVerified,
	}.Normalized()
	return &profile, nil
}
