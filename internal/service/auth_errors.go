package service

import "errors"

// Auth flow specific errors used by handlers for stable error_type mapping.
var (
	ErrFeatureDisabled  = errors.New("feature_disabled")
	ErrGoogleAuthFailed = errors.New("google_auth_failed")
	ErrResolutionFailed = errors.New("account_resolution_failed")
	// ErrIdentityConflict: email уже принадлежит записи с другим внешним идентификатором
	ErrIdentityConflict = errors.New("identity_conflict")
)
