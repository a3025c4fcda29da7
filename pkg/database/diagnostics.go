package database

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"strings"
)

// ErrorCategory классифицирует ошибку подключения для подсказок в логах
type ErrorCategory string

const (
	CategoryAccessControl     ErrorCategory = "access_control"
	CategoryTransportSecurity ErrorCategory = "transport_security"
	CategoryGeneric           ErrorCategory = "generic"
)

// Diagnosis содержит категорию ошибки и подсказки оператору
type Diagnosis struct {
	Category ErrorCategory
	Hints    []string
}

var accessControlMarkers = []string{
	"ip whitelist",
	"whitelist",
	"authentication",
	"auth failed",
	"not authorized",
	"password authentication failed",
	"no pg_hba.conf entry",
}

var transportMarkers = []string{
	"ssl",
	"tls",
	"x509",
	"certificate",
}

// Diagnose определяет категорию ошибки подключения.
// Ошибки доступа проверяются раньше транспортных.
func Diagnose(err error) Diagnosis {
	if err == nil {
		return Diagnosis{Category: CategoryGeneric}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range accessControlMarkers {
		if strings.Contains(msg, marker) {
			return Diagnosis{
				Category: CategoryAccessControl,
				Hints: []string{
					"check that this server's IP address is on the database access list",
					"check the database username and password in the connection string",
				},
			}
		}
	}

	if isTransportError(err, msg) {
		return Diagnosis{
			Category: CategoryTransportSecurity,
			Hints: []string{
				"check that the database endpoint accepts TLS connections",
				"check the CA bundle and that the server certificate matches the host name",
			},
		}
	}

	return Diagnosis{
		Category: CategoryGeneric,
		Hints:    []string{"check network connectivity and the connection string"},
	}
}

func isTransportError(err error, msg string) bool {
	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return true
	}
	for _, marker := range transportMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
