package database

import (
	"crypto/x509"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"ip whitelist", errors.New("Could not connect to any servers in your MongoDB Atlas cluster. Make sure your current IP address is on your Atlas cluster's IP whitelist"), CategoryAccessControl},
		{"bad auth", errors.New("connection() error occurred during connection handshake: auth error: sasl conversation error: unable to authenticate using mechanism \"SCRAM-SHA-1\": (AtlasError) bad auth : Authentication failed."), CategoryAccessControl},
		{"postgres password", errors.New("FATAL: password authentication failed for user \"shop\""), CategoryAccessControl},
		{"tls handshake", errors.New("remote error: tls: handshake failure"), CategoryTransportSecurity},
		{"ssl keyword", errors.New("SSL routines:ssl3_read_bytes:tlsv1 alert internal error"), CategoryTransportSecurity},
		{"typed x509", fmt.Errorf("dial: %w", x509.UnknownAuthorityError{}), CategoryTransportSecurity},
		{"timeout", errors.New("server selection error: context deadline exceeded"), CategoryGeneric},
		{"nil", nil, CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diagnose(tt.err)
			assert.Equal(t, tt.want, d.Category)
			if tt.err != nil {
				assert.NotEmpty(t, d.Hints)
			}
		})
	}
}

func TestDiagnose_AccessControlWinsOverTransport(t *testing.T) {
	d := Diagnose(errors.New("TLS handshake ok, authentication failed"))
	assert.Equal(t, CategoryAccessControl, d.Category)
}
