package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/fooforms/fooforms/backend/go-services/internal/config"
	"github.com/fooforms/fooforms/backend/go-services/pkg/logger"
	"github.com/fooforms/fooforms/backend/go-services/pkg/middleware"
)

// Verifier checks ID tokens against an OIDC provider discovered from the issuer.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier creates a new OIDC verifier for the given issuer and client ID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// FromConfig picks the verifier guarding form writes. It returns nil when
// neither an issuer nor the insecure mode is configured, which leaves the
// write routes open.
func FromConfig(ctx context.Context, cfg config.AuthConfig) (middleware.Verifier, error) {
	if cfg.Issuer != "" {
		v, err := NewVerifier(ctx, cfg.Issuer, cfg.ClientID)
		if err != nil {
			if !cfg.AllowInsecure {
				return nil, err
			}
			logger.Warnf("OIDC discovery failed (%v); falling back to insecure verifier", err)
		} else {
			return v, nil
		}
	}
	if cfg.AllowInsecure {
		logger.Warnf("enabling insecure token verifier (integration mode)")
		return NewInsecureVerifier(), nil
	}
	return nil, nil
}
