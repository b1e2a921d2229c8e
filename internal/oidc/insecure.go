package oidc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fooforms/fooforms/backend/go-services/pkg/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// claimsToken exposes claims parsed from an unverified JWT.
type claimsToken struct {
	claims jwt.MapClaims
}

func (t *claimsToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// InsecureVerifier accepts any well-formed JWT without checking its
// signature. Only for local and integration runs (ALLOW_INSECURE_TOKEN=true).
type InsecureVerifier struct {
	parser *jwt.Parser
}

func NewInsecureVerifier() *InsecureVerifier {
	return &InsecureVerifier{parser: jwt.NewParser()}
}

func (v *InsecureVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	if _, _, err := v.parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return &claimsToken{claims: claims}, nil
}
