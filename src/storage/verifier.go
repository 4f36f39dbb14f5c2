package storage

import (
	"context"

	"coinvest/src/interfaces"
)

// -----------------------------------------------------------------------------

// TokenVerifier resolves connection credentials against the auth_tokens
// table. Token issuance happens elsewhere (login flow); the real-time layer
// only verifies.
type TokenVerifier struct {
	DB interfaces.IDatabase
}

func NewTokenVerifier(db interfaces.IDatabase) *TokenVerifier {
	return &TokenVerifier{DB: db}
}

// -----------------------------------------------------------------------------

func (v *TokenVerifier) Verify(ctx context.Context, credential string) (string, error) {
	return v.DB.UserIDForToken(ctx, credential)
}
