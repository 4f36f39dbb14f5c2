package interfaces

import "context"

// -----------------------------------------------------------------------------
// ICredentialVerifier resolves a connection credential to a user id. Token
// issuance lives outside this core; the registry only verifies.
// -----------------------------------------------------------------------------

type ICredentialVerifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}
