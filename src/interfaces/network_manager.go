package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager performs outbound HTTP requests for the price sources.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// Get performs a GET request with query params and headers. ctx bounds
	// the whole call including retries.
	Get(ctx context.Context, url string, params map[string]string, headers map[string]string) ([]byte, error)
}
