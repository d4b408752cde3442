package nineman

import "time"

type Config struct {
	// GraphQLEndpoint is the URL of the Chain-N node's GraphQL endpoint.
	GraphQLEndpoint string

	// AuthToken, when set, is sent as a bearer token on every request.
	AuthToken string

	// Timeout bounds each RPC. Zero means DefaultRPCTimeout.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first failed
	// attempt. Zero means DefaultMaxRetries.
	MaxRetries uint64
}
