package config

import "context"

// SecretProvider resolves secret values by key: SSM parameter paths in
// deployed environments, environment variable names locally.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve. Keys it could not find are omitted from the map.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
