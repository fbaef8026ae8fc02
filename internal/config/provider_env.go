package config

import (
	"context"
	"os"
)

// EnvVarProvider treats each *_SSM_PARAM value as the name of another
// environment variable. CI and container setups without Parameter Store use
// it via SECRETS_PROVIDER=env.
type EnvVarProvider struct{}

func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch returns the keys present in the environment.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}

// NewSecretProvider picks the provider named by source: "env" for
// EnvVarProvider, anything else for SSM in region.
func NewSecretProvider(source, region string) SecretProvider {
	if source == "env" {
		return NewEnvVarProvider()
	}
	if region == "" {
		region = "us-east-1"
	}
	return NewSSMProvider(region)
}
