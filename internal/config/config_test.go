package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func billingFixture(mode Mode) BillingConfig {
	return BillingConfig{
		Mode:                  mode,
		SecretKey:             "sk_live_1",
		PublishableKey:        "pk_live_1",
		TestSecretKey:         "sk_test_1",
		TestPublishableKey:    "pk_test_1",
		WebhookSecretInvoice:  "whsec_invoice",
		WebhookSecretCustomer: "whsec_customer",
		WebhookSecretCLI:      "whsec_cli",
	}
}

func TestBillingConfig_LiveModeSelection(t *testing.T) {
	b := billingFixture(ModeLive)

	assert.Equal(t, "sk_live_1", b.ActiveSecretKey().Unmask())
	assert.Equal(t, "pk_live_1", b.ActivePublishableKey())

	secrets := b.WebhookSecrets()
	assert.Equal(t, "whsec_invoice", secrets[EndpointInvoice].Unmask())
	assert.Equal(t, "whsec_customer", secrets[EndpointCustomer].Unmask())
}

func TestBillingConfig_TestModeUsesCLISecretEverywhere(t *testing.T) {
	b := billingFixture(ModeTest)

	assert.Equal(t, "sk_test_1", b.ActiveSecretKey().Unmask())
	assert.Equal(t, "pk_test_1", b.ActivePublishableKey())

	for _, endpoint := range []string{EndpointInvoice, EndpointCustomer} {
		secret, err := b.WebhookSecret(endpoint)
		require.NoError(t, err)
		assert.Equal(t, "whsec_cli", secret.Unmask())
	}
}

func TestBillingConfig_UnknownEndpoint(t *testing.T) {
	_, err := billingFixture(ModeLive).WebhookSecret("charge")
	assert.Error(t, err)
}

func TestBillingConfig_ValidateCredentials(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *BillingConfig)
		wantErr string
	}{
		{"complete live", func(b *BillingConfig) {}, ""},
		{"complete test", func(b *BillingConfig) { b.Mode = ModeTest }, ""},
		{"live without key", func(b *BillingConfig) { b.SecretKey = "" }, "STRIPE_SECRET_KEY"},
		{"test without key", func(b *BillingConfig) { b.Mode = ModeTest; b.TestSecretKey = "" }, "STRIPE_TEST_SECRET_KEY"},
		{"live without invoice secret", func(b *BillingConfig) { b.WebhookSecretInvoice = "" }, "WEBHOOK_SECRET_INVOICE"},
		{"live shared endpoint secret", func(b *BillingConfig) { b.WebhookSecretCustomer = b.WebhookSecretInvoice }, "must differ"},
		{"test ignores live secrets", func(b *BillingConfig) {
			b.Mode = ModeTest
			b.WebhookSecretInvoice = ""
			b.WebhookSecretCustomer = ""
		}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := billingFixture(ModeLive)
			tc.mutate(&b)
			err := b.validateCredentials()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDatabaseConfig_Enabled(t *testing.T) {
	assert.False(t, DatabaseConfig{}.Enabled())
	assert.True(t, DatabaseConfig{URL: "postgres://localhost/ledger"}.Enabled())
}
