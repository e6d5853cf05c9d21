package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
)

// StripeConfig holds configuration for Stripe usage export
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// IsTestMode indicates if using Stripe test mode
	IsTestMode bool

	// APIURL overrides the Stripe API base URL, e.g. for stripe-mock
	APIURL string

	// MaxNetworkRetries is the number of retries on transient failures
	MaxNetworkRetries int64
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}

	if c.IsTestMode {
		if !strings.HasPrefix(c.SecretKey, "sk_test") {
			return fmt.Errorf("stripe: test mode enabled but secret key is not a test key")
		}
	} else if !strings.HasPrefix(c.SecretKey, "sk_live") {
		return fmt.Errorf("stripe: live mode enabled but secret key is not a live key")
	}

	if c.MaxNetworkRetries < 0 {
		return fmt.Errorf("stripe: max network retries cannot be negative")
	}
	return nil
}

// InitStripeClient installs the API key and, when configured, a backend
// pointing at APIURL
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey

	if c.APIURL == "" && c.MaxNetworkRetries == 0 {
		return
	}
	backendConfig := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(c.MaxNetworkRetries),
	}
	if c.APIURL != "" {
		backendConfig.URL = stripe.String(c.APIURL)
	}
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig))
}
