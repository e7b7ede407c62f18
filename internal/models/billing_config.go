package models

type StripeConfig struct {
	SecretKey     string `json:"secret_key" yaml:"secret_key"`
	WebhookSecret string `json:"webhook_secret" yaml:"webhook_secret"`
}

// CreditsConfig holds the static cost table and free-tier policy. Cost
// changes are deployment-time configuration, not a runtime interface.
type CreditsConfig struct {
	// Costs maps a usage action to its credit cost. Unset actions fall back
	// to the built-in defaults.
	Costs map[CreditAction]float64 `json:"costs,omitempty" yaml:"costs,omitempty"`
	// FreeTierCredits seeds new accounts when they are created from the
	// user registration webhook.
	FreeTierCredits float64 `json:"free_tier_credits" yaml:"free_tier_credits"`
}

type CacheConfig struct {
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	// BalanceTTLSeconds bounds how stale a cached balance snapshot may get
	// between invalidations.
	BalanceTTLSeconds int `json:"balance_ttl_seconds,omitempty" yaml:"balance_ttl_seconds,omitempty"`
}
