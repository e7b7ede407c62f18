package builder

import "github.com/resumeforge/backend/internal/models"

func (b *Builder) WithStripe(secretKey, webhookSecret string) *Builder {
	b.cfg.Billing = &models.StripeConfig{
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
	}
	return b
}

func (b *Builder) WithClerkAuth(secretKey, webhookSecret string) *Builder {
	if b.cfg.Auth == nil {
		b.cfg.Auth = &models.AuthConfig{}
	}
	b.cfg.Auth.ClerkConfig = &models.ClerkAuthConfig{
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
	}
	return b
}

func (b *Builder) WithServiceTokens(secret string) *Builder {
	if b.cfg.Auth == nil {
		b.cfg.Auth = &models.AuthConfig{}
	}
	b.cfg.Auth.ServiceTokenSecret = secret
	return b
}

func (b *Builder) WithCreditCosts(costs map[models.CreditAction]float64) *Builder {
	b.cfg.Credits.Costs = costs
	return b
}

func (b *Builder) WithFreeTierCredits(credits float64) *Builder {
	b.cfg.Credits.FreeTierCredits = credits
	return b
}

func (b *Builder) WithRedisCache(redisURL string, balanceTTLSeconds int) *Builder {
	b.cfg.Cache = &models.CacheConfig{
		RedisURL:          redisURL,
		BalanceTTLSeconds: balanceTTLSeconds,
	}
	return b
}
