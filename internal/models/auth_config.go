package models

type AuthConfig struct {
	ClerkConfig        *ClerkAuthConfig `json:"clerk,omitempty" yaml:"clerk,omitempty"`
	ServiceTokenSecret string           `json:"service_token_secret,omitempty" yaml:"service_token_secret,omitempty"`
}

type ClerkAuthConfig struct {
	SecretKey     string `json:"secret_key" yaml:"secret_key"`
	WebhookSecret string `json:"webhook_secret" yaml:"webhook_secret"`
}
