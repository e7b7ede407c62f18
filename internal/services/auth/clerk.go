package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
)

// ClerkProvider validates Clerk session tokens for end users. Admins are
// recognized through their Clerk organization role.
type ClerkProvider struct {
	secretKey string
}

func NewClerkProvider(secretKey string) *ClerkProvider {
	clerk.SetKey(secretKey)

	return &ClerkProvider{secretKey: secretKey}
}

func (p *ClerkProvider) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	role := RoleUser
	if strings.Contains(claims.ActiveOrganizationRole, "admin") {
		role = RoleAdmin
	}

	return &Identity{
		UserID: claims.RegisteredClaims.Subject,
		Role:   role,
	}, nil
}
