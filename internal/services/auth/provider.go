package auth

import "context"

// Provider validates a bearer token and resolves the caller's identity.
// Two implementations exist: Clerk session tokens for end users of the CV
// builder, and locally signed HS256 service tokens for internal callers
// like the document generation workflow.
type Provider interface {
	ValidateToken(ctx context.Context, token string) (*Identity, error)
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleService Role = "service"
)

var roleHierarchy = map[Role]int{
	RoleAdmin:   3,
	RoleService: 2,
	RoleUser:    1,
}

func (r Role) HasPermission(required Role) bool {
	return roleHierarchy[r] >= roleHierarchy[required]
}

// Identity is the resolved caller of a request.
type Identity struct {
	UserID string
	Role   Role
	// OnBehalfOf is set for service tokens acting for a specific user
	// (the generation workflow debiting a user's balance).
	OnBehalfOf string
}

// EffectiveUserID is the account the request operates on: the token
// subject for user tokens, the delegated user for service tokens.
func (id *Identity) EffectiveUserID() string {
	if id.OnBehalfOf != "" {
		return id.OnBehalfOf
	}
	return id.UserID
}

func (id *Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}
