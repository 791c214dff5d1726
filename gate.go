package auth

import "context"

// Gate authenticates access tokens. It never consults the revocation ledger:
// access tokens are accepted until their natural expiry.
type Gate struct {
	issuer *TokenIssuer
	users  CredentialStore
	logger Logger
}

// NewGate creates a gate backed by issuer and users.
func NewGate(issuer *TokenIssuer, users CredentialStore) *Gate {
	return &Gate{
		issuer: issuer,
		users:  users,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the gate.
func (g *Gate) WithLogger(logger Logger) *Gate {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Authenticate verifies raw and loads the identity it names. Expired and
// invalid tokens fail with distinct text codes so clients know when to refresh.
func (g *Gate) Authenticate(ctx context.Context, raw string) (*User, *SessionClaims, error) {
	if raw == "" {
		return nil, nil, newError(ErrUnauthenticated, "missing access token")
	}

	claims, err := g.issuer.VerifyAccess(raw)
	if err != nil {
		return nil, nil, err
	}

	user, err := g.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			return nil, nil, newError(ErrUnauthenticated, "identity no longer exists", map[string]any{
				"user_id": claims.UserID(),
			})
		}
		return nil, nil, asRichError(err, "failed to load identity")
	}

	return user, claims, nil
}

// CheckRole fails with ErrForbidden unless the user's role is in allowed.
func CheckRole(user *User, allowed ...UserRole) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if user.Role.In(allowed...) {
		return nil
	}

	roles := make([]string, 0, len(allowed))
	for _, r := range allowed {
		roles = append(roles, string(r))
	}
	return newError(ErrForbidden, "insufficient role", map[string]any{
		"role":    string(user.Role),
		"allowed": roles,
	})
}

// requireOwner loads actorID and checks it holds the owner role.
func requireOwner(ctx context.Context, users CredentialStore, actorID string) (*User, error) {
	actor, err := users.FindByID(ctx, actorID)
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			return nil, newError(ErrForbidden, "acting identity not found")
		}
		return nil, asRichError(err, "failed to load acting identity")
	}
	if actor.Role != RoleOwner {
		return nil, newError(ErrForbidden, "owner role required", map[string]any{
			"role": string(actor.Role),
		})
	}
	return actor, nil
}
