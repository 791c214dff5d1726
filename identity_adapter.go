package auth

// identitySnapshot is the part of a User that ends up inside a token pair.
// It is copied at mint time so a later role change on the same *User value
// cannot alter a pair that is already being signed.
type identitySnapshot struct {
	id       string
	username string
	role     UserRole
}

// NewIdentityFromUser snapshots user for token minting. A nil user yields a
// nil Identity, which Mint rejects.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return identitySnapshot{
		id:       user.ID.String(),
		username: user.Username,
		role:     user.Role,
	}
}

func (s identitySnapshot) ID() string       { return s.id }
func (s identitySnapshot) Username() string { return s.username }
func (s identitySnapshot) Role() UserRole   { return s.role }
