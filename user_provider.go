package auth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// UserProvider resolves identities by name and checks their password.
type UserProvider struct {
	store     CredentialStore
	hasher    PasswordHasher
	Validator func(*User) error
	logger    Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store CredentialStore, hasher PasswordHasher) *UserProvider {
	return &UserProvider{
		store:     store,
		hasher:    hasher,
		logger:    defLogger{},
		Validator: defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity will find the user, compare to the password, and return it.
// Unknown names and wrong passwords fail the same way.
func (u *UserProvider) VerifyIdentity(ctx context.Context, name, password string) (*User, error) {
	if name == "" || password == "" {
		return nil, newError(ErrInvalidInput, "name and password are required")
	}

	user, err := u.store.FindByName(ctx, name)
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			// equalize timing with the known name path
			_ = u.hasher.ComparePasswordAndHash(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := u.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if HasTextCode(err, TextCodeInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, asRichError(err, "failed to compare password")
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return user, nil
}

// FindIdentityByName returns the user without checking credentials.
func (u *UserProvider) FindIdentityByName(ctx context.Context, name string) (*User, bool, error) {
	user, err := u.store.FindByName(ctx, name)
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user")
	}
	return user, true, nil
}

// dummyHash is a bcrypt hash of a random string.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z0Z4bV3lnC9i0nG8W6Fzj3aG"

func defaultValidator(u *User) error {
	if u.Role.IsValid() {
		return nil
	}
	return errors.New("user has an unknown or invalid role", errors.CategoryAuth).
		WithTextCode("INVALID_ROLE").
		WithMetadata(map[string]any{"role": string(u.Role), "user_id": u.ID.String()})
}
