package repository

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-storeauth"
)

// Users is the bun backed credential store.
type Users struct {
	repository.Repository[*auth.User]
	db  *bun.DB
	now func() time.Time
}

var _ auth.CredentialStore = (*Users)(nil)

func NewUsersRepository(db *bun.DB) *Users {
	repo := repository.NewRepository[*auth.User](db, repository.ModelHandlers[*auth.User]{
		NewRecord: func() *auth.User { return &auth.User{} },
		GetID: func(u *auth.User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *auth.User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &Users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

// FindByName looks up a live user by exact name.
func (u *Users) FindByName(ctx context.Context, name string) (*auth.User, error) {
	if name == "" {
		return nil, notFound("user not found", nil)
	}

	user, err := u.Repository.GetByIdentifierTx(ctx, idb(ctx, u.db), name)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("user not found", map[string]any{"name": name})
		}
		return nil, internal(err, "failed to find user by name")
	}
	return user, nil
}

// FindByID looks up a live user by id. Malformed ids are reported as not found.
func (u *Users) FindByID(ctx context.Context, id string) (*auth.User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, notFound("user not found", map[string]any{"id": id})
	}

	user := &auth.User{}
	err = idb(ctx, u.db).NewSelect().
		Model(user).
		Where("?TableAlias.id = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("user not found", map[string]any{"id": id})
		}
		return nil, internal(err, "failed to find user by id")
	}
	return user, nil
}

// Create inserts user. A taken name fails with ErrConflict.
func (u *Users) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	prepareUserDefaults(user, u.now())

	created, err := u.Repository.CreateTx(ctx, idb(ctx, u.db), user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflict("name is already taken", map[string]any{"name": user.Username})
		}
		return nil, internal(err, "failed to create user")
	}
	return created, nil
}

// UpdateByID writes the non nil fields of patch and returns the fresh record.
func (u *Users) UpdateByID(ctx context.Context, id string, patch auth.UserPatch) (*auth.User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, notFound("user not found", map[string]any{"id": id})
	}

	q := idb(ctx, u.db).NewUpdate().
		Model((*auth.User)(nil)).
		Set("updated_at = ?", u.now().UTC()).
		Where("id = ?", uid)

	if patch.PasswordHash != nil {
		q = q.Set("password_hash = ?", *patch.PasswordHash)
	}
	if patch.Role != nil {
		q = q.Set("user_role = ?", string(*patch.Role))
	}
	if patch.Profile != nil {
		q = q.Set("profile_display_name = ?", patch.Profile.DisplayName).
			Set("profile_email = ?", patch.Profile.Email).
			Set("profile_phone_number = ?", patch.Profile.Phone).
			Set("profile_shop_name = ?", patch.Profile.ShopName)
	}
	if patch.LoggedInAt != nil {
		q = q.Set("loggedin_at = ?", patch.LoggedInAt.UTC())
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, internal(err, "failed to update user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("user not found", map[string]any{"id": id})
	}

	return u.FindByID(ctx, id)
}

// AssignOwner promotes id to owner. The NOT EXISTS guard and the
// usr_single_owner index both refuse a second live owner.
func (u *Users) AssignOwner(ctx context.Context, id string) (*auth.User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, notFound("user not found", map[string]any{"id": id})
	}

	res, err := idb(ctx, u.db).NewUpdate().
		Model((*auth.User)(nil)).
		Set("user_role = ?", string(auth.RoleOwner)).
		Set("updated_at = ?", u.now().UTC()).
		Where("id = ?", uid).
		Where("NOT EXISTS (SELECT 1 FROM users AS cur WHERE cur.user_role = ? AND cur.deleted_at IS NULL)", string(auth.RoleOwner)).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflict("an owner already exists", map[string]any{"id": id})
		}
		return nil, internal(err, "failed to assign owner")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := u.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, conflict("an owner already exists", map[string]any{"id": id})
	}

	return u.FindByID(ctx, id)
}

// CountByRole counts live users holding role.
func (u *Users) CountByRole(ctx context.Context, role auth.UserRole) (int, error) {
	n, err := idb(ctx, u.db).NewSelect().
		Model((*auth.User)(nil)).
		Where("?TableAlias.user_role = ?", string(role)).
		Count(ctx)
	if err != nil {
		return 0, internal(err, "failed to count users by role")
	}
	return n, nil
}

// SoftDelete stamps deleted_at. Deleted users are invisible to every lookup.
func (u *Users) SoftDelete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return notFound("user not found", map[string]any{"id": id})
	}

	res, err := idb(ctx, u.db).NewDelete().
		Model(&auth.User{ID: uid}).
		WherePK().
		Exec(ctx)
	if err != nil {
		return internal(err, "failed to delete user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("user not found", map[string]any{"id": id})
	}
	return nil
}

func prepareUserDefaults(record *auth.User, now time.Time) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = auth.RoleViewer
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now = now.UTC()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}
