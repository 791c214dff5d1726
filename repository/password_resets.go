package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-storeauth"
)

// PasswordResets stores reset requests. A partial unique index on user_id
// for pending rows enforces a single pending request per user.
type PasswordResets struct {
	db *bun.DB
}

var _ auth.ResetStore = (*PasswordResets)(nil)

func NewPasswordResetsRepository(db *bun.DB) *PasswordResets {
	return &PasswordResets{db: db}
}

func (r *PasswordResets) CreatePending(ctx context.Context, req *auth.PasswordResetRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = auth.ResetPending
	req.RequestedAt = req.RequestedAt.UTC()

	if _, err := idb(ctx, r.db).NewInsert().Model(req).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return conflict("a password reset is already pending", map[string]any{
				"user_id": req.UserID.String(),
			})
		}
		return internal(err, "failed to create password reset request")
	}
	return nil
}

func (r *PasswordResets) HasPending(ctx context.Context, userID uuid.UUID) (bool, error) {
	ok, err := idb(ctx, r.db).NewSelect().
		Model((*auth.PasswordResetRequest)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.status = ?", string(auth.ResetPending)).
		Exists(ctx)
	if err != nil {
		return false, internal(err, "failed to check pending password resets")
	}
	return ok, nil
}

func (r *PasswordResets) FindByID(ctx context.Context, id uuid.UUID) (*auth.PasswordResetRequest, error) {
	req := &auth.PasswordResetRequest{}
	err := idb(ctx, r.db).NewSelect().
		Model(req).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("password reset request not found", map[string]any{"id": id.String()})
		}
		return nil, internal(err, "failed to find password reset request")
	}
	return req, nil
}

func (r *PasswordResets) ListPending(ctx context.Context) ([]*auth.PasswordResetRequest, error) {
	reqs := make([]*auth.PasswordResetRequest, 0)
	err := idb(ctx, r.db).NewSelect().
		Model(&reqs).
		Where("?TableAlias.status = ?", string(auth.ResetPending)).
		OrderExpr("?TableAlias.requested_at DESC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, internal(err, "failed to list pending password resets")
	}
	return reqs, nil
}

// Complete is a conditional write: it only moves rows that are still pending.
func (r *PasswordResets) Complete(ctx context.Context, id, ownerID uuid.UUID, at time.Time) (bool, error) {
	at = at.UTC()
	res, err := idb(ctx, r.db).NewUpdate().
		Model((*auth.PasswordResetRequest)(nil)).
		Set("status = ?", string(auth.ResetCompleted)).
		Set("completed_at = ?", at).
		Set("completed_by_owner_id = ?", ownerID).
		Where("id = ?", id).
		Where("status = ?", string(auth.ResetPending)).
		Exec(ctx)
	if err != nil {
		return false, internal(err, "failed to complete password reset request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, internal(err, "failed to read affected rows")
	}
	return n > 0, nil
}
