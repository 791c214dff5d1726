package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-storeauth"
)

// RevokedTokens is the revocation ledger. The token column is the primary
// key, so a duplicate retirement is resolved by the database.
type RevokedTokens struct {
	db  *bun.DB
	now func() time.Time
}

var _ auth.RevocationLedger = (*RevokedTokens)(nil)

func NewRevokedTokensRepository(db *bun.DB) *RevokedTokens {
	return &RevokedTokens{db: db, now: time.Now}
}

// Exists reports whether token was retired and has not expired yet.
func (r *RevokedTokens) Exists(ctx context.Context, token string) (bool, error) {
	ok, err := idb(ctx, r.db).NewSelect().
		Model((*auth.RevokedToken)(nil)).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.expires_at > ?", r.now().UTC()).
		Exists(ctx)
	if err != nil {
		return false, internal(err, "failed to check revoked token")
	}
	return ok, nil
}

// InsertIfAbsent writes entry unless the token is already present and
// reports whether this call wrote the row.
func (r *RevokedTokens) InsertIfAbsent(ctx context.Context, entry *auth.RevokedToken) (bool, error) {
	entry.ExpiresAt = entry.ExpiresAt.UTC()
	if entry.RevokedAt.IsZero() {
		entry.RevokedAt = r.now()
	}
	entry.RevokedAt = entry.RevokedAt.UTC()

	res, err := idb(ctx, r.db).NewInsert().
		Model(entry).
		On("CONFLICT (token) DO NOTHING").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, internal(err, "failed to insert revoked token")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, internal(err, "failed to read affected rows")
	}
	return n > 0, nil
}

// Reap deletes entries that expired before the given time.
func (r *RevokedTokens) Reap(ctx context.Context, before time.Time) (int64, error) {
	res, err := idb(ctx, r.db).NewDelete().
		Model((*auth.RevokedToken)(nil)).
		Where("expires_at <= ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, internal(err, "failed to reap revoked tokens")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
