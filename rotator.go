package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// TokenRotator exchanges a refresh token for a new pair and retires the old one.
type TokenRotator struct {
	issuer   *TokenIssuer
	users    CredentialStore
	ledger   RevocationLedger
	activity ActivitySink
	logger   Logger
	now      Clock
}

// NewTokenRotator creates a rotator with sane defaults.
func NewTokenRotator(issuer *TokenIssuer, users CredentialStore, ledger RevocationLedger) *TokenRotator {
	return &TokenRotator{
		issuer:   issuer,
		users:    users,
		ledger:   ledger,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit refresh events.
func (r *TokenRotator) WithActivitySink(sink ActivitySink) *TokenRotator {
	r.activity = normalizeActivitySink(sink)
	return r
}

// WithLogger overrides the logger used by the rotator.
func (r *TokenRotator) WithLogger(logger Logger) *TokenRotator {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithClock overrides the time source used for revocation timestamps.
func (r *TokenRotator) WithClock(clock Clock) *TokenRotator {
	if clock != nil {
		r.now = clock
	}
	return r
}

// Refresh verifies the presented refresh token, retires it and mints a fresh
// pair using the subject's current role. Only the caller whose ledger insert
// was accepted as new gets a pair; a concurrent duplicate fails with ErrTokenReused.
func (r *TokenRotator) Refresh(ctx context.Context, presented string, rememberMe bool) (*TokenPair, *User, error) {
	select {
	case <-ctx.Done():
		return nil, nil, errors.Wrap(ctx.Err(), errors.CategoryOperation, "context cancelled during token refresh")
	default:
	}

	if presented == "" {
		return nil, nil, ErrMissingToken
	}

	claims, err := r.issuer.VerifyRefresh(presented)
	if err != nil {
		if HasTextCode(err, TextCodeWrongTokenKind) {
			r.failure(ctx, "", TextCodeWrongTokenKind)
			return nil, nil, err
		}
		r.failure(ctx, "", TextCodeTokenInvalid)
		return nil, nil, newError(ErrTokenInvalid, "refresh token failed verification", map[string]any{
			"expired": IsTokenExpiredError(err),
		})
	}

	user, err := r.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			return nil, nil, newError(ErrNotFound, "token subject not found")
		}
		return nil, nil, asRichError(err, "failed to load token subject")
	}

	retired, err := r.ledger.Exists(ctx, presented)
	if err != nil {
		return nil, nil, asRichError(err, "failed to check revocation ledger")
	}
	if retired {
		r.reused(ctx, user, "ledger")
		return nil, nil, ErrTokenReused
	}

	inserted, err := r.ledger.InsertIfAbsent(ctx, &RevokedToken{
		Token:     presented,
		UserID:    user.ID.String(),
		Reason:    RevokedByRotation,
		ExpiresAt: claims.Expiry(),
		RevokedAt: r.now(),
	})
	if err != nil {
		return nil, nil, asRichError(err, "failed to retire refresh token")
	}
	if !inserted {
		// lost the race against a concurrent rotation of the same token
		r.reused(ctx, user, "concurrent")
		return nil, nil, ErrTokenReused
	}

	pair, err := r.issuer.Mint(NewIdentityFromUser(user), rememberMe)
	if err != nil {
		return nil, nil, err
	}

	emitActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType: ActivityEventRefreshSuccess,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"role":        string(user.Role),
			"remember_me": rememberMe,
		},
	})

	return pair, user, nil
}

// Retire writes a refresh token into the ledger without minting. Tokens that
// fail verification are ignored since they can never be exchanged anyway.
func (r *TokenRotator) Retire(ctx context.Context, presented string) error {
	if presented == "" {
		return nil
	}

	claims, err := r.issuer.VerifyRefresh(presented)
	if err != nil {
		r.logger.Debug("skipping retirement of unverifiable token", "error", err)
		return nil
	}

	if _, err := r.ledger.InsertIfAbsent(ctx, &RevokedToken{
		Token:     presented,
		UserID:    claims.UserID(),
		Reason:    RevokedByLogout,
		ExpiresAt: claims.Expiry(),
		RevokedAt: r.now(),
	}); err != nil {
		return asRichError(err, "failed to retire refresh token")
	}

	emitActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType: ActivityEventLogout,
		Actor:     ActorRef{ID: claims.UserID(), Type: "user"},
		UserID:    claims.UserID(),
	})

	return nil
}

func (r *TokenRotator) reused(ctx context.Context, user *User, path string) {
	r.logger.Warn("refresh token reuse detected", "user_id", user.ID.String(), "path", path)
	emitActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType: ActivityEventTokenReused,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"path": path},
	})
}

func (r *TokenRotator) failure(ctx context.Context, userID, reason string) {
	emitActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType: ActivityEventRefreshFailure,
		Actor:     ActorRef{ID: userID, Type: "user"},
		UserID:    userID,
		Metadata:  map[string]any{"reason": reason},
	})
}
