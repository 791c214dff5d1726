package auth

import (
	"context"
	"time"
)

// Stores groups the persistence collaborators of the service.
type Stores struct {
	Users  CredentialStore
	Ledger RevocationLedger
	Resets ResetStore
	Audit  AuditStore
	Tx     Transactor
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger handed to every component.
func WithServiceLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceActivitySink sets the sink receiving security events.
func WithServiceActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithServiceHasher overrides the bcrypt hasher.
func WithServiceHasher(hasher PasswordHasher) ServiceOption {
	return func(s *Service) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithServiceClock overrides the time source of every component.
func WithServiceClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// Service is the session lifecycle facade consumed by the HTTP layer.
type Service struct {
	opts     Options
	stores   Stores
	logger   Logger
	activity ActivitySink
	hasher   PasswordHasher
	now      Clock

	issuer   *TokenIssuer
	rotator  *TokenRotator
	gate     *Gate
	provider *UserProvider
	audit    *AuditLogger
	resets   *ResetCoordinator
	register *RegisterUserHandler
	roles    *UpdateUserRoleHandler
	deletes  *DeleteUserHandler
	password *ChangePasswordHandler
}

// NewService validates opts and wires the components over stores.
func NewService(opts Options, stores Stores, options ...ServiceOption) (*Service, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, invalidPayload(err)
	}
	if stores.Tx == nil {
		stores.Tx = noopTransactor{}
	}

	s := &Service{
		opts:     opts,
		stores:   stores,
		logger:   defLogger{},
		activity: noopActivitySink{},
		hasher:   NewBcryptHasher(0),
		now:      time.Now,
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}

	s.issuer = NewTokenIssuer(opts, s.logger).WithClock(s.now)
	s.rotator = NewTokenRotator(s.issuer, stores.Users, stores.Ledger).
		WithActivitySink(s.activity).
		WithLogger(s.logger).
		WithClock(s.now)
	s.gate = NewGate(s.issuer, stores.Users).WithLogger(s.logger)
	s.provider = NewUserProvider(stores.Users, s.hasher).WithLogger(s.logger)
	s.audit = NewAuditLogger(stores.Audit).WithLogger(s.logger).WithClock(s.now)

	request := NewRequestPasswordResetHandler(stores.Users, stores.Resets).
		WithActivitySink(s.activity).
		WithLogger(s.logger).
		WithClock(s.now)
	approve := NewApprovePasswordResetHandler(stores.Users, stores.Resets, s.hasher, s.audit).
		WithTransactor(stores.Tx).
		WithActivitySink(s.activity).
		WithLogger(s.logger).
		WithClock(s.now).
		WithMinPasswordLength(opts.MinPasswordLength)
	s.resets = NewResetCoordinator(request, approve)

	s.register = NewRegisterUserHandler(stores.Users, s.hasher, s.audit).
		WithLogger(s.logger).
		WithMinPasswordLength(opts.MinPasswordLength)
	s.roles = NewUpdateUserRoleHandler(stores.Users, s.audit).
		WithActivitySink(s.activity).
		WithLogger(s.logger)
	s.deletes = NewDeleteUserHandler(stores.Users, s.audit).
		WithActivitySink(s.activity).
		WithLogger(s.logger)
	s.password = NewChangePasswordHandler(stores.Users, s.hasher, s.audit).
		WithMinPasswordLength(opts.MinPasswordLength)

	return s, nil
}

// Options returns the resolved options.
func (s *Service) Options() Options {
	return s.opts
}

// Issuer returns the token issuer.
func (s *Service) Issuer() *TokenIssuer {
	return s.issuer
}

// Gate returns the authorization gate.
func (s *Service) Gate() *Gate {
	return s.gate
}

// Audit returns the audit logger.
func (s *Service) Audit() *AuditLogger {
	return s.audit
}

// RequestPasswordReset files a pending reset for the named operator.
func (s *Service) RequestPasswordReset(ctx context.Context, operatorName string) (*PasswordResetRequest, error) {
	return s.resets.Request(ctx, operatorName)
}

// ListPendingResets returns pending reset requests, newest first.
func (s *Service) ListPendingResets(ctx context.Context) ([]*PasswordResetRequest, error) {
	return s.resets.ListPending(ctx)
}

// ApproveReset lets ownerID set a new password for the operator behind requestID.
func (s *Service) ApproveReset(ctx context.Context, requestID, newPassword, ownerID string, meta RequestMeta) (*User, error) {
	return s.resets.Approve(ctx, ApprovePasswordResetMessage{
		RequestID: requestID,
		Password:  newPassword,
		OwnerID:   ownerID,
		Meta:      meta,
	})
}

// UpdateUserRole changes the role of targetID on behalf of actorID.
func (s *Service) UpdateUserRole(ctx context.Context, actorID, targetID string, role UserRole, meta RequestMeta) (*User, error) {
	return s.roles.Execute(ctx, UpdateUserRoleMessage{
		ActorID:  actorID,
		TargetID: targetID,
		Role:     string(role),
		Meta:     meta,
	})
}

// DeleteUser soft deletes targetID on behalf of actorID.
func (s *Service) DeleteUser(ctx context.Context, actorID, targetID string, meta RequestMeta) error {
	return s.deletes.Execute(ctx, DeleteUserMessage{
		ActorID:  actorID,
		TargetID: targetID,
		Meta:     meta,
	})
}

// ChangePassword replaces the password of userID after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string, meta RequestMeta) error {
	return s.password.Execute(ctx, ChangePasswordMessage{
		UserID:          userID,
		CurrentPassword: current,
		NewPassword:     next,
		Meta:            meta,
	})
}

// QueryAudit returns audit entries newest first with the total match count.
func (s *Service) QueryAudit(ctx context.Context, filter AuditFilter, page Page) ([]*AuditLogEntry, int, error) {
	return s.audit.Query(ctx, filter, page)
}
