package repository

import (
	"errors"
	"log"

	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-storeauth"
)

// Manager exposes all stores built on one database.
type Manager struct {
	db             *bun.DB
	users          *Users
	revokedTokens  *RevokedTokens
	passwordResets *PasswordResets
	auditLogs      *AuditLogs
	tx             *Transactor
}

func NewRepositoryManager(db *bun.DB) *Manager {
	return &Manager{
		db:             db,
		users:          NewUsersRepository(db),
		revokedTokens:  NewRevokedTokensRepository(db),
		passwordResets: NewPasswordResetsRepository(db),
		auditLogs:      NewAuditLogsRepository(db),
		tx:             NewTransactor(db),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.revokedTokens == nil {
		return errors.New("repository revokedTokens should be initialized")
	}

	if m.passwordResets == nil {
		return errors.New("repository passwordResets should be initialized")
	}

	if m.auditLogs == nil {
		return errors.New("repository auditLogs should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) Users() *Users {
	return m.users
}

func (m *Manager) RevokedTokens() *RevokedTokens {
	return m.revokedTokens
}

func (m *Manager) PasswordResets() *PasswordResets {
	return m.passwordResets
}

func (m *Manager) AuditLogs() *AuditLogs {
	return m.auditLogs
}

func (m *Manager) Transactor() *Transactor {
	return m.tx
}

// Stores wires the repositories into the service. ledger overrides the
// revocation ledger, typically with an auth.CachedLedger wrapping RevokedTokens.
func (m *Manager) Stores(ledger ...auth.RevocationLedger) auth.Stores {
	var l auth.RevocationLedger = m.revokedTokens
	if len(ledger) > 0 && ledger[0] != nil {
		l = ledger[0]
	}
	return auth.Stores{
		Users:  m.users,
		Ledger: l,
		Resets: m.passwordResets,
		Audit:  m.auditLogs,
		Tx:     m.tx,
	}
}
