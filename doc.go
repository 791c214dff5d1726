// Package auth provides the session lifecycle of a store back office: token
// pair issuance, single use refresh rotation, a revocation ledger, role gated
// request authorization and an owner approved password reset workflow.
//
// Roles:
//   - Viewer is the default for self service signups. Viewer tokens live 365
//     days; the refresh cookie lifetime follows the remember me choice.
//   - Operator and Owner are admin like and get one day tokens. Exactly one
//     Owner exists; UpdateUserRole refuses to create a second one.
//
// Rotation:
//   - Every refresh retires the presented token into the RevocationLedger.
//     InsertIfAbsent is the serialization point: only the caller whose insert
//     was accepted as new gets a pair, a concurrent duplicate fails with
//     ErrTokenReused.
//   - Access tokens are never looked up in the ledger and stay valid until
//     their natural expiry.
//
// Password resets:
//   - An operator files a request, the owner approves it with a new password.
//     The password write and the conditional status transition share a
//     transaction when the stores provide a Transactor.
//
// Activity sinks and the audit log:
//   - ActivitySink receives login, refresh, reuse and reset events best
//     effort. AuditLogger appends privileged state changes and never fails
//     the operation that produced them.
package auth
