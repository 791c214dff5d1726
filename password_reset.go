package auth

import "context"

// ResetCoordinator drives the two party password reset workflow:
// an operator files a request, the owner approves it with a new password.
type ResetCoordinator struct {
	resets  ResetStore
	request *RequestPasswordResetHandler
	approve *ApprovePasswordResetHandler
}

// NewResetCoordinator wires the request and approve handlers over the same stores.
func NewResetCoordinator(request *RequestPasswordResetHandler, approve *ApprovePasswordResetHandler) *ResetCoordinator {
	return &ResetCoordinator{
		resets:  request.resets,
		request: request,
		approve: approve,
	}
}

// Request files a pending reset for the named operator.
func (c *ResetCoordinator) Request(ctx context.Context, operatorName string) (*PasswordResetRequest, error) {
	return c.request.Execute(ctx, RequestPasswordResetMessage{Name: operatorName})
}

// ListPending returns every pending request, newest first.
func (c *ResetCoordinator) ListPending(ctx context.Context) ([]*PasswordResetRequest, error) {
	reqs, err := c.resets.ListPending(ctx)
	if err != nil {
		return nil, asRichError(err, "failed to list pending password resets")
	}
	return reqs, nil
}

// Approve sets the new password, completes the request and writes the audit entry.
func (c *ResetCoordinator) Approve(ctx context.Context, msg ApprovePasswordResetMessage) (*User, error) {
	return c.approve.Execute(ctx, msg)
}
