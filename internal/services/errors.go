package services

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountBlocked     = errors.New("account is blocked")
	ErrProfileMissing     = errors.New("no profile for this account and role")
	ErrEmailExists        = errors.New("email already registered")
	ErrForbidden          = errors.New("not allowed")
	ErrSellerNotApproved  = errors.New("seller is not approved yet")
	ErrInviteInvalid      = errors.New("invitation is invalid or expired")
	ErrInviteUsed         = errors.New("invitation was already used")
	ErrOrderClosed        = errors.New("order is closed")
	ErrOutOfStock         = errors.New("not enough stock")
	// ErrReconcileIncomplete means some product writes failed; re-running converges.
	ErrReconcileIncomplete = errors.New("reconciliation incomplete")
)
