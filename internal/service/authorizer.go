package service

import (
	"auto-order/internal/apperr"
)

// Authorizer is the single admin capability check used by every
// admin-only operation.
type Authorizer struct {
	admins map[int64]struct{}
}

// NewAuthorizer creates an authorizer for the given admin ids
func NewAuthorizer(adminIDs []int64) *Authorizer {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Authorizer{admins: admins}
}

// IsAdmin reports whether userID is an admin
func (a *Authorizer) IsAdmin(userID int64) bool {
	_, ok := a.admins[userID]
	return ok
}

// AdminIDs returns every admin id
func (a *Authorizer) AdminIDs() []int64 {
	ids := make([]int64, 0, len(a.admins))
	for id := range a.admins {
		ids = append(ids, id)
	}
	return ids
}

// RequireAdmin fails with apperr.Unauthorized unless userID is an admin
func (a *Authorizer) RequireAdmin(userID int64) error {
	if !a.IsAdmin(userID) {
		return apperr.Unauthorized.New("user %d is not an admin", userID)
	}
	return nil
}
