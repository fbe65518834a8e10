package services

import "github.com/tecnm-sys/apiserver/types"

// Actor identifies the caller of an owner-scoped operation.
type Actor struct {
	UserID int
	Role   types.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == types.RoleAdmin
}

// CanAccess reports whether the actor may read or modify a record owned by ownerID.
func (a Actor) CanAccess(ownerID int) bool {
	return a.IsAdmin() || (a.UserID > 0 && a.UserID == ownerID)
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return offset, limit
}
