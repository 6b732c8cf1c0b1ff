package application

// IsAuthorized reports whether a member may run privileged commands: either
// the member is an administrator or holds at least one allow-listed role.
func IsAuthorized(isAdmin bool, userRoleIDs, allowedRoleIDs []uint64) bool {
	if isAdmin {
		return true
	}

	allowed := make(map[uint64]struct{}, len(allowedRoleIDs))
	for _, id := range allowedRoleIDs {
		allowed[id] = struct{}{}
	}

	for _, id := range userRoleIDs {
		if _, ok := allowed[id]; ok {
			return true
		}
	}

	return false
}
