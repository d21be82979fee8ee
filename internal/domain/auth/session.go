package auth

// Session is the authenticated caller, resolved once per request from the
// bearer token and handed explicitly to services.
type Session struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	RoleID   string `json:"role_id"`
	RoleName string `json:"role"`
}

func (s Session) Privileged() bool {
	return IsPrivileged(s.RoleName)
}

// CanActFor reports whether the session may touch records owned by userID.
func (s Session) CanActFor(userID string) bool {
	return s.UserID == userID || s.Privileged()
}

type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}
