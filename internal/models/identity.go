package models

// Identity is the login account owned by the auth service. The profile
// service treats it as opaque except for the ID, which links back into the
// student record.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	RoleID   string `json:"role_id,omitempty"`
	SchoolID string `json:"school_id,omitempty"`
}
