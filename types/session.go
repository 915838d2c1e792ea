package types

// Identity is the authenticated principal attached to a request.
// The zero value means anonymous.
type Identity struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// Authenticated reports whether the identity refers to a user.
func (i Identity) Authenticated() bool {
	return i.UserID > 0
}
