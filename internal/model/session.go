package model

// Session is the authenticated identity of the current user. It is derived
// from a verified token and read-only everywhere outside the session provider.
type Session struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Identity returns the stable identifier recorded on items this user reports
// or claims. The email doubles as the identity so listings can show who
// submitted an item without another lookup.
func (s *Session) Identity() string {
	if s == nil {
		return ""
	}
	return s.Email
}
