package domain

// Identity is the owner of a cart or order: an authenticated user or a guest
// session, never both and never neither.
type Identity struct {
	UserID    string
	SessionID string
}

func UserIdentity(userID string) Identity {
	return Identity{UserID: userID}
}

func GuestIdentity(sessionID string) Identity {
	return Identity{SessionID: sessionID}
}

func (id Identity) IsUser() bool {
	return id.UserID != ""
}

// Validate enforces the exactly-one-of invariant at write time.
func (id Identity) Validate() error {
	switch {
	case id.UserID == "" && id.SessionID == "":
		return Validationf("IDENTITY_REQUIRED", "either a user or a guest session is required")
	case id.UserID != "" && id.SessionID != "":
		return Validationf("IDENTITY_AMBIGUOUS", "a cart owner cannot be both a user and a guest session")
	}
	return nil
}
