package gatehouse

// TokenPayload is the transient claim set carried by both tokens of a
// minted pair. TokenID is a random correlation id shared by the access
// and refresh token issued in the same event; the two tokens are still
// verified independently and neither validates the other.
type TokenPayload struct {
	UserID      string
	Email       string
	Role        string
	DisplayName string
	TokenID     string
}

// SafeUser is the password-hash-stripped user view returned by
// [Engine.Login].
type SafeUser struct {
	ID          string
	Email       string
	Role        string
	DisplayName string
}

// TokenPair holds an access/refresh pair minted in one issuance event.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	User         SafeUser
	AccessToken  string
	RefreshToken string
}

// RevokeSelector addresses the session(s) to revoke: a single refresh
// token, or every refresh token belonging to a user. When both fields
// are set the token takes precedence.
type RevokeSelector struct {
	UserID       string
	RefreshToken string
}
