package models

// TokenPair bundles a short-lived access token and the opaque refresh token
// that was just stored on the user.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
