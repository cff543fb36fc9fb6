package model

import "time"

// ProviderGoogleDrive is the integration provider key for Google Drive.
const ProviderGoogleDrive = "google_drive"

// OAuthToken is a stored third-party integration credential. A token with an
// empty refresh token is treated as absent.
type OAuthToken struct {
	Provider     string
	UserEmail    string
	RefreshToken string
	Scope        string
	CreatedAt    time.Time
}

// Valid returns whether the token can be used at all.
func (t OAuthToken) Valid() bool { return t.RefreshToken != "" }
