package models

// AuthContext carries the credentials for one call to the remote source.
// Callers build it; nothing downstream reads credentials from globals.
type AuthContext struct {
	BearerToken string
	PSUID       string
	ConsentID   string
	// AccessToken is the Plaid item access token when Plaid is the source.
	AccessToken string
}
