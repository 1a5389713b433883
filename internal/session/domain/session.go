package domain

import "time"

// Session is the live credential pair. It is replaced wholesale, never
// patched field by field outside the store.
type Session struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	Username     string `json:"username,omitempty"`
}

func (s Session) Valid() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// TokenPair is what the token endpoints hand back. Refresh is empty when
// the backend does not rotate refresh tokens.
type TokenPair struct {
	Access  string
	Refresh string
}

type Status struct {
	LoggedIn        bool
	Username        string
	AccessExpiresAt time.Time
}
