package models

import (
	"fmt"
	"time"
)

// User is a locally stored account linked to a Spotify identity.
//
// ID is a surrogate key assigned by the store: monotonically increasing and
// never reused. SpotifyID is the external identity and is immutable once the
// record exists. The token fields are the only fields mutated after creation.
type User struct {
	ID           int64
	SpotifyID    string
	DisplayName  string
	Email        string
	AccessToken  string
	RefreshToken string
	TokenExpiry  int64 // absolute epoch seconds
	ProfileImage string
	Followers    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks that the user carries the fields the store requires.
func (u *User) Validate() error {
	if u.SpotifyID == "" {
		return fmt.Errorf("spotify id is required")
	}
	return nil
}

// TokenExpired reports whether the stored access token is past its expiry
// at the given instant.
func (u *User) TokenExpired(now time.Time) bool {
	return u.TokenExpiry > 0 && now.Unix() >= u.TokenExpiry
}
