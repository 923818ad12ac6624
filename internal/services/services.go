// package services defines interface Service for interacting with music
// streaming APIs
package services

import (
	"context"

	"golang.org/x/oauth2"
)

// Service is the music provider surface consumed by the HTTP handlers.
// [SpotifyService] is the production implementation; tests substitute mocks.
type Service interface {
	// AuthCodeURL builds the provider's authorization URL for the given
	// CSRF state and callback URI.
	AuthCodeURL(state, redirectURI string) string

	// Exchange trades an authorization code for tokens. The redirect URI
	// must match the one used to build the authorization URL exactly.
	Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)

	// UserProfile fetches the profile of the token's owner.
	UserProfile(ctx context.Context, accessToken string) (*SpotifyUser, error)

	// TopArtists returns the raw upstream response for the user's top artists.
	TopArtists(ctx context.Context, accessToken, timeRange string, limit int) ([]byte, error)

	// TopTracks returns the raw upstream response for the user's top tracks.
	TopTracks(ctx context.Context, accessToken, timeRange string, limit int) ([]byte, error)

	// RecentlyPlayed returns the raw upstream response for the user's
	// listening history.
	RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]byte, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}
