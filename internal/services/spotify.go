// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mkdelta/spinstats/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultLimit = 20
	maxLimit     = 50
)

// Time ranges accepted by Spotify's personalization endpoints.
const (
	TimeRangeShort  = "short_term"
	TimeRangeMedium = "medium_term"
	TimeRangeLong   = "long_term"
)

// ParseTimeRange validates a time_range query value.
// An empty value defaults to [TimeRangeMedium]; anything outside the three
// named ranges is rejected with [shared.ErrInvalidArgument].
func ParseTimeRange(value string) (string, error) {
	switch value {
	case "":
		return TimeRangeMedium, nil
	case TimeRangeShort, TimeRangeMedium, TimeRangeLong:
		return value, nil
	default:
		return "", fmt.Errorf("%w: time_range %q", shared.ErrInvalidArgument, value)
	}
}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// FollowerCount returns the profile's follower total.
func (u *SpotifyUser) FollowerCount() int {
	return u.Followers.Total
}

// FirstImage returns the URL of the profile's first image, or "" when the
// profile has none.
func (u *SpotifyUser) FirstImage() string {
	if len(u.Images) == 0 {
		return ""
	}
	return u.Images[0].URL
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyService implements the [Service] interface for Spotify API interactions.
// Uses [oauth2] for the authorization code exchange and raw bearer requests
// for everything else.
type SpotifyService struct {
	config     *oauth2.Config
	baseURL    string
	httpClient *http.Client
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Required keys: client_id, client_secret. Optional keys auth_url, token_url,
// and api_base_url override the Spotify endpoints for testing.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: client_secret", shared.ErrMissingCredentials)
	}

	authURL := credentials["auth_url"]
	if authURL == "" {
		authURL = spotifyAuthURL
	}
	tokenURL := credentials["token_url"]
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	baseURL := credentials["api_base_url"]
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"user-top-read",
			"user-read-recently-played",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}

	return &SpotifyService{
		config:  config,
		baseURL: baseURL,
		// Upstream calls must not hang a request handler forever.
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthCodeURL returns the OAuth2 authorization URL for user login.
//
// show_dialog forces Spotify to re-prompt for authorization so switching
// accounts works. The redirect URI is supplied per call because it is derived
// from the inbound request.
func (s *SpotifyService) AuthCodeURL(state, redirectURI string) string {
	return s.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("redirect_uri", redirectURI),
		oauth2.SetAuthURLParam("show_dialog", "true"),
	)
}

// Exchange trades an authorization code for tokens via a form-encoded POST
// with HTTP basic client credentials, handled by [oauth2.Config.Exchange].
func (s *SpotifyService) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	token, err := s.config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("redirect_uri", redirectURI),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", shared.ErrAuthFailed, err)
	}

	return token, nil
}

// UserProfile retrieves the profile of the access token's owner.
func (s *SpotifyService) UserProfile(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	body, err := s.doRequest(ctx, accessToken, "/me", nil)
	if err != nil {
		return nil, err
	}

	var user SpotifyUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	return &user, nil
}

// TopArtists retrieves the user's top artists for the given time range.
func (s *SpotifyService) TopArtists(ctx context.Context, accessToken, timeRange string, limit int) ([]byte, error) {
	return s.doRequest(ctx, accessToken, "/me/top/artists", personalizationQuery(timeRange, limit))
}

// TopTracks retrieves the user's top tracks for the given time range.
func (s *SpotifyService) TopTracks(ctx context.Context, accessToken, timeRange string, limit int) ([]byte, error) {
	return s.doRequest(ctx, accessToken, "/me/top/tracks", personalizationQuery(timeRange, limit))
}

// RecentlyPlayed retrieves the user's listening history. History has no time
// range dimension, only a limit.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]byte, error) {
	query := url.Values{"limit": {strconv.Itoa(clampLimit(limit))}}
	return s.doRequest(ctx, accessToken, "/me/player/recently-played", query)
}

// doRequest performs an authenticated GET against the Spotify API and returns
// the response body untouched.
func (s *SpotifyService) doRequest(ctx context.Context, accessToken, endpoint string, query url.Values) ([]byte, error) {
	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return body, nil
}

func personalizationQuery(timeRange string, limit int) url.Values {
	return url.Values{
		"time_range": {timeRange},
		"limit":      {strconv.Itoa(clampLimit(limit))},
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
