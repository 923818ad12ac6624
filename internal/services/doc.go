// Package services contains the Spotify Web API client used by the HTTP
// layer.
//
// The client is stateless with respect to users: handlers pass the stored
// access token on every call, so one client instance serves every signed-in
// account. Endpoint URLs are configurable through the credentials map, which
// lets tests point the client at httptest servers.
//
// Proxy methods (TopArtists, TopTracks, RecentlyPlayed) return the upstream
// response body verbatim; the service does not reshape Spotify's JSON.
package services
