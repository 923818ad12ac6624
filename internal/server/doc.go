// Package server provides HTTP routing, middleware, and the handlers for the
// listening stats API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Handlers
//
// [AuthHandler] owns the OAuth surface: login builds the Spotify
// authorization URL, callback exchanges the code, upserts the user, and binds
// the session, logout destroys the session, and me reports the signed-in
// user. Callback failures never surface as server errors; the browser is
// redirected to an error indicator the frontend understands.
//
// [StatsHandler] owns the authenticated pass-through endpoints. Each request
// is gated on the session, the stored user, and the token expiry before any
// upstream call is made, and upstream bodies are returned verbatim.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
