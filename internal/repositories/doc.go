// package repositories provides the persistence layer for the listening
// stats service.
//
// The user repository is the only store the service carries. It runs on
// SQLite, defaulting to :memory:, and exposes an atomic upsert keyed by the
// external Spotify identity so concurrent OAuth callbacks for the same
// account cannot race a check-then-create.
package repositories
