package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkdelta/spinstats/internal/models"
	"github.com/mkdelta/spinstats/internal/shared"
)

const userColumns = `
	id, spotify_id, display_name, email, access_token, refresh_token,
	token_expiry, profile_image, followers, created_at, updated_at
`

// UserRepository persists [models.User] records.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and assigns its surrogate id.
//
// Callers are expected to check for an existing Spotify identity first, or
// use [UserRepository.Upsert] which handles both paths atomically.
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (spotify_id, display_name, email, access_token, refresh_token,
			token_expiry, profile_image, followers, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		user.SpotifyID, user.DisplayName, user.Email, user.AccessToken, user.RefreshToken,
		user.TokenExpiry, user.ProfileImage, user.Followers, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}
	user.ID = id

	return nil
}

// Get retrieves a user by surrogate id.
// Returns [shared.ErrUserNotFound] when no record exists.
func (r *UserRepository) Get(id int64) (*models.User, error) {
	query := `SELECT` + userColumns + `FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRow(query, id))
}

// GetBySpotifyID retrieves a user by external Spotify identity.
// Returns [shared.ErrUserNotFound] when no record exists.
func (r *UserRepository) GetBySpotifyID(spotifyID string) (*models.User, error) {
	query := `SELECT` + userColumns + `FROM users WHERE spotify_id = ?`
	return r.scanUser(r.db.QueryRow(query, spotifyID))
}

// UpdateTokens replaces only the token fields of an existing user.
// Profile fields (display name, image, follower count) are left untouched.
// Returns [shared.ErrUserNotFound] when the id is unknown.
func (r *UserRepository) UpdateTokens(id int64, accessToken, refreshToken string, tokenExpiry int64) (*models.User, error) {
	query := `
		UPDATE users
		SET access_token = ?, refresh_token = ?, token_expiry = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, accessToken, refreshToken, tokenExpiry, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: id %d", shared.ErrUserNotFound, id)
	}

	return r.Get(id)
}

// Upsert inserts a user keyed by Spotify identity, or refreshes the token
// fields when the identity already exists.
//
// The conflict clause only touches token columns: the surrogate id, display
// name, email, profile image, and follower count of an existing record are
// preserved. The whole operation is a single statement, so concurrent
// callbacks for a brand-new identity cannot produce duplicate records.
func (r *UserRepository) Upsert(user *models.User) (*models.User, error) {
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO users (spotify_id, display_name, email, access_token, refresh_token,
			token_expiry, profile_image, followers, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spotify_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		user.SpotifyID, user.DisplayName, user.Email, user.AccessToken, user.RefreshToken,
		user.TokenExpiry, user.ProfileImage, user.Followers, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return r.GetBySpotifyID(user.SpotifyID)
}

// scanUser maps a single row onto a [models.User].
func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User

	err := row.Scan(&user.ID, &user.SpotifyID, &user.DisplayName, &user.Email,
		&user.AccessToken, &user.RefreshToken, &user.TokenExpiry,
		&user.ProfileImage, &user.Followers, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &user, nil
}
