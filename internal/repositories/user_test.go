package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/mkdelta/spinstats/internal/models"
	"github.com/mkdelta/spinstats/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testUser(spotifyID string) *models.User {
	return &models.User{
		SpotifyID:    spotifyID,
		DisplayName:  "Test User",
		Email:        "test@example.com",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenExpiry:  time.Now().Add(time.Hour).Unix(),
		ProfileImage: "https://img.example/u.png",
		Followers:    42,
	}
}

func TestUserRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := testUser("spotify_abc")

		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		if user.ID == 0 {
			t.Error("user ID should be set after creation")
		}

		t.Run("Rejects Missing Spotify ID", func(t *testing.T) {
			if err := repo.Create(&models.User{}); err == nil {
				t.Error("expected validation error for empty spotify id")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := testUser("spotify_abc")

		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		retrieved, err := repo.Get(user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		if retrieved.SpotifyID != user.SpotifyID {
			t.Errorf("expected spotify id %s, got %s", user.SpotifyID, retrieved.SpotifyID)
		}

		t.Run("Unknown ID", func(t *testing.T) {
			_, err := repo.Get(9999)
			if !errors.Is(err, shared.ErrUserNotFound) {
				t.Errorf("expected ErrUserNotFound, got %v", err)
			}
		})
	})

	t.Run("GetBySpotifyID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := testUser("spotify_abc")

		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		retrieved, err := repo.GetBySpotifyID("spotify_abc")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		if retrieved.ID != user.ID {
			t.Errorf("expected id %d, got %d", user.ID, retrieved.ID)
		}

		t.Run("Unknown Identity", func(t *testing.T) {
			_, err := repo.GetBySpotifyID("nope")
			if !errors.Is(err, shared.ErrUserNotFound) {
				t.Errorf("expected ErrUserNotFound, got %v", err)
			}
		})
	})

	t.Run("Monotonic IDs", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)

		first := testUser("spotify_one")
		second := testUser("spotify_two")

		if err := repo.Create(first); err != nil {
			t.Fatalf("failed to create first user: %v", err)
		}
		if err := repo.Create(second); err != nil {
			t.Fatalf("failed to create second user: %v", err)
		}

		if second.ID <= first.ID {
			t.Errorf("expected monotonically increasing ids, got %d then %d", first.ID, second.ID)
		}
	})

	t.Run("UpdateTokens", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := testUser("spotify_abc")

		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		newExpiry := time.Now().Add(2 * time.Hour).Unix()
		updated, err := repo.UpdateTokens(user.ID, "access-2", "refresh-2", newExpiry)
		if err != nil {
			t.Fatalf("failed to update tokens: %v", err)
		}

		if updated.AccessToken != "access-2" || updated.RefreshToken != "refresh-2" || updated.TokenExpiry != newExpiry {
			t.Error("token fields were not replaced")
		}

		// Everything outside the token fields stays untouched.
		if updated.DisplayName != user.DisplayName ||
			updated.Email != user.Email ||
			updated.ProfileImage != user.ProfileImage ||
			updated.Followers != user.Followers ||
			updated.SpotifyID != user.SpotifyID {
			t.Error("non-token fields changed during token update")
		}

		t.Run("Unknown ID", func(t *testing.T) {
			_, err := repo.UpdateTokens(9999, "a", "r", 0)
			if !errors.Is(err, shared.ErrUserNotFound) {
				t.Errorf("expected ErrUserNotFound, got %v", err)
			}
		})
	})

	t.Run("Upsert", func(t *testing.T) {
		t.Run("New Identity Creates Record", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewUserRepository(db)

			user, err := repo.Upsert(testUser("spotify_new"))
			if err != nil {
				t.Fatalf("failed to upsert: %v", err)
			}

			if user.ID == 0 {
				t.Error("expected surrogate id to be assigned")
			}

			fetched, err := repo.GetBySpotifyID("spotify_new")
			if err != nil {
				t.Fatalf("failed to fetch upserted user: %v", err)
			}
			if fetched.ID != user.ID {
				t.Errorf("expected id %d, got %d", user.ID, fetched.ID)
			}
		})

		t.Run("Existing Identity Refreshes Tokens Only", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewUserRepository(db)

			original, err := repo.Upsert(testUser("spotify_abc"))
			if err != nil {
				t.Fatalf("failed to upsert: %v", err)
			}

			again := testUser("spotify_abc")
			again.DisplayName = "Renamed"
			again.Followers = 1000
			again.AccessToken = "access-2"
			again.RefreshToken = "refresh-2"
			again.TokenExpiry = time.Now().Add(3 * time.Hour).Unix()

			updated, err := repo.Upsert(again)
			if err != nil {
				t.Fatalf("failed to upsert existing: %v", err)
			}

			if updated.ID != original.ID {
				t.Errorf("surrogate id changed on upsert: %d -> %d", original.ID, updated.ID)
			}
			if updated.AccessToken != "access-2" {
				t.Error("access token was not refreshed")
			}
			if updated.DisplayName != original.DisplayName || updated.Followers != original.Followers {
				t.Error("profile fields should not be refreshed on token update")
			}
		})
	})
}
