package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"seventyFiveAPI/internal/calendar"
	"seventyFiveAPI/internal/types/stats"
	"seventyFiveAPI/internal/types/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

// CreateUser provisions the local row for a Clerk identity. Identity lives
// with Clerk; the row exists for ownership, the timezone, and stats.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	u := &user.User{
		ID:        uuid.New(),
		ClerkID:   req.ClerkID,
		Email:     req.Email,
		Username:  req.Username,
		ImageURL:  req.ImageURL,
		Timezone:  "UTC",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
	INSERT INTO users (id, clerk_id, email, username, image_url, timezone, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, clerk_id, email, username, image_url, timezone, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		u.ID, u.ClerkID, u.Email, u.Username, u.ImageURL, u.Timezone, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.ImageURL, &u.Timezone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `
	SELECT id, clerk_id, email, username, image_url, timezone, created_at, updated_at
	FROM users
	WHERE clerk_id = $1
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.ImageURL, &u.Timezone, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// UpdateTimezone sets the IANA timezone every date computation for this
// user runs in. Validated here so a bad zone can never reach the engine.
func (s *UserService) UpdateTimezone(ctx context.Context, clerkID string, tz string) (*user.User, error) {
	if !calendar.IsValidTimezone(tz) {
		return nil, fmt.Errorf("invalid timezone %q", tz)
	}

	query := `
	UPDATE users SET timezone = $2, updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING id, clerk_id, email, username, image_url, timezone, created_at, updated_at
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID, tz).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.ImageURL, &u.Timezone, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to update timezone: %w", err)
	}

	return u, nil
}

func (s *UserService) UpdateUserByClerkID(ctx context.Context, clerkID string, req *user.CreateUserRequest) error {
	query := `
	UPDATE users
	SET
		email = COALESCE(NULLIF($2, ''), email),
		username = COALESCE(NULLIF($3, ''), username),
		image_url = COALESCE(NULLIF($4, ''), image_url),
		updated_at = NOW()
	WHERE clerk_id = $1
	`

	_, err := s.db.Exec(ctx, query, clerkID, req.Email, req.Username, req.ImageURL)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// GetLifetimeStats returns the aggregates across all of the user's
// attempts. A user who never started a challenge gets zeroes, not an error.
func (s *UserService) GetLifetimeStats(ctx context.Context, clerkID string) (*stats.LifetimeStats, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ls := &stats.LifetimeStats{UserID: userID}
	err = s.db.QueryRow(ctx, `
	SELECT attempt_number, total_restarts, longest_streak, updated_at
	FROM lifetime_stats
	WHERE user_id = $1
	`, userID).Scan(&ls.AttemptNumber, &ls.TotalRestarts, &ls.LongestStreak, &ls.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			ls.UpdatedAt = time.Now()
			return ls, nil
		}
		return nil, fmt.Errorf("failed to get lifetime stats: %w", err)
	}

	return ls, nil
}
