package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"seventyFiveAPI/internal/types/habit"
)

type HabitService struct {
	db *pgxpool.Pool
}

func NewHabitService(db *pgxpool.Pool) *HabitService {
	return &HabitService{db: db}
}

// GetActiveHabitDefinitions returns the habit list of the user's active
// challenge in display order.
func (s *HabitService) GetActiveHabitDefinitions(ctx context.Context, clerkID string) ([]*habit.Habit, error) {
	var challengeID uuid.UUID
	err := s.db.QueryRow(ctx, `
	SELECT c.id
	FROM challenges c
	JOIN users u ON u.id = c.user_id
	WHERE u.clerk_id = $1 AND c.status = 'active'
	`, clerkID).Scan(&challengeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveChallenge
		}
		return nil, fmt.Errorf("failed to load active challenge: %w", err)
	}

	rows, err := s.db.Query(ctx, `
	SELECT id, challenge_id, name, habit_type, target_count, is_hard, sort_order, created_at
	FROM habit_definitions
	WHERE challenge_id = $1
	ORDER BY sort_order
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load habit definitions: %w", err)
	}
	defer rows.Close()

	habits := []*habit.Habit{}
	for rows.Next() {
		h := &habit.Habit{}
		if err := rows.Scan(&h.ID, &h.ChallengeID, &h.Name, &h.HabitType, &h.TargetCount, &h.IsHard, &h.SortOrder, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}

	return habits, rows.Err()
}
