package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"seventyFiveAPI/internal/calendar"
	"seventyFiveAPI/internal/policy"
	"seventyFiveAPI/internal/types/challenge"
	"seventyFiveAPI/internal/types/notification"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrNoActiveChallenge = errors.New("no active challenge")
	ErrChallengeExists   = errors.New("an active challenge already exists")
	ErrNoHabits          = errors.New("a challenge needs at least one habit")
)

type ChallengeService struct {
	db                  *pgxpool.Pool
	notificationService *NotificationService
}

func NewChallengeService(db *pgxpool.Pool, notificationService *NotificationService) *ChallengeService {
	return &ChallengeService{
		db:                  db,
		notificationService: notificationService,
	}
}

func (s *ChallengeService) getUser(ctx context.Context, clerkID string) (uuid.UUID, string, error) {
	var userID uuid.UUID
	var tz string
	err := s.db.QueryRow(ctx, `SELECT id, timezone FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID, &tz)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, "", fmt.Errorf("user not found")
		}
		return uuid.Nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	return userID, tz, nil
}

// CreateChallenge starts a user's first attempt (or a fresh one after a
// completed run). Day 1 is today in the user's timezone. The habit list is
// fixed at creation; replacement attempts after a failure copy it over.
func (s *ChallengeService) CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	userID, tz, err := s.getUser(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if len(req.Habits) == 0 {
		return nil, ErrNoHabits
	}

	visibility := challenge.Visibility(req.Visibility)
	switch visibility {
	case challenge.VisibilityPrivate, challenge.VisibilityFriends, challenge.VisibilityPublic:
	case "":
		visibility = challenge.VisibilityPrivate
	default:
		return nil, fmt.Errorf("invalid visibility %q", req.Visibility)
	}

	today, err := calendar.Today(tz)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var hasActive bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM challenges WHERE user_id = $1 AND status = 'active')`,
		userID,
	).Scan(&hasActive)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active challenge: %w", err)
	}
	if hasActive {
		return nil, ErrChallengeExists
	}

	var attempt int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0) + 1 FROM challenges WHERE user_id = $1`,
		userID,
	).Scan(&attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to determine attempt number: %w", err)
	}

	ch := &challenge.Challenge{
		ID:            uuid.New(),
		UserID:        userID,
		StartDate:     today,
		CurrentDay:    1,
		Status:        challenge.StatusActive,
		AttemptNumber: attempt,
		Visibility:    visibility,
	}

	query := `
	INSERT INTO challenges (id, user_id, start_date, current_day, status, attempt_number, visibility, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		ch.ID, ch.UserID, ch.StartDate, ch.CurrentDay, ch.Status, ch.AttemptNumber, ch.Visibility,
	).Scan(&ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	for i, h := range req.Habits {
		habitType := h.HabitType
		if habitType == "" {
			habitType = "task"
		}
		_, err = tx.Exec(ctx, `
		INSERT INTO habit_definitions (id, challenge_id, name, habit_type, target_count, is_hard, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`, uuid.New(), ch.ID, h.Name, habitType, h.TargetCount, h.IsHard, i)
		if err != nil {
			return nil, fmt.Errorf("failed to create habit %q: %w", h.Name, err)
		}
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO lifetime_stats (user_id, attempt_number, total_restarts, longest_streak, updated_at)
	VALUES ($1, $2, 0, 0, NOW())
	ON CONFLICT (user_id) DO UPDATE SET attempt_number = $2, updated_at = NOW()
	`, userID, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to update lifetime stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit challenge creation: %w", err)
	}

	log.Printf("Challenge: user %s started attempt %d (%s)", userID, attempt, ch.ID)
	return ch, nil
}

// GetActiveChallenge returns the user's active challenge, or the most
// recently ended one when nothing is active (so the UI can show a finished
// run).
func (s *ChallengeService) GetActiveChallenge(ctx context.Context, clerkID string) (*challenge.Challenge, error) {
	userID, _, err := s.getUser(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT id, user_id, start_date::text, current_day, status, attempt_number, visibility, failed_on_day, created_at, updated_at
	FROM challenges
	WHERE user_id = $1
	ORDER BY (status = 'active') DESC, created_at DESC
	LIMIT 1
	`

	ch := &challenge.Challenge{}
	err = s.db.QueryRow(ctx, query, userID).Scan(
		&ch.ID, &ch.UserID, &ch.StartDate, &ch.CurrentDay, &ch.Status,
		&ch.AttemptNumber, &ch.Visibility, &ch.FailedOnDay, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveChallenge
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	return ch, nil
}

// ListActiveChallenges enumerates every active challenge with its owner's
// timezone. Consumed by the periodic sweep.
func (s *ChallengeService) ListActiveChallenges(ctx context.Context) ([]challenge.ActiveRef, error) {
	query := `
	SELECT c.id, u.timezone
	FROM challenges c
	JOIN users u ON u.id = c.user_id
	WHERE c.status = 'active'
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active challenges: %w", err)
	}
	defer rows.Close()

	refs := []challenge.ActiveRef{}
	for rows.Next() {
		var ref challenge.ActiveRef
		if err := rows.Scan(&ref.ID, &ref.Timezone); err != nil {
			return nil, fmt.Errorf("failed to scan challenge ref: %w", err)
		}
		refs = append(refs, ref)
	}

	return refs, rows.Err()
}

// outcome is the decision resolveOutcome hands back: which transition to
// apply and the bookkeeping it needs.
type outcome struct {
	status      challenge.Status
	failedOnDay int
	currentDay  int
}

// resolveOutcome is the decision core of Evaluate. met holds, per day
// number, whether that day's log has every hard requirement satisfied; a
// missing entry means no proof of completion, which counts as non-completion.
// Only the earliest unmet day whose grace has elapsed matters: once one day
// is irrecoverable the whole attempt is.
func resolveOutcome(todayDay int, met map[int]bool) outcome {
	for d := 1; d <= policy.ProgramLength && policy.GraceElapsed(d, todayDay); d++ {
		if !met[d] {
			return outcome{status: challenge.StatusFailed, failedOnDay: d}
		}
	}

	current := todayDay
	if current > policy.ProgramLength {
		current = policy.ProgramLength
	}

	if current == policy.ProgramLength {
		all := true
		for d := 1; d <= policy.ProgramLength; d++ {
			if !met[d] {
				all = false
				break
			}
		}
		if all {
			return outcome{status: challenge.StatusCompleted, currentDay: policy.ProgramLength}
		}
	}

	return outcome{status: challenge.StatusActive, currentDay: current}
}

// Evaluate decides, as of now, whether the challenge is completed, failed,
// or still on track, and applies the transition. It is idempotent: the row
// lock plus the status guard on every transition make concurrent calls
// (lazy check racing the sweep) settle on exactly one reset.
func (s *ChallengeService) Evaluate(ctx context.Context, challengeID uuid.UUID, tz string) (*challenge.EvaluateResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ch := &challenge.Challenge{}
	err = tx.QueryRow(ctx, `
	SELECT id, user_id, start_date::text, current_day, status, attempt_number, visibility
	FROM challenges
	WHERE id = $1
	FOR UPDATE
	`, challengeID).Scan(
		&ch.ID, &ch.UserID, &ch.StartDate, &ch.CurrentDay, &ch.Status, &ch.AttemptNumber, &ch.Visibility,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	// Terminal states are a no-op; the failed state has already been
	// superseded by a replacement attempt.
	if ch.Status != challenge.StatusActive {
		return &challenge.EvaluateResult{Status: ch.Status, AttemptNumber: ch.AttemptNumber}, nil
	}

	today, err := calendar.Today(tz)
	if err != nil {
		return nil, err
	}
	todayDay, err := calendar.DayNumber(ch.StartDate, today)
	if err != nil {
		return nil, err
	}
	if todayDay < 1 {
		// Start date is still ahead of the user's wall clock; nothing to judge.
		return &challenge.EvaluateResult{Status: challenge.StatusActive, AttemptNumber: ch.AttemptNumber}, nil
	}

	met, err := s.loadMetDays(ctx, tx, ch.ID)
	if err != nil {
		return nil, err
	}

	out := resolveOutcome(todayDay, met)

	switch out.status {
	case challenge.StatusFailed:
		return s.applyFailure(ctx, tx, ch, out.failedOnDay, today)

	case challenge.StatusCompleted:
		ct, err := tx.Exec(ctx, `
		UPDATE challenges
		SET status = 'completed', current_day = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		`, ch.ID, policy.ProgramLength)
		if err != nil {
			return nil, fmt.Errorf("failed to complete challenge: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return &challenge.EvaluateResult{Status: challenge.StatusCompleted, AttemptNumber: ch.AttemptNumber}, nil
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit completion: %w", err)
		}
		log.Printf("Challenge: %s completed on attempt %d", ch.ID, ch.AttemptNumber)
		return &challenge.EvaluateResult{Status: challenge.StatusCompleted, AttemptNumber: ch.AttemptNumber}, nil

	default:
		if out.currentDay != ch.CurrentDay {
			_, err := tx.Exec(ctx, `
			UPDATE challenges SET current_day = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'active'
			`, ch.ID, out.currentDay)
			if err != nil {
				return nil, fmt.Errorf("failed to advance current day: %w", err)
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, fmt.Errorf("failed to commit day advance: %w", err)
			}
		}
		return &challenge.EvaluateResult{Status: challenge.StatusActive, AttemptNumber: ch.AttemptNumber}, nil
	}
}

func (s *ChallengeService) loadMetDays(ctx context.Context, tx pgx.Tx, challengeID uuid.UUID) (map[int]bool, error) {
	rows, err := tx.Query(ctx,
		`SELECT day_number, all_requirements_met FROM daily_logs WHERE challenge_id = $1`,
		challengeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily logs: %w", err)
	}
	defer rows.Close()

	met := make(map[int]bool)
	for rows.Next() {
		var day int
		var ok bool
		if err := rows.Scan(&day, &ok); err != nil {
			return nil, fmt.Errorf("failed to scan daily log: %w", err)
		}
		met[day] = ok
	}

	return met, rows.Err()
}

// applyFailure runs the whole reset as one transaction: mark the old
// attempt failed, fold the streak into lifetime stats, and create the
// replacement attempt starting today. The status guard means a concurrent
// evaluation that lost the row-lock race applies nothing.
func (s *ChallengeService) applyFailure(ctx context.Context, tx pgx.Tx, ch *challenge.Challenge, failedOnDay int, today string) (*challenge.EvaluateResult, error) {
	streak := failedOnDay - 1
	newAttempt := ch.AttemptNumber + 1

	ct, err := tx.Exec(ctx, `
	UPDATE challenges
	SET status = 'failed', failed_on_day = $2, updated_at = NOW()
	WHERE id = $1 AND status = 'active'
	`, ch.ID, failedOnDay)
	if err != nil {
		return nil, fmt.Errorf("failed to mark challenge failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Already handled by a concurrent evaluation.
		return &challenge.EvaluateResult{Status: challenge.StatusFailed, FailedOnDay: failedOnDay, AttemptNumber: newAttempt}, nil
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO lifetime_stats (user_id, attempt_number, total_restarts, longest_streak, updated_at)
	VALUES ($1, $2, 1, $3, NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		attempt_number = $2,
		total_restarts = lifetime_stats.total_restarts + 1,
		longest_streak = GREATEST(lifetime_stats.longest_streak, $3),
		updated_at = NOW()
	`, ch.UserID, newAttempt, streak)
	if err != nil {
		return nil, fmt.Errorf("failed to update lifetime stats: %w", err)
	}

	newID := uuid.New()
	_, err = tx.Exec(ctx, `
	INSERT INTO challenges (id, user_id, start_date, current_day, status, attempt_number, visibility, created_at, updated_at)
	VALUES ($1, $2, $3, 1, 'active', $4, $5, NOW(), NOW())
	`, newID, ch.UserID, today, newAttempt, ch.Visibility)
	if err != nil {
		return nil, fmt.Errorf("failed to create replacement challenge: %w", err)
	}

	// The replacement attempt keeps the same habit list.
	_, err = tx.Exec(ctx, `
	INSERT INTO habit_definitions (id, challenge_id, name, habit_type, target_count, is_hard, sort_order, created_at)
	SELECT gen_random_uuid(), $2, name, habit_type, target_count, is_hard, sort_order, NOW()
	FROM habit_definitions
	WHERE challenge_id = $1
	`, ch.ID, newID)
	if err != nil {
		return nil, fmt.Errorf("failed to copy habits to new attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reset: %w", err)
	}

	log.Printf("Challenge: %s failed on day %d (streak %d), attempt %d started as %s",
		ch.ID, failedOnDay, streak, newAttempt, newID)

	s.sendResetNotice(ch.UserID, failedOnDay, streak, newAttempt)

	return &challenge.EvaluateResult{
		Status:         challenge.StatusFailed,
		FailedOnDay:    failedOnDay,
		StreakReached:  streak,
		AttemptNumber:  newAttempt,
		NewChallengeID: &newID,
	}, nil
}

// sendResetNotice surfaces the reset to the user. It runs after the commit
// with its own deadline; a delivery failure only loses the push, never the
// reset itself.
func (s *ChallengeService) sendResetNotice(userID uuid.UUID, failedOnDay, streak, newAttempt int) {
	if s.notificationService == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.notificationService.CreateNotification(ctx, &notification.CreateNotificationRequest{
		UserID: userID,
		Type:   notification.NotificationChallengeReset,
		Title:  "Challenge reset",
		Message: fmt.Sprintf(
			"Day %d wasn't finished within the %d-day grace period. You reached a %d day streak. Attempt %d starts today.",
			failedOnDay, policy.GraceDays, streak, newAttempt),
		Data: map[string]any{
			"failed_on_day":  failedOnDay,
			"streak_reached": streak,
			"attempt_number": newAttempt,
		},
	})
	if err != nil {
		log.Printf("Challenge: failed to record reset notice for %s: %v", userID, err)
	}
}
