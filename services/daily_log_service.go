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
	"seventyFiveAPI/internal/policy"
	"seventyFiveAPI/internal/types/dailylog"
	"seventyFiveAPI/internal/types/habit"
)

var (
	ErrDayLocked = errors.New("day is no longer editable")
	ErrFutureDay = errors.New("cannot log a future day")
	ErrBadDay    = errors.New("day number out of range")
)

type DailyLogService struct {
	db *pgxpool.Pool
}

func NewDailyLogService(db *pgxpool.Pool) *DailyLogService {
	return &DailyLogService{db: db}
}

// activeChallengeCtx is the slice of challenge state the log paths need:
// which challenge, where its days fall on the calendar, and what day the
// owner is on right now.
type activeChallengeCtx struct {
	challengeID uuid.UUID
	startDate   string
	todayDay    int
}

func (s *DailyLogService) activeChallenge(ctx context.Context, clerkID string) (*activeChallengeCtx, error) {
	var challengeID uuid.UUID
	var startDate, tz string
	err := s.db.QueryRow(ctx, `
	SELECT c.id, c.start_date::text, u.timezone
	FROM challenges c
	JOIN users u ON u.id = c.user_id
	WHERE u.clerk_id = $1 AND c.status = 'active'
	`, clerkID).Scan(&challengeID, &startDate, &tz)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveChallenge
		}
		return nil, fmt.Errorf("failed to load active challenge: %w", err)
	}

	today, err := calendar.Today(tz)
	if err != nil {
		return nil, err
	}
	todayDay, err := calendar.DayNumber(startDate, today)
	if err != nil {
		return nil, err
	}

	return &activeChallengeCtx{challengeID: challengeID, startDate: startDate, todayDay: todayDay}, nil
}

// UpdateDay mutates one day's log. Creation is lazy: the row appears the
// first time the user touches the day. Locked and future days are rejected
// here, before anything is written. allRequirementsMet and completedAt are
// recomputed on every mutation.
func (s *DailyLogService) UpdateDay(ctx context.Context, clerkID string, day int, req *dailylog.UpdateDayRequest) (*dailylog.DailyLog, error) {
	if day < 1 || day > policy.ProgramLength {
		return nil, ErrBadDay
	}

	cc, err := s.activeChallenge(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if policy.IsFuture(day, cc.todayDay) {
		return nil, ErrFutureDay
	}
	if !policy.IsEditable(day, cc.todayDay) {
		return nil, ErrDayLocked
	}

	habits, err := s.habitDefinitions(ctx, cc.challengeID)
	if err != nil {
		return nil, err
	}

	entries := req.Entries
	if entries == nil {
		entries = map[string]dailylog.Entry{}
	}

	allMet := allRequirementsMet(habits, entries)
	var completedAt *time.Time
	if allMet {
		now := time.Now()
		completedAt = &now
	}

	query := `
	INSERT INTO daily_logs (id, challenge_id, day_number, entries, all_requirements_met, completed_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	ON CONFLICT (challenge_id, day_number) DO UPDATE SET
		entries = $4,
		all_requirements_met = $5,
		completed_at = $6,
		updated_at = NOW()
	RETURNING id, challenge_id, day_number, entries, all_requirements_met, completed_at, created_at, updated_at
	`

	dl := &dailylog.DailyLog{}
	err = s.db.QueryRow(ctx, query,
		uuid.New(), cc.challengeID, day, entries, allMet, completedAt,
	).Scan(
		&dl.ID, &dl.ChallengeID, &dl.DayNumber, &dl.Entries,
		&dl.AllRequirementsMet, &dl.CompletedAt, &dl.CreatedAt, &dl.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save daily log: %w", err)
	}

	return dl, nil
}

// GetDay returns the view of one day. A day the user never touched has no
// stored log; the view is still served so the UI can render an empty day.
func (s *DailyLogService) GetDay(ctx context.Context, clerkID string, day int) (*dailylog.DayView, error) {
	if day < 1 || day > policy.ProgramLength {
		return nil, ErrBadDay
	}

	cc, err := s.activeChallenge(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	date, err := calendar.DateForDay(cc.startDate, day)
	if err != nil {
		return nil, err
	}

	view := &dailylog.DayView{
		DayNumber: day,
		Date:      date,
		Editable:  !policy.IsFuture(day, cc.todayDay) && policy.IsEditable(day, cc.todayDay),
	}

	dl := &dailylog.DailyLog{}
	err = s.db.QueryRow(ctx, `
	SELECT id, challenge_id, day_number, entries, all_requirements_met, completed_at, created_at, updated_at
	FROM daily_logs
	WHERE challenge_id = $1 AND day_number = $2
	`, cc.challengeID, day).Scan(
		&dl.ID, &dl.ChallengeID, &dl.DayNumber, &dl.Entries,
		&dl.AllRequirementsMet, &dl.CompletedAt, &dl.CreatedAt, &dl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return view, nil
		}
		return nil, fmt.Errorf("failed to get daily log: %w", err)
	}

	view.Log = dl
	return view, nil
}

// ListDays returns the day views from day 1 through today, newest last.
func (s *DailyLogService) ListDays(ctx context.Context, clerkID string) ([]*dailylog.DayView, error) {
	cc, err := s.activeChallenge(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
	SELECT id, challenge_id, day_number, entries, all_requirements_met, completed_at, created_at, updated_at
	FROM daily_logs
	WHERE challenge_id = $1
	ORDER BY day_number
	`, cc.challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily logs: %w", err)
	}
	defer rows.Close()

	logsByDay := make(map[int]*dailylog.DailyLog)
	for rows.Next() {
		dl := &dailylog.DailyLog{}
		if err := rows.Scan(
			&dl.ID, &dl.ChallengeID, &dl.DayNumber, &dl.Entries,
			&dl.AllRequirementsMet, &dl.CompletedAt, &dl.CreatedAt, &dl.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily log: %w", err)
		}
		logsByDay[dl.DayNumber] = dl
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	last := cc.todayDay
	if last > policy.ProgramLength {
		last = policy.ProgramLength
	}

	views := []*dailylog.DayView{}
	for day := 1; day <= last; day++ {
		date, err := calendar.DateForDay(cc.startDate, day)
		if err != nil {
			return nil, err
		}
		views = append(views, &dailylog.DayView{
			DayNumber: day,
			Date:      date,
			Editable:  policy.IsEditable(day, cc.todayDay),
			Log:       logsByDay[day],
		})
	}

	return views, nil
}

func (s *DailyLogService) habitDefinitions(ctx context.Context, challengeID uuid.UUID) ([]*habit.Habit, error) {
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

// allRequirementsMet is the completion predicate for one day: every hard
// habit has a satisfying entry. A missing entry is non-completion, and soft
// habits never gate the day.
func allRequirementsMet(habits []*habit.Habit, entries map[string]dailylog.Entry) bool {
	for _, h := range habits {
		if !h.IsHard {
			continue
		}
		e, ok := entries[h.ID.String()]
		if !ok {
			return false
		}
		switch h.HabitType {
		case habit.TypeCounter:
			if e.Count < h.TargetCount {
				return false
			}
		default:
			if !e.Completed {
				return false
			}
		}
	}
	return true
}
