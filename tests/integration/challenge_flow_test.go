package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seventyFiveAPI/internal/calendar"
	"seventyFiveAPI/internal/types/challenge"
	"seventyFiveAPI/internal/types/dailylog"
	"seventyFiveAPI/internal/types/user"
	"seventyFiveAPI/services"
	"seventyFiveAPI/tests/helpers"
)

func createTestUser(t *testing.T, userService *services.UserService) *user.User {
	clerkID := fmt.Sprintf("user_test_%d", time.Now().UnixNano())
	u, err := userService.CreateUser(context.Background(), &user.CreateUserRequest{
		ClerkID:  clerkID,
		Email:    fmt.Sprintf("test%d@example.com", time.Now().UnixNano()),
		Username: "testchallenger",
	})
	require.NoError(t, err)
	return u
}

func startTestChallenge(t *testing.T, challengeService *services.ChallengeService, clerkID string) *challenge.Challenge {
	ch, err := challengeService.CreateChallenge(context.Background(), clerkID, &challenge.CreateChallengeRequest{
		Habits: []challenge.NewHabit{
			{Name: "workout", HabitType: "task", IsHard: true},
			{Name: "drink water", HabitType: "counter", TargetCount: 4, IsHard: true},
			{Name: "read", HabitType: "task", IsHard: false},
		},
	})
	require.NoError(t, err)
	return ch
}

// backdateChallenge moves the start date k days into the past so that today
// lands on day k+1.
func backdateChallenge(t *testing.T, pool *pgxpool.Pool, challengeID uuid.UUID, k int) {
	today, err := calendar.Today("UTC")
	require.NoError(t, err)
	start, err := calendar.AddDays(today, -k)
	require.NoError(t, err)
	_, err = pool.Exec(context.Background(),
		`UPDATE challenges SET start_date = $2 WHERE id = $1`, challengeID, start)
	require.NoError(t, err)
}

func seedMetDay(t *testing.T, pool *pgxpool.Pool, challengeID uuid.UUID, day int) {
	_, err := pool.Exec(context.Background(), `
	INSERT INTO daily_logs (id, challenge_id, day_number, entries, all_requirements_met, completed_at, created_at, updated_at)
	VALUES ($1, $2, $3, '{}', true, NOW(), NOW(), NOW())
	ON CONFLICT (challenge_id, day_number) DO UPDATE SET all_requirements_met = true
	`, uuid.New(), challengeID, day)
	require.NoError(t, err)
}

func countChallenges(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, status challenge.Status) int {
	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM challenges WHERE user_id = $1 AND status = $2`, userID, status).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestEvaluateOnTrack(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)

	u := createTestUser(t, userService)
	ch := startTestChallenge(t, challengeService, u.ClerkID)

	// today is day 5, days 1-4 all complete
	backdateChallenge(t, pool, ch.ID, 4)
	for d := 1; d <= 4; d++ {
		seedMetDay(t, pool, ch.ID, d)
	}

	result, err := challengeService.Evaluate(context.Background(), ch.ID, u.Timezone)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, result.Status)

	fresh, err := challengeService.GetActiveChallenge(context.Background(), u.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, fresh.ID)
	assert.Equal(t, 5, fresh.CurrentDay)
}

func TestEvaluateGracePeriodFailure(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)

	u := createTestUser(t, userService)
	ch := startTestChallenge(t, challengeService, u.ClerkID)

	// today is day 6; day 3 was never logged and its grace (day 5) elapsed
	backdateChallenge(t, pool, ch.ID, 5)
	for _, d := range []int{1, 2, 4, 5} {
		seedMetDay(t, pool, ch.ID, d)
	}

	result, err := challengeService.Evaluate(context.Background(), ch.ID, u.Timezone)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusFailed, result.Status)
	assert.Equal(t, 3, result.FailedOnDay)
	assert.Equal(t, 2, result.StreakReached)
	assert.Equal(t, 2, result.AttemptNumber)
	require.NotNil(t, result.NewChallengeID)

	// the replacement is the one active challenge, starting today at day 1
	fresh, err := challengeService.GetActiveChallenge(context.Background(), u.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, *result.NewChallengeID, fresh.ID)
	assert.Equal(t, 2, fresh.AttemptNumber)
	assert.Equal(t, 1, fresh.CurrentDay)

	today, err := calendar.Today(u.Timezone)
	require.NoError(t, err)
	assert.Equal(t, today, fresh.StartDate)

	assert.Equal(t, 1, countChallenges(t, pool, u.ID, challenge.StatusActive))
	assert.Equal(t, 1, countChallenges(t, pool, u.ID, challenge.StatusFailed))

	ls, err := userService.GetLifetimeStats(context.Background(), u.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 1, ls.TotalRestarts)
	assert.Equal(t, 2, ls.LongestStreak)
	assert.Equal(t, 2, ls.AttemptNumber)

	// the replacement keeps the habit list
	var habitCount int
	err = pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM habit_definitions WHERE challenge_id = $1`, fresh.ID).Scan(&habitCount)
	require.NoError(t, err)
	assert.Equal(t, 3, habitCount)
}

func TestEvaluateWithinGrace(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)

	u := createTestUser(t, userService)
	ch := startTestChallenge(t, challengeService, u.ClerkID)

	// today is day 5; day 3 is missing but its grace runs through today
	backdateChallenge(t, pool, ch.ID, 4)
	for _, d := range []int{1, 2, 4} {
		seedMetDay(t, pool, ch.ID, d)
	}

	result, err := challengeService.Evaluate(context.Background(), ch.ID, u.Timezone)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, result.Status)
	assert.Equal(t, 1, result.AttemptNumber)
	assert.Equal(t, 1, countChallenges(t, pool, u.ID, challenge.StatusActive))
	assert.Equal(t, 0, countChallenges(t, pool, u.ID, challenge.StatusFailed))
}

func TestEvaluateCompletion(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)

	u := createTestUser(t, userService)
	ch := startTestChallenge(t, challengeService, u.ClerkID)

	backdateChallenge(t, pool, ch.ID, 74)
	for d := 1; d <= 75; d++ {
		seedMetDay(t, pool, ch.ID, d)
	}

	result, err := challengeService.Evaluate(context.Background(), ch.ID, u.Timezone)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, result.Status)

	// completed is terminal; evaluating again changes nothing
	again, err := challengeService.Evaluate(context.Background(), ch.ID, u.Timezone)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, again.Status)
	assert.Equal(t, 0, countChallenges(t, pool, u.ID, challenge.StatusActive))
	assert.Equal(t, 1, countChallenges(t, pool, u.ID, challenge.StatusCompleted))
}

func TestEvaluateIdempotentAfterFailure(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)

	u := createTestUser(t, userService)
	ch := startTestChallenge(t, challengeService, u.ClerkID)

	backdateChallenge(t, pool, ch.ID, 5)
	seedMetDay(t, pool, ch.ID, 1)

	first, err := challengeService.Evaluate(context.Background(), ch.ID, u.Timezone)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusFailed, first.Status)
	assert.Equal(t, 2, first.FailedOnDay)

	// re-evaluating the failed challenge is a no-op
	second, err := challengeService.Evaluate(context.Background(), ch.ID, u.Timezone)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusFailed, second.Status)
	assert.Nil(t, second.NewChallengeID)

	assert.Equal(t, 1, countChallenges(t, pool, u.ID, challenge.StatusActive))

	ls, err := userService.GetLifetimeStats(context.Background(), u.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 1, ls.TotalRestarts)
}

func TestEvaluateConcurrentSingleReset(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)

	u := createTestUser(t, userService)
	ch := startTestChallenge(t, challengeService, u.ClerkID)

	// the lazy check and the sweep racing on a just-expired challenge
	backdateChallenge(t, pool, ch.ID, 5)
	seedMetDay(t, pool, ch.ID, 1)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := challengeService.Evaluate(context.Background(), ch.ID, u.Timezone)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// exactly one replacement challenge and one restart counted
	assert.Equal(t, 1, countChallenges(t, pool, u.ID, challenge.StatusActive))
	assert.Equal(t, 1, countChallenges(t, pool, u.ID, challenge.StatusFailed))

	ls, err := userService.GetLifetimeStats(context.Background(), u.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 1, ls.TotalRestarts)
	assert.Equal(t, 2, ls.AttemptNumber)
}

func TestDailyLogEditabilityWindow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)
	dailyLogService := services.NewDailyLogService(pool)

	u := createTestUser(t, userService)
	ch := startTestChallenge(t, challengeService, u.ClerkID)

	// today is day 6: day 1 is locked, day 7 is the future, day 4 is open
	backdateChallenge(t, pool, ch.ID, 5)

	_, err := dailyLogService.UpdateDay(context.Background(), u.ClerkID, 1, &dailylog.UpdateDayRequest{})
	assert.ErrorIs(t, err, services.ErrDayLocked)

	_, err = dailyLogService.UpdateDay(context.Background(), u.ClerkID, 7, &dailylog.UpdateDayRequest{})
	assert.ErrorIs(t, err, services.ErrFutureDay)

	_, err = dailyLogService.UpdateDay(context.Background(), u.ClerkID, 0, &dailylog.UpdateDayRequest{})
	assert.ErrorIs(t, err, services.ErrBadDay)

	habits, err := services.NewHabitService(pool).GetActiveHabitDefinitions(context.Background(), u.ClerkID)
	require.NoError(t, err)
	require.Len(t, habits, 3)

	entries := map[string]dailylog.Entry{}
	for _, h := range habits {
		if h.HabitType == "counter" {
			entries[h.ID.String()] = dailylog.Entry{Count: h.TargetCount}
		} else {
			entries[h.ID.String()] = dailylog.Entry{Completed: true}
		}
	}

	dl, err := dailyLogService.UpdateDay(context.Background(), u.ClerkID, 4, &dailylog.UpdateDayRequest{Entries: entries})
	require.NoError(t, err)
	assert.True(t, dl.AllRequirementsMet)
	require.NotNil(t, dl.CompletedAt)

	// dropping the counter below target flips the day back to unmet
	for _, h := range habits {
		if h.HabitType == "counter" {
			entries[h.ID.String()] = dailylog.Entry{Count: h.TargetCount - 1}
		}
	}
	dl, err = dailyLogService.UpdateDay(context.Background(), u.ClerkID, 4, &dailylog.UpdateDayRequest{Entries: entries})
	require.NoError(t, err)
	assert.False(t, dl.AllRequirementsMet)
	assert.Nil(t, dl.CompletedAt)
}

func TestSecondActiveChallengeRejected(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)

	u := createTestUser(t, userService)
	startTestChallenge(t, challengeService, u.ClerkID)

	_, err := challengeService.CreateChallenge(context.Background(), u.ClerkID, &challenge.CreateChallengeRequest{
		Habits: []challenge.NewHabit{{Name: "workout", IsHard: true}},
	})
	assert.ErrorIs(t, err, services.ErrChallengeExists)
}
