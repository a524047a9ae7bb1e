package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"seventyFiveAPI/internal/calendar"
	"seventyFiveAPI/internal/types/challenge"
	"seventyFiveAPI/internal/types/dailylog"
	"seventyFiveAPI/middleware"
	"seventyFiveAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	dailyLogService  *services.DailyLogService
	habitService     *services.HabitService
	userService      *services.UserService
}

func NewChallengeHandler(
	challengeService *services.ChallengeService,
	dailyLogService *services.DailyLogService,
	habitService *services.HabitService,
	userService *services.UserService,
) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		dailyLogService:  dailyLogService,
		habitService:     habitService,
		userService:      userService,
	}
}

type challengeView struct {
	Challenge *challenge.Challenge `json:"challenge"`
	Today     string               `json:"today"`
	TodayDay  int                  `json:"today_day"`
}

func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req challenge.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ch, err := h.challengeService.CreateChallenge(ctx, clerkID, &req)
	if err != nil {
		if errors.Is(err, services.ErrChallengeExists) {
			respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		if errors.Is(err, services.ErrNoHabits) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, ch)
}

// GetChallenge serves the challenge view. A best-effort status check runs
// first so a stale challenge corrects itself on visit; if that check fails
// the view is served from stored state and the sweep remains the backstop.
func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	ch, err := h.challengeService.GetActiveChallenge(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveChallenge) {
			respondWithError(w, http.StatusNotFound, "No challenge yet")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if ch.Status == challenge.StatusActive {
		if result, err := h.challengeService.Evaluate(ctx, ch.ID, u.Timezone); err != nil {
			// Check incomplete, not a user-facing error.
			log.Printf("Challenge: lazy status check failed for %s: %v", ch.ID, err)
		} else {
			middleware.RecordEvaluation("lazy", string(result.Status))
			if result.Status != challenge.StatusActive {
				// State changed under us; re-read so the view is current.
				if fresh, err := h.challengeService.GetActiveChallenge(ctx, clerkID); err == nil {
					ch = fresh
				}
			}
		}
	}

	today, err := calendar.Today(u.Timezone)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	todayDay, err := calendar.DayNumber(ch.StartDate, today)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, &challengeView{Challenge: ch, Today: today, TodayDay: todayDay})
}

// CheckChallenge is the explicit per-visit status check the client fires
// once per mount. The result carries everything the reset notice shows.
func (h *ChallengeHandler) CheckChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	ch, err := h.challengeService.GetActiveChallenge(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveChallenge) {
			respondWithError(w, http.StatusNotFound, "No challenge yet")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := h.challengeService.Evaluate(ctx, ch.ID, u.Timezone)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	middleware.RecordEvaluation("check", string(result.Status))
	respondWithJSON(w, http.StatusOK, result)
}

func (h *ChallengeHandler) GetDays(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	views, err := h.dailyLogService.ListDays(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveChallenge) {
			respondWithError(w, http.StatusNotFound, "No active challenge")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, views)
}

func (h *ChallengeHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	day, err := strconv.Atoi(mux.Vars(r)["day"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid day number")
		return
	}

	view, err := h.dailyLogService.GetDay(ctx, clerkID, day)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBadDay):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrNoActiveChallenge):
			respondWithError(w, http.StatusNotFound, "No active challenge")
		default:
			respondWithError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *ChallengeHandler) UpdateDay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	day, err := strconv.Atoi(mux.Vars(r)["day"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid day number")
		return
	}

	var req dailylog.UpdateDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dl, err := h.dailyLogService.UpdateDay(ctx, clerkID, day, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBadDay), errors.Is(err, services.ErrFutureDay):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrDayLocked):
			respondWithError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, services.ErrNoActiveChallenge):
			respondWithError(w, http.StatusNotFound, "No active challenge")
		default:
			respondWithError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, dl)
}

func (h *ChallengeHandler) GetHabits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	habits, err := h.habitService.GetActiveHabitDefinitions(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveChallenge) {
			respondWithError(w, http.StatusNotFound, "No active challenge")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, habits)
}
