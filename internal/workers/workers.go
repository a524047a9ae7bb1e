package workers

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"seventyFiveAPI/internal/types/challenge"
	"seventyFiveAPI/services"
)

// sweepInterval bounds how stale a challenge can get for a user who never
// opens the app: a missed day is detected within one interval of its grace
// period elapsing.
const sweepInterval = 4 * time.Hour

// Each pass must finish well inside the interval; this is a generous cap.
const sweepTimeout = 30 * time.Minute

var (
	sweepRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_sweep_runs_total",
			Help: "Total number of completed sweep passes",
		},
	)
	sweepEvalFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_sweep_eval_failures_total",
			Help: "Evaluations that errored during a sweep pass",
		},
	)
	sweepResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_sweep_resets_total",
			Help: "Challenges reset by the sweep",
		},
	)
	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "challenge_sweep_duration_seconds",
			Help:    "Duration of sweep passes",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// InitMetrics registers the sweep metrics. Call this from main.go
func InitMetrics() {
	prometheus.MustRegister(sweepRunsTotal)
	prometheus.MustRegister(sweepEvalFailuresTotal)
	prometheus.MustRegister(sweepResetsTotal)
	prometheus.MustRegister(sweepDuration)
}

// StartChallengeSweep runs the periodic pass over every active challenge so
// that no challenge is left stale when its owner never revisits the app.
// The first pass runs immediately to catch up after downtime. Cancel ctx to
// stop the worker.
func StartChallengeSweep(ctx context.Context, challengeService *services.ChallengeService) {
	go func() {
		runSweep(challengeService)

		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("Sweep: worker stopped")
				return
			case <-ticker.C:
				runSweep(challengeService)
			}
		}
	}()
}

func runSweep(challengeService *services.ChallengeService) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()

	refs, err := challengeService.ListActiveChallenges(ctx)
	if err != nil {
		log.Printf("Sweep: failed to list active challenges: %v", err)
		sweepEvalFailuresTotal.Inc()
		return
	}

	var resets, failures int
	for _, ref := range refs {
		result, err := challengeService.Evaluate(ctx, ref.ID, ref.Timezone)
		if err != nil {
			// One challenge's error never aborts the pass over the rest.
			log.Printf("Sweep: failed to evaluate challenge %s: %v", ref.ID, err)
			failures++
			sweepEvalFailuresTotal.Inc()
			continue
		}
		if result.Status == challenge.StatusFailed && result.NewChallengeID != nil {
			resets++
			sweepResetsTotal.Inc()
		}
	}

	sweepRunsTotal.Inc()
	sweepDuration.Observe(time.Since(start).Seconds())
	log.Printf("Sweep: evaluated %d active challenges in %s (%d resets, %d errors)",
		len(refs), time.Since(start).Round(time.Millisecond), resets, failures)
}
