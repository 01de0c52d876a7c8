package worker

// session_sweeper.go
// Background goroutine that deletes session rows which expired or were
// revoked longer ago than the retention window.  Validation already rejects
// such sessions; the sweeper only keeps the table small.

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// StaleSessionDeleter is implemented by repository.SessionRepo.
type StaleSessionDeleter interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweeperConfig holds the dependencies of the session sweeper.
type SweeperConfig struct {
	Sessions  StaleSessionDeleter
	Interval  time.Duration
	Retention time.Duration
	Swept     prometheus.Counter // optional
	Now       func() time.Time   // defaults to time.Now
}

// StartSessionSweeper runs one sweep per Interval until ctx is cancelled.
func StartSessionSweeper(ctx context.Context, cfg SweeperConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("session_sweeper: started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("session_sweeper: shutting down")
				return
			case <-ticker.C:
				sweepOnce(ctx, cfg)
			}
		}
	}()
}

func sweepOnce(ctx context.Context, cfg SweeperConfig) int64 {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cfg.Now().UTC().Add(-cfg.Retention)
	n, err := cfg.Sessions.DeleteStale(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("session_sweeper: delete failed")
		return 0
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("session_sweeper: removed stale sessions")
		if cfg.Swept != nil {
			cfg.Swept.Add(float64(n))
		}
	}
	return n
}
