// services/scheduler.go
package services

import (
	"log"
	"time"

	"skill-arena/models"

	"github.com/go-co-op/gocron/v2"
)

// StartExpiryScheduler cancels UPCOMING competitions that never started
// within maxAge, refunding every paid participant. Runs every minute.
func (s *LifecycleService) StartExpiryScheduler(maxAge time.Duration) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("❌ [Scheduler] init failed, expiry job not running: %v", err)
		return
	}
	sched.Start()

	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			s.expireStale(maxAge)
		}),
	)
	if err != nil {
		log.Printf("❌ [Scheduler] failed to schedule expiry job: %v", err)
	}
}

// expireStale is one sweep of the expiry job.
func (s *LifecycleService) expireStale(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	var stale []models.Competition
	err := s.DB.Where("status = ? AND created_at <= ?", models.CompetitionStatusUpcoming, cutoff).
		Find(&stale).Error
	if err != nil {
		log.Printf("[Scheduler] DB error: %v", err)
		return
	}

	for _, comp := range stale {
		if err := s.Cancel(comp.Code, "expired before starting"); err != nil {
			log.Printf("[Scheduler] Failed to expire competition %s: %v", comp.Code, err)
			continue
		}
		log.Printf("✅ Auto-canceled stale competition: %s (%s)", comp.Title, comp.Code)
		if s.Hub != nil {
			s.Hub.BroadcastStatus(comp.Code, models.CompetitionStatusCanceled)
		}
	}
}
