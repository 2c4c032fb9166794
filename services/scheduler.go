// services/scheduler.go
package services

import (
	"log"
	"time"

	"bot-access-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartMaintenanceScheduler expires stale verification submissions so the
// moderator queue stays finite. Runs off the request path.
func (s *GateService) StartMaintenanceScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every hour: expire pending requests past their TTL
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			cutoff := s.Clock.Now().Add(-s.Cfg.VerificationTTL)

			var stale []models.VerificationRequest
			err := s.DB.Where("status = ? AND created_at <= ?", models.VerificationStatusPending, cutoff).
				Find(&stale).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, vr := range stale {
				if err := s.DB.Model(&models.VerificationRequest{}).
					Where("id = ?", vr.ID).
					Update("status", models.VerificationStatusExpired).Error; err != nil {
					log.Printf("[Scheduler] Failed to expire request %s: %v", vr.ID, err)
					continue
				}
				if err := s.DB.Model(&models.Account{}).
					Where("telegram_id = ? AND secondary_verified = ?", vr.TelegramID, false).
					Update("secondary_pending", false).Error; err != nil {
					log.Printf("[Scheduler] Failed to clear pending flag for %d: %v", vr.TelegramID, err)
				} else {
					log.Printf("[Scheduler] Expired verification request %s (user %d)", vr.ID, vr.TelegramID)
				}
			}
		}),
	)
}
