// workers/vip_expiry_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"bot-access-system/models"
	"bot-access-system/utils"

	"gorm.io/gorm"
)

// Notifier receives VIP-lapse events; the bot front-end turns them into a
// "your VIP ended" message. The default just logs.
type Notifier interface {
	NotifyVIPExpired(telegramID int64, expiredAt time.Time)
}

type LogNotifier struct{}

func (LogNotifier) NotifyVIPExpired(telegramID int64, expiredAt time.Time) {
	log.Printf("📣 VIP expired for %d at %s", telegramID, expiredAt.Format(time.RFC3339))
}

type VIPExpiryWorker struct {
	db       *gorm.DB
	clock    utils.Clock
	notifier Notifier

	lastSweep time.Time
}

func NewVIPExpiryWorker(db *gorm.DB, clock utils.Clock, notifier Notifier) *VIPExpiryWorker {
	return &VIPExpiryWorker{
		db:        db,
		clock:     clock,
		notifier:  notifier,
		lastSweep: clock.Now(),
	}
}

// PollVIPExpiries sweeps for accounts whose VIP window lapsed since the
// previous tick and hands them to the notifier.
func PollVIPExpiries(ctx context.Context, w *VIPExpiryWorker, interval time.Duration) {
	log.Println("🔁 Starting VIP expiry poller…")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("VIP expiry poller stopped")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *VIPExpiryWorker) sweep() {
	now := w.clock.Now()

	var lapsed []models.Account
	err := w.db.Where("vip_until IS NOT NULL AND vip_until > ? AND vip_until <= ?", w.lastSweep, now).
		Find(&lapsed).Error
	if err != nil {
		log.Printf("❌ VIP expiry sweep failed: %v", err)
		return
	}

	for _, acc := range lapsed {
		w.notifier.NotifyVIPExpired(acc.TelegramID, *acc.VIPUntil)
	}
	w.lastSweep = now
}
