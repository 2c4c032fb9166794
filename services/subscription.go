// services/subscription.go
package services

import (
	"errors"
	"log"
	"time"

	"bot-access-system/models"
	"bot-access-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionService struct {
	DB    *gorm.DB
	Clock utils.Clock
}

func NewSubscriptionService(db *gorm.DB, clock utils.Clock) *SubscriptionService {
	return &SubscriptionService{DB: db, Clock: clock}
}

// IsVIP reports whether the account holds an active VIP window at now.
// Pure function of (vipUntil, now) — the single place this comparison lives.
func (s *SubscriptionService) IsVIP(acc *models.Account, now time.Time) bool {
	return acc != nil && acc.VIPUntil != nil && acc.VIPUntil.After(now)
}

// ExtendVIP pushes the account's VIP expiry out by days, stacking on top of
// any remaining window: base is the later of (current expiry, now), so
// sequential purchases are additive and never shorten entitlement.
// Runs inside the caller's transaction.
func (s *SubscriptionService) ExtendVIP(tx *gorm.DB, telegramID int64, now time.Time, days int) (time.Time, error) {
	var acc models.Account
	if err := lockForUpdate(tx).Where("telegram_id = ?", telegramID).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, ErrAccountNotFound
		}
		return time.Time{}, err
	}

	base := now
	if acc.VIPUntil != nil && acc.VIPUntil.After(now) {
		base = *acc.VIPUntil
	}
	until := base.AddDate(0, 0, days)

	if err := tx.Model(&models.Account{}).
		Where("telegram_id = ?", telegramID).
		Update("vip_until", until).Error; err != nil {
		return time.Time{}, err
	}
	return until, nil
}

// OnPaymentConfirmed is the sole entry point for payment-success events.
// The payload dedupes webhook redelivery: a payload seen before is a no-op
// that reports the already-stored expiry.
func (s *SubscriptionService) OnPaymentConfirmed(telegramID int64, payload string, stars, planDays int) (time.Time, error) {
	var until time.Time
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		payment := models.Payment{
			ID:         uuid.NewString(),
			TelegramID: telegramID,
			Payload:    payload,
			Stars:      stars,
			PlanDays:   planDays,
			Status:     models.PaymentStatusPaid,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payload"}},
			DoNothing: true,
		}).Create(&payment)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Redelivered event: report current state, charge nothing twice.
			var acc models.Account
			if err := tx.Where("telegram_id = ?", telegramID).First(&acc).Error; err != nil {
				return err
			}
			if acc.VIPUntil != nil {
				until = *acc.VIPUntil
			}
			log.Printf("[SUBSCRIPTION] Duplicate payment payload %s for %d ignored", payload, telegramID)
			return nil
		}

		var err error
		until, err = s.ExtendVIP(tx, telegramID, s.Clock.Now(), planDays)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	log.Printf("[SUBSCRIPTION] VIP for %d now until %s (%d stars, %d days)", telegramID, until.Format(time.RFC3339), stars, planDays)
	return until, nil
}

// GrantVIP is the admin grant (no payment attached), same stacking math.
func (s *SubscriptionService) GrantVIP(telegramID int64, days int) (time.Time, error) {
	var until time.Time
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		until, err = s.ExtendVIP(tx, telegramID, s.Clock.Now(), days)
		return err
	})
	return until, err
}
