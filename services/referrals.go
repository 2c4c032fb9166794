// services/referrals.go
package services

import (
	"errors"
	"log"

	"bot-access-system/models"
	"bot-access-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardOutcome reports what GrantIfDue handed out, for the collaborator
// that messages the referrer.
type RewardOutcome struct {
	AlreadyGranted bool `json:"already_granted"`
	CreditsGranted int  `json:"credits_granted"`
	VIPDaysGranted int  `json:"vip_days_granted"`
	TotalReferrals int  `json:"total_referrals"` // completed referrals including this one
}

type ReferralService struct {
	DB    *gorm.DB
	Clock utils.Clock
	Cfg   Config
	Subs  *SubscriptionService
}

func NewReferralService(db *gorm.DB, clock utils.Clock, cfg Config, subs *SubscriptionService) *ReferralService {
	return &ReferralService{DB: db, Clock: clock, Cfg: cfg, Subs: subs}
}

// RegisterReferral records the referrer → referred edge. First writer wins:
// a second inviter for the same account is rejected, as is self-referral.
// Registration alone grants nothing — rewards wait for the referred friend
// to fully unlock access.
func (s *ReferralService) RegisterReferral(referrerID, referredID int64) (bool, error) {
	if referrerID == referredID {
		return false, nil
	}

	applied := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Lock both accounts in ascending ID order to keep concurrent
		// registrations deadlock-free.
		for _, id := range orderedPair(referrerID, referredID) {
			var acc models.Account
			if err := lockForUpdate(tx).Where("telegram_id = ?", id).First(&acc).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrAccountNotFound
				}
				return err
			}
		}

		// First-writer-wins guard on the referred account.
		res := tx.Model(&models.Account{}).
			Where("telegram_id = ? AND referred_by IS NULL", referredID).
			Update("referred_by", referrerID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already referred by someone, permanent
		}

		edge := models.Referral{
			ID:         uuid.NewString(),
			ReferrerID: referrerID,
			ReferredID: referredID,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referred_id"}},
			DoNothing: true,
		}).Create(&edge).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Account{}).
			Where("telegram_id = ?", referrerID).
			Update("referral_count", gorm.Expr("referral_count + 1")).Error; err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		log.Printf("[REFERRAL] Edge recorded: %d → %d", referrerID, referredID)
	}
	return applied, nil
}

// GrantIfDue pays the referrer for a referred friend who just unlocked full
// access: a flat credit grant, plus a VIP extension when this completion is
// the referrer's Kth. At most once per referred account — the granted flag
// flips in the same transaction, so a replayed unlock event is a no-op.
func (s *ReferralService) GrantIfDue(referrerID, referredID int64) (RewardOutcome, error) {
	var out RewardOutcome
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for _, id := range orderedPair(referrerID, referredID) {
			var acc models.Account
			if err := lockForUpdate(tx).Where("telegram_id = ?", id).First(&acc).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrAccountNotFound
				}
				return err
			}
		}

		var edge models.Referral
		if err := tx.Where("referrer_id = ? AND referred_id = ?", referrerID, referredID).
			First(&edge).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReferralNotFound
			}
			return err
		}
		if edge.RewardGranted {
			out = RewardOutcome{AlreadyGranted: true}
			return nil
		}

		// Completed referrals so far; this one makes granted+1.
		var granted int64
		if err := tx.Model(&models.Referral{}).
			Where("referrer_id = ? AND reward_granted = ?", referrerID, true).
			Count(&granted).Error; err != nil {
			return err
		}
		total := int(granted) + 1

		credits := s.Cfg.ReferralBonusCredits
		if err := tx.Model(&models.Account{}).
			Where("telegram_id = ?", referrerID).
			Update("bonus_credits", gorm.Expr("bonus_credits + ?", credits)).Error; err != nil {
			return err
		}

		vipDays := 0
		if s.Cfg.ReferralMilestoneEvery > 0 && total%s.Cfg.ReferralMilestoneEvery == 0 {
			vipDays = s.Cfg.ReferralMilestoneVIPDays
			if _, err := s.Subs.ExtendVIP(tx, referrerID, s.Clock.Now(), vipDays); err != nil {
				return err
			}
		}

		now := s.Clock.Now()
		if err := tx.Model(&models.Referral{}).
			Where("id = ?", edge.ID).
			Updates(map[string]interface{}{
				"reward_granted":   true,
				"awarded_at":       now,
				"credits_awarded":  credits,
				"vip_days_awarded": vipDays,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Account{}).
			Where("telegram_id = ?", referredID).
			Update("referral_reward_granted", true).Error; err != nil {
			return err
		}

		out = RewardOutcome{
			CreditsGranted: credits,
			VIPDaysGranted: vipDays,
			TotalReferrals: total,
		}
		return nil
	})
	if err != nil {
		return RewardOutcome{}, err
	}
	if !out.AlreadyGranted {
		log.Printf("[REFERRAL] Reward for %d: +%d credits, +%d VIP days (referral #%d, friend %d)",
			referrerID, out.CreditsGranted, out.VIPDaysGranted, out.TotalReferrals, referredID)
	}
	return out, nil
}

func orderedPair(a, b int64) [2]int64 {
	if a <= b {
		return [2]int64{a, b}
	}
	return [2]int64{b, a}
}
