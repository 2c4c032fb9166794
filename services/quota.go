// services/quota.go
package services

import (
	"errors"
	"fmt"

	"bot-access-system/models"
	"bot-access-system/utils"

	"gorm.io/gorm"
)

// CostKind says what a granted action is paid with.
type CostKind string

const (
	CostBonus CostKind = "bonus" // referral credit, always spent first
	CostQuota CostKind = "quota" // today's free/VIP allowance
	CostNone  CostKind = "none"
)

// QuotaDecision is the outcome of an allowance check. Denial is a decision,
// not an error.
type QuotaDecision struct {
	Allowed      bool     `json:"allowed"`
	Cost         CostKind `json:"cost"`
	Used         int      `json:"used"`
	Limit        int      `json:"limit"`
	Remaining    int      `json:"remaining"`
	BonusCredits int      `json:"bonus_credits"`
	Replayed     bool     `json:"replayed,omitempty"` // consume saw this request ID before
	Message      string   `json:"message"`
}

type QuotaService struct {
	DB    *gorm.DB
	Clock utils.Clock
	Cfg   Config
	Subs  *SubscriptionService
}

func NewQuotaService(db *gorm.DB, clock utils.Clock, cfg Config, subs *SubscriptionService) *QuotaService {
	return &QuotaService{DB: db, Clock: clock, Cfg: cfg, Subs: subs}
}

// Evaluate answers "may this account act right now, and at what cost".
// Side-effect free: a stale quota day reads as zero used, the stored counter
// is only rewritten by Consume. Nil account fails closed.
func (s *QuotaService) Evaluate(acc *models.Account, today string) QuotaDecision {
	if acc == nil {
		return QuotaDecision{Allowed: false, Cost: CostNone, Message: "account not found"}
	}

	used := acc.QuotaUsed
	if acc.QuotaDay != today {
		used = 0
	}

	if acc.BonusCredits > 0 {
		return QuotaDecision{
			Allowed:      true,
			Cost:         CostBonus,
			Used:         used,
			BonusCredits: acc.BonusCredits,
			Message:      fmt.Sprintf("bonus generations: %d (spent before the daily quota)", acc.BonusCredits),
		}
	}

	vip := s.Subs.IsVIP(acc, s.Clock.Now())
	limit := s.Cfg.FreeDailyLimit
	if vip {
		limit = s.Cfg.VIPDailyLimit
	}

	if used < limit {
		return QuotaDecision{
			Allowed:   true,
			Cost:      CostQuota,
			Used:      used,
			Limit:     limit,
			Remaining: limit - used,
			Message:   fmt.Sprintf("remaining today: %d", limit-used),
		}
	}

	msg := fmt.Sprintf("daily limit reached: %d/%d, available again tomorrow", used, limit)
	if vip {
		msg = fmt.Sprintf("daily limit reached: %d/%d (VIP)", used, limit)
	}
	return QuotaDecision{
		Allowed: false,
		Cost:    CostNone,
		Used:    used,
		Limit:   limit,
		Message: msg,
	}
}

// Consume applies the charge for one granted action, atomically with the
// decision it re-takes under a row lock: either one guarded bonus-credit
// decrement or the lazy day reset plus a quota increment. requestID is the
// idempotency key; a replay returns the recorded outcome without charging.
func (s *QuotaService) Consume(telegramID int64, requestID string) (QuotaDecision, error) {
	var decision QuotaDecision
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if requestID != "" {
			// Scoped to the account: the same request ID on a different
			// account is a fresh, separately charged action.
			var prior models.ConsumedAction
			err := tx.Where("request_id = ? AND telegram_id = ?", requestID, telegramID).First(&prior).Error
			if err == nil {
				decision = QuotaDecision{
					Allowed:  true,
					Cost:     CostKind(prior.CostKind),
					Replayed: true,
					Message:  "action already consumed",
				}
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		var acc models.Account
		if err := lockForUpdate(tx).Where("telegram_id = ?", telegramID).First(&acc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		today := s.Clock.TodayKey()
		decision = s.Evaluate(&acc, today)
		if !decision.Allowed {
			return nil
		}

		switch decision.Cost {
		case CostBonus:
			// WHERE guard keeps the balance non-negative no matter what.
			res := tx.Model(&models.Account{}).
				Where("telegram_id = ? AND bonus_credits > 0", telegramID).
				Update("bonus_credits", gorm.Expr("bonus_credits - 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("bonus credit drained under lock for %d", telegramID)
			}
			decision.BonusCredits--
		case CostQuota:
			updates := map[string]interface{}{"quota_day": today}
			if acc.QuotaDay != today {
				updates["quota_used"] = 1
			} else {
				updates["quota_used"] = gorm.Expr("quota_used + 1")
			}
			if err := tx.Model(&models.Account{}).
				Where("telegram_id = ?", telegramID).
				Updates(updates).Error; err != nil {
				return err
			}
			decision.Used++
			decision.Remaining--
		}

		if requestID != "" {
			if err := tx.Create(&models.ConsumedAction{
				RequestID:  requestID,
				TelegramID: telegramID,
				CostKind:   string(decision.Cost),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return QuotaDecision{Allowed: false, Cost: CostNone}, err
	}
	return decision, nil
}
