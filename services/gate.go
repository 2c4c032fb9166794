// services/gate.go
package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"bot-access-system/models"
	"bot-access-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
)

// GateState is where an account stands in the verification chain. Evaluated
// fresh on every request; nothing beyond the underlying flags is persisted.
type GateState string

const (
	GateChannelLocked   GateState = "channel_locked"
	GateSecondaryLocked GateState = "secondary_locked"
	GateUnlocked        GateState = "unlocked"
)

// GateDecision is the single allow/deny answer every gated action gets.
type GateDecision struct {
	State  GateState `json:"state"`
	Reason string    `json:"reason,omitempty"`
}

// MembershipChecker is the live channel-membership lookup. The result is
// consumed per call and never cached: users join and leave constantly.
type MembershipChecker interface {
	IsChannelMember(ctx context.Context, telegramID int64) (bool, error)
}

type GateService struct {
	DB         *gorm.DB
	Clock      utils.Clock
	Cfg        Config
	Referrals  *ReferralService
	Membership MembershipChecker
}

func NewGateService(db *gorm.DB, clock utils.Clock, cfg Config, referrals *ReferralService, membership MembershipChecker) *GateService {
	return &GateService{DB: db, Clock: clock, Cfg: cfg, Referrals: referrals, Membership: membership}
}

// Authorize walks the gate chain in strict order. Pure and total: one of the
// three states, never an error. The channel gate dominates — whatever the
// secondary flag says, a user outside the channel is channel-locked.
func (s *GateService) Authorize(acc *models.Account, channelVerifiedNow bool) GateDecision {
	if !channelVerifiedNow {
		return GateDecision{State: GateChannelLocked, Reason: "join and verify the primary channel first"}
	}
	if acc == nil || !acc.SecondaryVerified {
		return GateDecision{State: GateSecondaryLocked, Reason: "complete the secondary verification step"}
	}
	return GateDecision{State: GateUnlocked}
}

// CheckAccess runs the live membership check and Authorize for one request.
// A fully unlocked referred account triggers the referrer's reward (the
// granted flag makes repeats no-ops).
func (s *GateService) CheckAccess(ctx context.Context, telegramID int64) (GateDecision, *models.Account, error) {
	channelOK := s.CheckChannel(ctx, telegramID)

	var acc models.Account
	if err := s.DB.Where("telegram_id = ?", telegramID).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return GateDecision{}, nil, ErrAccountNotFound
		}
		return GateDecision{}, nil, err
	}

	decision := s.Authorize(&acc, channelOK)
	if decision.State == GateUnlocked {
		s.grantReferralRewardIfDue(&acc)
	}
	return decision, &acc, nil
}

// CompleteSecondaryVerification takes a social handle plus optional proof
// URL. Auto-approve mode unlocks immediately; otherwise the submission goes
// to the moderator queue and the account is marked pending.
func (s *GateService) CompleteSecondaryVerification(telegramID int64, handle, proofURL string, channelVerifiedNow bool) (*models.VerificationRequest, error) {
	handle = foldHandle(handle)

	var req *models.VerificationRequest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var acc models.Account
		if err := lockForUpdate(tx).Where("telegram_id = ?", telegramID).First(&acc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if acc.SecondaryVerified {
			return nil // already through, resubmission is a no-op
		}

		vr := models.VerificationRequest{
			ID:         uuid.NewString(),
			TelegramID: telegramID,
			Handle:     handle,
			ProofURL:   proofURL,
			Status:     models.VerificationStatusPending,
		}

		if s.Cfg.AutoApproveSecondary {
			vr.Status = models.VerificationStatusApproved
			vr.Note = "auto-approved"
			if err := tx.Create(&vr).Error; err != nil {
				return err
			}
			if err := s.approveLocked(tx, telegramID); err != nil {
				return err
			}
			req = &vr
			return nil
		}

		// Resubmission replaces the previous pending request.
		if err := tx.Where("telegram_id = ? AND status = ?", telegramID, models.VerificationStatusPending).
			Delete(&models.VerificationRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&vr).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Account{}).
			Where("telegram_id = ?", telegramID).
			Update("secondary_pending", true).Error; err != nil {
			return err
		}
		req = &vr
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req != nil && req.Status == models.VerificationStatusApproved && channelVerifiedNow {
		s.grantReferralRewardByID(telegramID)
	}
	return req, nil
}

// ApproveSecondary is the moderator accept. Idempotent: approving an
// already-verified account changes nothing. The referrer is only paid when
// the approval completes a full unlock, so the channel gate is re-checked
// live; an account approved while outside the channel earns its referrer the
// reward on its next unlocked request instead.
func (s *GateService) ApproveSecondary(ctx context.Context, telegramID int64) error {
	var newlyVerified bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var acc models.Account
		if err := lockForUpdate(tx).Where("telegram_id = ?", telegramID).First(&acc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if acc.SecondaryVerified {
			return nil
		}
		newlyVerified = true
		if err := tx.Model(&models.VerificationRequest{}).
			Where("telegram_id = ? AND status = ?", telegramID, models.VerificationStatusPending).
			Update("status", models.VerificationStatusApproved).Error; err != nil {
			return err
		}
		return s.approveLocked(tx, telegramID)
	})
	if err != nil {
		return err
	}
	if newlyVerified {
		log.Printf("[GATE] Secondary verification approved for %d", telegramID)
		if s.CheckChannel(ctx, telegramID) {
			s.grantReferralRewardByID(telegramID)
		}
	}
	return nil
}

// RejectSecondary is the moderator decline. Idempotent.
func (s *GateService) RejectSecondary(telegramID int64) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.VerificationRequest{}).
			Where("telegram_id = ? AND status = ?", telegramID, models.VerificationStatusPending).
			Update("status", models.VerificationStatusRejected).Error; err != nil {
			return err
		}
		return tx.Model(&models.Account{}).
			Where("telegram_id = ?", telegramID).
			Updates(map[string]interface{}{
				"secondary_verified": false,
				"secondary_pending":  false,
			}).Error
	})
}

func (s *GateService) approveLocked(tx *gorm.DB, telegramID int64) error {
	return tx.Model(&models.Account{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]interface{}{
			"secondary_verified": true,
			"secondary_pending":  false,
		}).Error
}

// CheckChannel folds the membership lookup into a bool under the configured
// failure policy: strict deployments fail closed, lenient ones fail open.
func (s *GateService) CheckChannel(ctx context.Context, telegramID int64) bool {
	ok, err := s.Membership.IsChannelMember(ctx, telegramID)
	if err != nil {
		log.Printf("[GATE] Channel check failed for %d: %v (strict=%t)", telegramID, err, s.Cfg.StrictChannelCheck)
		return !s.Cfg.StrictChannelCheck
	}
	return ok
}

func (s *GateService) grantReferralRewardByID(telegramID int64) {
	var acc models.Account
	if err := s.DB.Where("telegram_id = ?", telegramID).First(&acc).Error; err != nil {
		return
	}
	s.grantReferralRewardIfDue(&acc)
}

// grantReferralRewardIfDue fires the unlock side effect: the first time a
// referred account clears both gates, its referrer gets paid. Best effort —
// a failed grant is retried on the account's next authorized request.
func (s *GateService) grantReferralRewardIfDue(acc *models.Account) {
	if acc.ReferredBy == nil || acc.ReferralRewardGranted {
		return
	}
	out, err := s.Referrals.GrantIfDue(*acc.ReferredBy, acc.TelegramID)
	if err != nil {
		log.Printf("[GATE] Referral reward for %d via %d failed: %v", *acc.ReferredBy, acc.TelegramID, err)
		return
	}
	if !out.AlreadyGranted {
		acc.ReferralRewardGranted = true
	}
}

// foldHandle normalizes a submitted social handle: strip the @, ASCII-fold
// fancy unicode, lowercase.
func foldHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.ToLower(unidecode.Unidecode(handle))
}
