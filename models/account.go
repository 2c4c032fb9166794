package models

import (
	"time"

	"gorm.io/gorm"
)

// Account is the per-user monetization record. One row per Telegram user,
// created on first contact and never deleted.
type Account struct {
	TelegramID int64  `gorm:"primaryKey;autoIncrement:false" json:"telegram_id"`
	Username   string `gorm:"index" json:"username"`
	FirstName  string `json:"first_name"`

	// Secondary verification gate (social-proof step). The channel gate is
	// re-checked live on every request and is not persisted here.
	SecondaryVerified bool `gorm:"default:false" json:"secondary_verified"`
	SecondaryPending  bool `gorm:"default:false" json:"secondary_pending"`

	// Daily quota. QuotaUsed applies to QuotaDay only; a day-key mismatch
	// means the counter is stale and reads as zero.
	QuotaDay  string `gorm:"size:10" json:"quota_day"`
	QuotaUsed int    `gorm:"default:0" json:"quota_used"`

	// Referral-earned credits, spent before quota. Never negative.
	BonusCredits int `gorm:"default:0" json:"bonus_credits"`

	// VIP is active iff VIPUntil is set and strictly after now. Column named
	// explicitly: the default naming strategy would split VIP as V+IP.
	VIPUntil *time.Time `gorm:"column:vip_until" json:"vip_until,omitempty"`

	// ReferredBy is set at most once and never overwritten; never self.
	ReferredBy            *int64 `gorm:"index" json:"referred_by,omitempty"`
	ReferralRewardGranted bool   `gorm:"default:false" json:"referral_reward_granted"`

	ReferralCode  string `gorm:"uniqueIndex;size:64" json:"referral_code"`
	ReferralCount int    `gorm:"default:0" json:"referral_count"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
