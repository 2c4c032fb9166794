package models

import "time"

// Referral is the permanent referrer → referred edge. ReferredID is unique:
// an account has at most one inviter, first writer wins.
type Referral struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID int64  `gorm:"index;not null" json:"referrer_id"`
	ReferredID int64  `gorm:"uniqueIndex;not null" json:"referred_id"`

	// Reward bookkeeping. RewardGranted flips together with the grant so a
	// replayed unlock event is a no-op.
	RewardGranted  bool       `gorm:"default:false" json:"reward_granted"`
	AwardedAt      *time.Time `json:"awarded_at,omitempty"`
	CreditsAwarded int        `gorm:"default:0" json:"credits_awarded"`
	VIPDaysAwarded int        `gorm:"column:vip_days_awarded;default:0" json:"vip_days_awarded"`

	Timestamps
}
