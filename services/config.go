package services

import "time"

// Config carries the monetization knobs, loaded from env in main.
type Config struct {
	FreeDailyLimit int
	VIPDailyLimit  int
	VIPPlanDays    int

	ReferralBonusCredits     int // flat credits per completed referral
	ReferralMilestoneEvery   int // every Kth completed referral ...
	ReferralMilestoneVIPDays int // ... extends the referrer's VIP by this

	// StrictChannelCheck: a failed membership lookup denies access. Lenient
	// deployments let the user through instead.
	StrictChannelCheck bool

	// AutoApproveSecondary skips moderator review of social-proof
	// submissions.
	AutoApproveSecondary bool

	VerificationTTL time.Duration // pending submissions older than this expire
}
