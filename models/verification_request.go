package models

// VerificationStatus is the moderation state of a secondary-proof submission
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusApproved VerificationStatus = "approved"
	VerificationStatusRejected VerificationStatus = "rejected"
	VerificationStatusExpired  VerificationStatus = "expired"
)

// VerificationRequest is a pending secondary-verification submission
// (social handle plus optional proof screenshot) awaiting moderator review.
// At most one live request per account; resubmission replaces it.
type VerificationRequest struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	TelegramID int64  `gorm:"index;not null" json:"telegram_id"`

	Handle   string             `gorm:"size:128" json:"handle"` // ASCII-folded, no leading @
	ProofURL string             `gorm:"type:text" json:"proof_url,omitempty"`
	Note     string             `gorm:"type:text" json:"note,omitempty"`
	Status   VerificationStatus `gorm:"type:varchar(16);default:'pending';index" json:"status"`

	Timestamps
}
