package models

// PaymentStatus tracks the lifecycle of a Stars invoice
type PaymentStatus string

const (
	PaymentStatusInvoiceSent PaymentStatus = "invoice_sent"
	PaymentStatusPaid        PaymentStatus = "paid"
)

// Payment records a Telegram Stars payment event. The payment rail itself is
// external; this row is the audit trail behind a VIP extension.
type Payment struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	TelegramID int64  `gorm:"index;not null" json:"telegram_id"`

	Payload  string        `gorm:"uniqueIndex;size:128" json:"payload"` // invoice payload, dedupes redelivery
	Stars    int           `gorm:"default:0" json:"stars"`
	PlanDays int           `gorm:"default:0" json:"plan_days"`
	Status   PaymentStatus `gorm:"type:varchar(16);not null" json:"status"`

	Timestamps
}
