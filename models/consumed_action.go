package models

import "time"

// ConsumedAction is the idempotency ledger for quota consumption. The bot
// front-end delivers actions at-least-once; replaying a request ID returns
// the recorded outcome instead of charging again. Keyed per account: one
// user's request ID says nothing about another's, so the key is the
// (request, account) pair and the ID itself is an opaque caller string.
type ConsumedAction struct {
	RequestID  string `gorm:"primaryKey;size:64" json:"request_id"`
	TelegramID int64  `gorm:"primaryKey;autoIncrement:false" json:"telegram_id"`
	CostKind   string `gorm:"type:varchar(8);not null" json:"cost_kind"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
