// services/accounts.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"bot-access-system/models"
	"bot-access-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountService struct {
	DB    *gorm.DB
	Clock utils.Clock
}

func NewAccountService(db *gorm.DB, clock utils.Clock) *AccountService {
	return &AccountService{DB: db, Clock: clock}
}

// EnsureAccount upserts the account on first contact and refreshes the
// profile snapshot on every later one. Idempotent; safe under concurrent
// first-contact races.
func (s *AccountService) EnsureAccount(telegramID int64, username, firstName string) (*models.Account, error) {
	acc := models.Account{
		TelegramID:   telegramID,
		Username:     strings.TrimSpace(username),
		FirstName:    normalizeDisplayName(firstName),
		QuotaDay:     s.Clock.TodayKey(),
		ReferralCode: newReferralCode(username, telegramID),
	}

	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "updated_at"}),
	}).Create(&acc).Error; err != nil {
		return nil, fmt.Errorf("upsert account %d: %w", telegramID, err)
	}

	// Re-read: on the conflict path the returned struct still carries the
	// freshly generated referral code, not the stored one.
	return s.GetAccount(telegramID)
}

func (s *AccountService) GetAccount(telegramID int64) (*models.Account, error) {
	var acc models.Account
	if err := s.DB.Where("telegram_id = ?", telegramID).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// GetByReferralCode resolves a share code from a deep link.
func (s *AccountService) GetByReferralCode(code string) (*models.Account, error) {
	var acc models.Account
	if err := s.DB.Where("referral_code = ?", strings.TrimSpace(code)).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// normalizeDisplayName trims and title-cases the name users type in their
// Telegram profile ("  kristina " → "Kristina").
func normalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return cases.Title(language.Und, cases.NoLower).String(name)
}

// newReferralCode builds the share code embedded in invite deep links:
// a slug of the username plus a short random suffix for uniqueness.
func newReferralCode(username string, telegramID int64) string {
	base := slug.Make(username)
	if base == "" {
		base = fmt.Sprintf("u%d", telegramID)
	}
	if len(base) > 24 {
		base = base[:24]
	}
	return base + "-" + uuid.NewString()[:8]
}
