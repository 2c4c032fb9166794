package services

import (
	"fmt"
	"testing"
	"time"

	"bot-access-system/models"
	"bot-access-system/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fixedClock pins "now" so day-rollover and VIP-expiry logic is testable.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time   { return c.now }
func (c *fixedClock) TodayKey() string { return utils.DayKey(c.now) }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Account{},
		&models.Referral{},
		&models.VerificationRequest{},
		&models.Payment{},
		&models.ConsumedAction{},
	))
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, acc models.Account) {
	t.Helper()
	if acc.ReferralCode == "" {
		acc.ReferralCode = fmt.Sprintf("u%d-test", acc.TelegramID)
	}
	require.NoError(t, db.Create(&acc).Error)
}

func loadAccount(t *testing.T, db *gorm.DB, telegramID int64) *models.Account {
	t.Helper()
	var acc models.Account
	require.NoError(t, db.Where("telegram_id = ?", telegramID).First(&acc).Error)
	return &acc
}

func testConfig() Config {
	return Config{
		FreeDailyLimit:           1,
		VIPDailyLimit:            30,
		VIPPlanDays:              30,
		ReferralBonusCredits:     1,
		ReferralMilestoneEvery:   5,
		ReferralMilestoneVIPDays: 3,
		StrictChannelCheck:       true,
		AutoApproveSecondary:     false,
		VerificationTTL:          72 * time.Hour,
	}
}
