package services

import (
	"testing"
	"time"

	"bot-access-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubsFixture(t *testing.T) (*SubscriptionService, *fixedClock) {
	t.Helper()
	db := newTestDB(t)
	clock := newFixedClock()
	return NewSubscriptionService(db, clock), clock
}

func TestIsVIP(t *testing.T) {
	subs, clock := newSubsFixture(t)
	now := clock.Now()

	assert.False(t, subs.IsVIP(nil, now))
	assert.False(t, subs.IsVIP(&models.Account{}, now))

	future := now.Add(time.Hour)
	assert.True(t, subs.IsVIP(&models.Account{VIPUntil: &future}, now))

	// Expiry is exclusive: at the boundary instant VIP is already off.
	assert.False(t, subs.IsVIP(&models.Account{VIPUntil: &now}, now))

	past := now.Add(-time.Hour)
	assert.False(t, subs.IsVIP(&models.Account{VIPUntil: &past}, now))
}

func TestGrantVIPFromScratch(t *testing.T) {
	subs, clock := newSubsFixture(t)
	seedAccount(t, subs.DB, models.Account{TelegramID: 100})

	until, err := subs.GrantVIP(100, 30)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().AddDate(0, 0, 30), until)

	acc := loadAccount(t, subs.DB, 100)
	require.NotNil(t, acc.VIPUntil)
	assert.True(t, subs.IsVIP(acc, clock.Now()))
}

func TestGrantVIPStacksOnRemaining(t *testing.T) {
	subs, clock := newSubsFixture(t)
	existing := clock.Now().AddDate(0, 0, 10)
	seedAccount(t, subs.DB, models.Account{TelegramID: 100, VIPUntil: &existing})

	// Buying again mid-window extends from the current expiry, not from now.
	until, err := subs.GrantVIP(100, 30)
	require.NoError(t, err)
	assert.WithinDuration(t, existing.AddDate(0, 0, 30), until, time.Second)
}

func TestGrantVIPAfterExpiryStartsFromNow(t *testing.T) {
	subs, clock := newSubsFixture(t)
	lapsed := clock.Now().AddDate(0, 0, -10)
	seedAccount(t, subs.DB, models.Account{TelegramID: 100, VIPUntil: &lapsed})

	until, err := subs.GrantVIP(100, 30)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().AddDate(0, 0, 30), until)
}

func TestGrantVIPUnknownAccount(t *testing.T) {
	subs, _ := newSubsFixture(t)
	_, err := subs.GrantVIP(999, 30)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestVIPColumnNamesMatchRawSQL(t *testing.T) {
	// ExtendVIP and the expiry sweep address vip columns by raw name; the
	// struct fields must map to those exact columns.
	subs, clock := newSubsFixture(t)
	seedAccount(t, subs.DB, models.Account{TelegramID: 100})

	_, err := subs.GrantVIP(100, 30)
	require.NoError(t, err)

	var n int64
	require.NoError(t, subs.DB.Model(&models.Account{}).
		Where("vip_until > ?", clock.Now()).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	require.NoError(t, subs.DB.Create(&models.Referral{
		ID: "edge-1", ReferrerID: 100, ReferredID: 200, VIPDaysAwarded: 3,
	}).Error)
	require.NoError(t, subs.DB.Model(&models.Referral{}).
		Where("vip_days_awarded = ?", 3).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestOnPaymentConfirmedDeduplicatesPayload(t *testing.T) {
	subs, clock := newSubsFixture(t)
	seedAccount(t, subs.DB, models.Account{TelegramID: 100})

	first, err := subs.OnPaymentConfirmed(100, "inv-abc", 150, 30)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().AddDate(0, 0, 30), first)

	// Webhook redelivery of the same invoice: no second extension.
	second, err := subs.OnPaymentConfirmed(100, "inv-abc", 150, 30)
	require.NoError(t, err)
	assert.WithinDuration(t, first, second, time.Second)

	var payments int64
	require.NoError(t, subs.DB.Model(&models.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)
}

func TestOnPaymentConfirmedSequentialPurchasesStack(t *testing.T) {
	subs, clock := newSubsFixture(t)
	seedAccount(t, subs.DB, models.Account{TelegramID: 100})

	_, err := subs.OnPaymentConfirmed(100, "inv-1", 150, 30)
	require.NoError(t, err)
	until, err := subs.OnPaymentConfirmed(100, "inv-2", 150, 30)
	require.NoError(t, err)

	assert.WithinDuration(t, clock.Now().AddDate(0, 0, 60), until, time.Second)
}
