package services

import (
	"context"
	"errors"
	"testing"

	"bot-access-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMembership struct {
	member bool
	err    error
}

func (f *fakeMembership) IsChannelMember(ctx context.Context, telegramID int64) (bool, error) {
	return f.member, f.err
}

func newGateFixture(t *testing.T, cfg Config, membership *fakeMembership) *GateService {
	t.Helper()
	db := newTestDB(t)
	clock := newFixedClock()
	subs := NewSubscriptionService(db, clock)
	refs := NewReferralService(db, clock, cfg, subs)
	return NewGateService(db, clock, cfg, refs, membership)
}

func TestAuthorizeChannelGateDominates(t *testing.T) {
	gate := newGateFixture(t, testConfig(), &fakeMembership{member: false})

	// Secondary verified, but the user left the channel: channel lock wins.
	acc := &models.Account{TelegramID: 100, SecondaryVerified: true}
	d := gate.Authorize(acc, false)
	assert.Equal(t, GateChannelLocked, d.State)

	d = gate.Authorize(acc, true)
	assert.Equal(t, GateUnlocked, d.State)
}

func TestAuthorizeSecondaryLocked(t *testing.T) {
	gate := newGateFixture(t, testConfig(), &fakeMembership{member: true})

	d := gate.Authorize(&models.Account{TelegramID: 100}, true)
	assert.Equal(t, GateSecondaryLocked, d.State)
}

func TestCheckAccessLiveMembership(t *testing.T) {
	membership := &fakeMembership{member: true}
	gate := newGateFixture(t, testConfig(), membership)
	seedAccount(t, gate.DB, models.Account{TelegramID: 100, SecondaryVerified: true})

	d, _, err := gate.CheckAccess(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, GateUnlocked, d.State)

	// The user leaves the channel: access drops immediately, secondary
	// verification alone is not enough.
	membership.member = false
	d, _, err = gate.CheckAccess(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, GateChannelLocked, d.State)
}

func TestCheckChannelFailurePolicy(t *testing.T) {
	strict := testConfig()
	gateStrict := newGateFixture(t, strict, &fakeMembership{err: errors.New("api down")})
	assert.False(t, gateStrict.CheckChannel(context.Background(), 100), "strict mode fails closed")

	lenient := testConfig()
	lenient.StrictChannelCheck = false
	gateLenient := newGateFixture(t, lenient, &fakeMembership{err: errors.New("api down")})
	assert.True(t, gateLenient.CheckChannel(context.Background(), 100), "lenient mode fails open")
}

func TestSecondaryVerificationModeratedFlow(t *testing.T) {
	gate := newGateFixture(t, testConfig(), &fakeMembership{member: true})
	seedAccount(t, gate.DB, models.Account{TelegramID: 100})

	vr, err := gate.CompleteSecondaryVerification(100, "@My_Handle ", "https://cdn.example/proof.jpg", true)
	require.NoError(t, err)
	require.NotNil(t, vr)
	assert.Equal(t, models.VerificationStatusPending, vr.Status)
	assert.Equal(t, "my_handle", vr.Handle)

	acc := loadAccount(t, gate.DB, 100)
	assert.True(t, acc.SecondaryPending)
	assert.False(t, acc.SecondaryVerified)

	// Resubmission replaces the prior pending request instead of piling up.
	vr2, err := gate.CompleteSecondaryVerification(100, "other", "", true)
	require.NoError(t, err)
	require.NotNil(t, vr2)
	var pending int64
	require.NoError(t, gate.DB.Model(&models.VerificationRequest{}).
		Where("telegram_id = ? AND status = ?", int64(100), models.VerificationStatusPending).
		Count(&pending).Error)
	assert.Equal(t, int64(1), pending)

	require.NoError(t, gate.ApproveSecondary(context.Background(), 100))
	acc = loadAccount(t, gate.DB, 100)
	assert.True(t, acc.SecondaryVerified)
	assert.False(t, acc.SecondaryPending)

	// Approving again is a no-op.
	require.NoError(t, gate.ApproveSecondary(context.Background(), 100))
}

func TestSecondaryVerificationAutoApprove(t *testing.T) {
	cfg := testConfig()
	cfg.AutoApproveSecondary = true
	gate := newGateFixture(t, cfg, &fakeMembership{member: true})
	seedAccount(t, gate.DB, models.Account{TelegramID: 100})

	vr, err := gate.CompleteSecondaryVerification(100, "handle", "", true)
	require.NoError(t, err)
	require.NotNil(t, vr)
	assert.Equal(t, models.VerificationStatusApproved, vr.Status)

	acc := loadAccount(t, gate.DB, 100)
	assert.True(t, acc.SecondaryVerified)
}

func TestSecondaryVerificationAlreadyVerifiedNoOp(t *testing.T) {
	gate := newGateFixture(t, testConfig(), &fakeMembership{member: true})
	seedAccount(t, gate.DB, models.Account{TelegramID: 100, SecondaryVerified: true})

	vr, err := gate.CompleteSecondaryVerification(100, "handle", "", true)
	require.NoError(t, err)
	assert.Nil(t, vr)
}

func TestRejectSecondary(t *testing.T) {
	gate := newGateFixture(t, testConfig(), &fakeMembership{member: true})
	seedAccount(t, gate.DB, models.Account{TelegramID: 100})

	_, err := gate.CompleteSecondaryVerification(100, "handle", "", true)
	require.NoError(t, err)

	require.NoError(t, gate.RejectSecondary(100))
	acc := loadAccount(t, gate.DB, 100)
	assert.False(t, acc.SecondaryVerified)
	assert.False(t, acc.SecondaryPending)

	var vr models.VerificationRequest
	require.NoError(t, gate.DB.Where("telegram_id = ?", int64(100)).First(&vr).Error)
	assert.Equal(t, models.VerificationStatusRejected, vr.Status)
}

func TestReferralRewardOnFullUnlockExactlyOnce(t *testing.T) {
	gate := newGateFixture(t, testConfig(), &fakeMembership{member: true})
	seedAccount(t, gate.DB, models.Account{TelegramID: 1})
	seedAccount(t, gate.DB, models.Account{TelegramID: 3})

	_, err := gate.Referrals.RegisterReferral(1, 3)
	require.NoError(t, err)

	// Secondary still locked: no reward yet.
	d, _, err := gate.CheckAccess(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, GateSecondaryLocked, d.State)
	assert.Equal(t, 0, loadAccount(t, gate.DB, 1).BonusCredits)

	// Moderator approval completes the unlock and pays the referrer.
	_, err = gate.CompleteSecondaryVerification(3, "handle", "", true)
	require.NoError(t, err)
	require.NoError(t, gate.ApproveSecondary(context.Background(), 3))
	assert.Equal(t, 1, loadAccount(t, gate.DB, 1).BonusCredits)
	assert.True(t, loadAccount(t, gate.DB, 3).ReferralRewardGranted)

	// Later unlocked requests never pay again.
	for i := 0; i < 3; i++ {
		_, _, err = gate.CheckAccess(context.Background(), 3)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, loadAccount(t, gate.DB, 1).BonusCredits)
}

func TestApproveWhileOutsideChannelDefersReward(t *testing.T) {
	// Moderator approves while the referred user has left the channel:
	// secondary verification sticks, but the referrer is not paid until the
	// user is back through both gates.
	membership := &fakeMembership{member: true}
	gate := newGateFixture(t, testConfig(), membership)
	seedAccount(t, gate.DB, models.Account{TelegramID: 1})
	seedAccount(t, gate.DB, models.Account{TelegramID: 3})

	_, err := gate.Referrals.RegisterReferral(1, 3)
	require.NoError(t, err)
	_, err = gate.CompleteSecondaryVerification(3, "handle", "", true)
	require.NoError(t, err)

	membership.member = false
	require.NoError(t, gate.ApproveSecondary(context.Background(), 3))
	assert.True(t, loadAccount(t, gate.DB, 3).SecondaryVerified)
	assert.Equal(t, 0, loadAccount(t, gate.DB, 1).BonusCredits, "no reward while channel-locked")

	// Rejoining the channel completes the unlock and pays the referrer.
	membership.member = true
	d, _, err := gate.CheckAccess(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, GateUnlocked, d.State)
	assert.Equal(t, 1, loadAccount(t, gate.DB, 1).BonusCredits)
}

func TestReferralRewardCaughtUpOnNextRequest(t *testing.T) {
	// Approval happened while the referrer row was missing the edge reward
	// (simulated by approving before registering). The next unlocked request
	// catches it up.
	gate := newGateFixture(t, testConfig(), &fakeMembership{member: true})
	seedAccount(t, gate.DB, models.Account{TelegramID: 1})
	seedAccount(t, gate.DB, models.Account{TelegramID: 3, SecondaryVerified: true})

	_, err := gate.Referrals.RegisterReferral(1, 3)
	require.NoError(t, err)

	d, _, err := gate.CheckAccess(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, GateUnlocked, d.State)
	assert.Equal(t, 1, loadAccount(t, gate.DB, 1).BonusCredits)
}

func TestFoldHandle(t *testing.T) {
	assert.Equal(t, "my_handle", foldHandle(" @My_Handle "))
	assert.Equal(t, "cafe", foldHandle("Café"))
	assert.Equal(t, "", foldHandle("@"))
}
