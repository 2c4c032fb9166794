package services

import "errors"

var (
	// ErrAccountNotFound: the caller should upsert the account and retry.
	ErrAccountNotFound = errors.New("account not found")

	// ErrReferralNotFound: GrantIfDue called before RegisterReferral.
	ErrReferralNotFound = errors.New("referral edge not found")
)
