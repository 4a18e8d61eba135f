// Package service provides business logic for the application.
package service

import "errors"

// Service errors.
var (
	ErrUserNotFound          = errors.New("account not found")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrSelfTransfer          = errors.New("cannot transfer to yourself")
	ErrFeatureDisabled       = errors.New("feature is disabled")
	ErrInvalidCouponCode     = errors.New("invalid coupon code format")
	ErrCouponNotFound        = errors.New("coupon not found")
	ErrCouponExists          = errors.New("coupon code already exists")
	ErrCouponExpired         = errors.New("coupon is expired")
	ErrCouponExhausted       = errors.New("coupon has no uses left")
	ErrCouponAlreadyUsed     = errors.New("coupon already redeemed by this account")
	ErrEmptyCouponGrant      = errors.New("coupon must grant coins or resources")
	ErrPlanNotFound          = errors.New("plan not found")
	ErrItemNotFound          = errors.New("store item not found")
	ErrInvalidServerName     = errors.New("invalid server name")
	ErrInsufficientResources = errors.New("resource capacity does not cover the plan")
	ErrServerNotFound        = errors.New("server not found")
	ErrServerNotProvisioned  = errors.New("server is not provisioned yet")
	ErrInvalidPowerSignal    = errors.New("invalid power signal")
	ErrInvalidTransition     = errors.New("server cannot change to that state")
	ErrInvalidDuration       = errors.New("duration must be positive")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderCompleted        = errors.New("order already completed")
	ErrSessionExists         = errors.New("checkout session already recorded")
)
