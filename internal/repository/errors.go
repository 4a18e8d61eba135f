package repository

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across repository operations.
var (
	ErrUserNotFound       = errors.New("account not found")
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponExists       = errors.New("coupon code already exists")
	ErrCouponExpired      = errors.New("coupon expired")
	ErrCouponAlreadyUsed  = errors.New("coupon already redeemed by this account")
	ErrCouponLimitReached = errors.New("coupon redemption limit reached")
	ErrServerNotFound     = errors.New("server not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderCompleted     = errors.New("order already completed")
	ErrSessionExists      = errors.New("checkout session already recorded")
)

// InsufficientFundsError reports a rejected debit with the exact shortfall,
// so callers can surface it verbatim.
type InsufficientFundsError struct {
	Needed    int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient coins: need %d, have %d", e.Needed, e.Available)
}

// IsInsufficientFunds reports whether err is an InsufficientFundsError.
func IsInsufficientFunds(err error) bool {
	var target *InsufficientFundsError
	return errors.As(err, &target)
}
