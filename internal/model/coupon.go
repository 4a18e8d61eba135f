package model

import "time"

// Coupon is a redeemable code granting coins and, optionally, resources.
// Codes are unique and matched case-sensitively. Each account may
// redeem a given code at most once, independent of MaxUses; redemption
// bookkeeping lives in a separate redemptions table keyed by (code, account).
type Coupon struct {
	Code      string     `json:"code"`
	Coins     int64      `json:"coins"`
	Resources *Resources `json:"resources,omitempty"`
	MaxUses   *int64     `json:"max_uses,omitempty"`
	UsedCount int64      `json:"used_count"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	CreatedBy int64      `json:"created_by"`
}

// IsExpired reports whether the coupon's expiry, if any, has passed.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// UsesRemaining reports whether the redemption counter still has headroom.
func (c *Coupon) UsesRemaining() bool {
	return c.MaxUses == nil || c.UsedCount < *c.MaxUses
}

// Grant is what a successful redemption applies to a ledger.
type Grant struct {
	Coins     int64     `json:"coins"`
	Resources Resources `json:"resources"`
}

// Grant returns the coupon's grant.
func (c *Coupon) Grant() Grant {
	g := Grant{Coins: c.Coins}
	if c.Resources != nil {
		g.Resources = *c.Resources
	}
	return g
}
