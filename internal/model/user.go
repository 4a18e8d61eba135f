package model

import "time"

// User is the per-account ledger: spendable coin balance plus the resource
// quota vector. Accounts are created lazily on first interaction and never
// deleted. The balance invariant (never negative at rest) is enforced by the
// repository's conditional debit, not here.
type User struct {
	AccountID int64     `json:"account_id"`
	Coins     int64     `json:"coins"`
	Resources Resources `json:"resources"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanAfford reports whether the balance covers cost.
func (u *User) CanAfford(cost int64) bool {
	return u.Coins >= cost
}
