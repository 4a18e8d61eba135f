package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shadenhost/shaden/internal/model"
	"github.com/shadenhost/shaden/internal/repository"
)

// Coupon code format: 3-64 chars, alphanumeric plus hyphen and underscore.
// Codes match exactly as created; "BOOST" and "boost" are distinct coupons.
var couponCodeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

// CouponStore is the slice of the repository the coupon service needs.
type CouponStore interface {
	CreateCoupon(ctx context.Context, coupon *model.Coupon) error
	GetCoupon(ctx context.Context, code string) (*model.Coupon, error)
	ListCoupons(ctx context.Context) ([]*model.Coupon, error)
	RevokeCoupon(ctx context.Context, code string) error
	RedeemCoupon(ctx context.Context, code string, accountID int64, now time.Time) (*model.Grant, error)
	GetOrCreateUser(ctx context.Context, accountID int64) (*model.User, error)
}

// CouponService handles coupon lifecycle and redemption.
type CouponService struct {
	store  CouponStore
	logger *slog.Logger
}

// NewCouponService creates a CouponService.
func NewCouponService(store CouponStore, logger *slog.Logger) *CouponService {
	return &CouponService{
		store:  store,
		logger: logger.With("component", "service.coupon"),
	}
}

func trimCode(code string) string {
	return strings.TrimSpace(code)
}

// CreateCouponInput defines input for creating a coupon.
type CreateCouponInput struct {
	Code      string
	Coins     int64
	Resources *model.Resources
	MaxUses   *int64
	ExpiresAt *time.Time
	CreatedBy int64
}

// CreateCoupon creates a coupon (admin operation). A coupon must carry a
// grant worth redeeming and its window, if any, must be in the future.
func (s *CouponService) CreateCoupon(ctx context.Context, input CreateCouponInput) (*model.Coupon, error) {
	code := trimCode(input.Code)
	if !couponCodeRegex.MatchString(code) {
		return nil, ErrInvalidCouponCode
	}
	if input.Coins < 0 {
		return nil, ErrInvalidAmount
	}
	hasResources := input.Resources != nil && !input.Resources.IsZero()
	if input.Coins == 0 && !hasResources {
		return nil, ErrEmptyCouponGrant
	}
	if input.MaxUses != nil && *input.MaxUses <= 0 {
		return nil, ErrInvalidAmount
	}
	if input.ExpiresAt != nil && input.ExpiresAt.Before(time.Now()) {
		return nil, ErrCouponExpired
	}

	coupon := &model.Coupon{
		Code:      code,
		Coins:     input.Coins,
		Resources: input.Resources,
		MaxUses:   input.MaxUses,
		ExpiresAt: input.ExpiresAt,
		CreatedAt: time.Now().UTC(),
		CreatedBy: input.CreatedBy,
	}

	if err := s.store.CreateCoupon(ctx, coupon); err != nil {
		if errors.Is(err, repository.ErrCouponExists) {
			return nil, ErrCouponExists
		}
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	s.logger.Info("coupon created", "code", code, "coins", coupon.Coins, "created_by", input.CreatedBy)
	return coupon, nil
}

// GetCoupon returns a coupon by code.
func (s *CouponService) GetCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	coupon, err := s.store.GetCoupon(ctx, trimCode(code))
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return coupon, nil
}

// ListCoupons returns all coupons (admin operation).
func (s *CouponService) ListCoupons(ctx context.Context) ([]*model.Coupon, error) {
	return s.store.ListCoupons(ctx)
}

// RevokeCoupon removes a coupon so no further redemptions succeed. Grants
// already applied stay applied.
func (s *CouponService) RevokeCoupon(ctx context.Context, code string) error {
	code = trimCode(code)
	if err := s.store.RevokeCoupon(ctx, code); err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return ErrCouponNotFound
		}
		return err
	}
	s.logger.Info("coupon revoked", "code", code)
	return nil
}

// Redeem applies a coupon's grant to an account. The per-account claim,
// the use-count bump and the grant are committed together in the store; a
// rejection on any check leaves nothing applied.
func (s *CouponService) Redeem(ctx context.Context, code string, accountID int64) (*model.Grant, error) {
	code = trimCode(code)
	if !couponCodeRegex.MatchString(code) {
		return nil, ErrInvalidCouponCode
	}

	// First-contact accounts get a ledger before the grant lands on it.
	if _, err := s.store.GetOrCreateUser(ctx, accountID); err != nil {
		return nil, err
	}

	grant, err := s.store.RedeemCoupon(ctx, code, accountID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCouponNotFound):
			return nil, ErrCouponNotFound
		case errors.Is(err, repository.ErrCouponExpired):
			return nil, ErrCouponExpired
		case errors.Is(err, repository.ErrCouponLimitReached):
			return nil, ErrCouponExhausted
		case errors.Is(err, repository.ErrCouponAlreadyUsed):
			return nil, ErrCouponAlreadyUsed
		}
		return nil, fmt.Errorf("redeem coupon: %w", err)
	}

	s.logger.Info("coupon redeemed", "code", code, "account_id", accountID, "coins", grant.Coins)
	return grant, nil
}

var _ CouponStore = (*repository.Repository)(nil)
