package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/storefront-orderflow/internal/logging"
)

// Repository persists the coupon catalog.
type Repository interface {
	FindByCode(ctx context.Context, code string) (Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	// Create returns ErrCodeConflict when the code exists.
	Create(ctx context.Context, c Coupon) error
	// Update returns ErrNotFound when the code does not exist.
	Update(ctx context.Context, c Coupon) error
	Delete(ctx context.Context, code string) error
}

var errRepositoryMissing = errors.New("coupon service: repository is required")

// ServiceDeps bundles collaborators for the coupon service.
type ServiceDeps struct {
	Coupons Repository
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Service validates codes for checkout and manages the catalog for admins.
type Service struct {
	repo   Repository
	clock  func() time.Time
	logger *zap.Logger
}

func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Coupons == nil {
		return nil, errRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   deps.Coupons,
		clock:  func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Validate resolves code against the stored catalog. Repository failures are
// returned as-is; every validity failure wraps ErrInvalid.
func (s *Service) Validate(ctx context.Context, code string) (Coupon, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Coupon{}, ErrNotFound
	}
	c, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Coupon{}, fmt.Errorf("%w: %s", ErrNotFound, normalized)
		}
		return Coupon{}, fmt.Errorf("find coupon: %w", err)
	}
	return Validate(normalized, []Coupon{c}, s.clock())
}

func (s *Service) Get(ctx context.Context, code string) (Coupon, error) {
	return s.repo.FindByCode(ctx, NormalizeCode(code))
}

func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx)
}

// Create stores a new coupon; a duplicate code yields ErrCodeConflict.
func (s *Service) Create(ctx context.Context, c Coupon) (Coupon, error) {
	c, err := s.prepare(c)
	if err != nil {
		return Coupon{}, err
	}
	now := s.clock()
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrCodeConflict) {
			return Coupon{}, fmt.Errorf("%w: %s", ErrCodeConflict, c.Code)
		}
		return Coupon{}, fmt.Errorf("create coupon: %w", err)
	}
	logging.FromContextOr(ctx, s.logger).Info("coupon created", zap.String("code", c.Code), zap.String("type", string(c.Type)))
	return c, nil
}

// Update replaces an existing coupon, keeping its creation time.
func (s *Service) Update(ctx context.Context, c Coupon) (Coupon, error) {
	c, err := s.prepare(c)
	if err != nil {
		return Coupon{}, err
	}
	existing, err := s.repo.FindByCode(ctx, c.Code)
	if err != nil {
		return Coupon{}, err
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.clock()
	if err := s.repo.Update(ctx, c); err != nil {
		return Coupon{}, fmt.Errorf("update coupon: %w", err)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, code string) error {
	return s.repo.Delete(ctx, NormalizeCode(code))
}

func (s *Service) prepare(c Coupon) (Coupon, error) {
	c.Code = NormalizeCode(c.Code)
	if c.Code == "" {
		return Coupon{}, fmt.Errorf("%w: code is required", ErrInvalidDefinition)
	}
	if c.Type != DiscountPercentage && c.Type != DiscountFixed {
		return Coupon{}, fmt.Errorf("%w: unknown type %q", ErrInvalidDefinition, c.Type)
	}
	if !c.Value.IsPositive() {
		return Coupon{}, fmt.Errorf("%w: value must be positive", ErrInvalidDefinition)
	}
	if c.MinOrder.IsNegative() {
		return Coupon{}, fmt.Errorf("%w: minimum order must not be negative", ErrInvalidDefinition)
	}
	if c.StartsAt != nil && c.EndsAt != nil && c.EndsAt.Before(*c.StartsAt) {
		return Coupon{}, fmt.Errorf("%w: end date before start date", ErrInvalidDefinition)
	}
	return c, nil
}

// ErrInvalidDefinition is returned by admin writes with malformed coupon data.
var ErrInvalidDefinition = errors.New("coupon: invalid definition")
