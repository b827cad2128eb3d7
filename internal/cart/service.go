package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kalaa-market/kalaa-backend/pkg/config"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	pkgerrors "github.com/kalaa-market/kalaa-backend/pkg/errors"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes the cart operations backing the /cart endpoints and the
// cron sweeps. Every mutation recomputes totals from the line items and
// saves through the version check; a concurrent writer triggers a reload
// and replay rather than a lost update.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*View, error)
	ClearCart(ctx context.Context, userID uuid.UUID) (*View, error)
	Abandon(ctx context.Context, userID uuid.UUID) error
	MarkCheckedOut(ctx context.Context, userID, cartID uuid.UUID) error
	SweepAbandoned(ctx context.Context) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type service struct {
	repo         CartRepository
	tx           txRunner
	products     productLoader
	abandonAfter time.Duration
	expiry       time.Duration
	saveRetries  int
	now          func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader, cfg config.CartConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if cfg.AbandonAfter <= 0 {
		return nil, fmt.Errorf("abandon threshold must be positive")
	}
	if cfg.ExpiryDays <= 0 {
		return nil, fmt.Errorf("expiry days must be positive")
	}
	retries := cfg.SaveRetries
	if retries < 1 {
		retries = 1
	}
	return &service{
		repo:         repo,
		tx:           tx,
		products:     products,
		abandonAfter: cfg.AbandonAfter,
		expiry:       time.Duration(cfg.ExpiryDays) * 24 * time.Hour,
		saveRetries:  retries,
		now:          time.Now,
	}, nil
}

// GetCart returns the user's active cart after reconciling it against the
// current catalog. A user with no active cart gets an empty one, created
// and persisted on first read. Items whose product vanished are pruned,
// quantities above stock are clamped, unit prices are refreshed to the
// catalog price, and the corrections are persisted and reported.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var lastErr error
	for attempt := 0; attempt < s.saveRetries; attempt++ {
		cart, _, err := s.loadOrCreate(ctx, userID, true)
		if err != nil {
			return nil, err
		}

		metas, adjustments, changed, err := s.reconcile(ctx, cart)
		if err != nil {
			return nil, err
		}
		if !changed {
			return buildView(cart, metas, adjustments), nil
		}

		cart.RecomputeTotals()
		if err := s.persist(ctx, cart); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist reconciled cart")
		}
		return buildView(cart, metas, adjustments), nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "cart was modified concurrently")
}

// AddItem merges the quantity into any existing line for the product,
// clamping to available stock, and refreshes the held unit price to the
// current catalog price.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Stock <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "product is out of stock").
			WithDetails(map[string]any{"product_id": productID})
	}

	return s.mutate(ctx, userID, true, func(cart *models.Cart, adjustments *[]Adjustment) error {
		now := s.now()
		existing := cart.ItemFor(productID)
		requested := quantity
		if existing != nil {
			requested += existing.Quantity
		}
		granted := requested
		if granted > product.Stock {
			granted = product.Stock
			*adjustments = append(*adjustments, Adjustment{
				ProductID:   productID,
				ProductName: product.Name,
				Reason:      AdjustmentReasonClamped,
				Requested:   requested,
				Available:   product.Stock,
			})
		}
		if existing != nil {
			existing.Quantity = granted
			existing.UnitPrice = product.Price
			return nil
		}
		cart.Items = append(cart.Items, models.CartItem{
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  granted,
			UnitPrice: product.Price,
			AddedAt:   now,
		})
		return nil
	})
}

// UpdateItem sets the line quantity exactly. Unlike AddItem, a quantity
// above available stock is rejected so the client can surface the limit.
// A quantity of zero deletes the line. Updating a product that is not in
// the cart, including when the user had no cart at all, is a not-found
// error.
func (s *service) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if quantity == 0 {
		// no product lookup: the line must go even if the product
		// vanished from the catalog
		return s.mutate(ctx, userID, true, func(cart *models.Cart, _ *[]Adjustment) error {
			item := cart.ItemFor(productID)
			if item == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
			}
			kept := cart.Items[:0]
			for _, line := range cart.Items {
				if line.ProductID != productID {
					kept = append(kept, line)
				}
			}
			cart.Items = kept
			return nil
		})
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "requested quantity exceeds available stock").
			WithDetails(map[string]any{
				"product_id": productID,
				"requested":  quantity,
				"available":  product.Stock,
			})
	}

	return s.mutate(ctx, userID, true, func(cart *models.Cart, _ *[]Adjustment) error {
		item := cart.ItemFor(productID)
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
		}
		item.Quantity = quantity
		return nil
	})
}

// RemoveItem deletes the line for the product. Removing a product that is
// not in the cart is a no-op.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	return s.mutate(ctx, userID, false, func(cart *models.Cart, _ *[]Adjustment) error {
		kept := cart.Items[:0]
		for _, item := range cart.Items {
			if item.ProductID != productID {
				kept = append(kept, item)
			}
		}
		cart.Items = kept
		return nil
	})
}

// ClearCart drops every line item.
func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	return s.mutate(ctx, userID, false, func(cart *models.Cart, _ *[]Adjustment) error {
		cart.Items = nil
		return nil
	})
}

// Abandon retires the user's active cart. Line items are discarded and
// the status flips to abandoned; the next read or write starts a fresh
// cart. There is no transition back out of abandoned.
func (s *service) Abandon(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var lastErr error
	for attempt := 0; attempt < s.saveRetries; attempt++ {
		cart, err := s.repo.FindActiveByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		cart.Items = nil
		cart.Status = enums.CartStatusAbandoned
		cart.RecomputeTotals()
		cart.LastActivity = s.now()

		if err := s.persist(ctx, cart); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "abandon cart")
		}
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "cart was modified concurrently")
}

// MarkCheckedOut transitions the cart out of the active state once an
// order has been placed from it.
func (s *service) MarkCheckedOut(ctx context.Context, userID, cartID uuid.UUID) error {
	if userID == uuid.Nil || cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and cart id are required")
	}
	if err := s.repo.UpdateStatus(ctx, cartID, userID, enums.CartStatusCheckout); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart checked out")
	}
	return nil
}

// SweepAbandoned flips carts idle past the configured threshold to
// abandoned and reports how many rows changed.
func (s *service) SweepAbandoned(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.abandonAfter)
	rows, err := s.repo.MarkAbandonedBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sweep abandoned carts")
	}
	return rows, nil
}

// DeleteExpired removes carts whose expiry timestamp has passed.
func (s *service) DeleteExpired(ctx context.Context) (int64, error) {
	rows, err := s.repo.DeleteExpiredBefore(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete expired carts")
	}
	return rows, nil
}

type mutation func(cart *models.Cart, adjustments *[]Adjustment) error

// mutate runs the load-modify-save cycle with the version guard. When the
// save loses the race it reloads the cart and replays the mutation, up to
// the configured number of attempts.
func (s *service) mutate(ctx context.Context, userID uuid.UUID, createIfMissing bool, fn mutation) (*View, error) {
	var lastErr error
	for attempt := 0; attempt < s.saveRetries; attempt++ {
		cart, created, err := s.loadOrCreate(ctx, userID, createIfMissing)
		if err != nil {
			return nil, err
		}
		if cart == nil {
			now := s.now()
			return emptyView(now, now.Add(s.expiry)), nil
		}

		var adjustments []Adjustment
		if err := fn(cart, &adjustments); err != nil {
			return nil, err
		}

		now := s.now()
		cart.RecomputeTotals()
		cart.LastActivity = now
		cart.ExpiresAt = now.Add(s.expiry)

		if err := s.persist(ctx, cart); err != nil {
			if errors.Is(err, ErrVersionConflict) && !created {
				lastErr = err
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
		}

		metas, err := s.collectMetas(ctx, cart)
		if err != nil {
			return nil, err
		}
		return buildView(cart, metas, adjustments), nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "cart was modified concurrently")
}

// loadOrCreate returns the active cart, creating one lazily when allowed.
// A nil cart with nil error means there is nothing to mutate.
func (s *service) loadOrCreate(ctx context.Context, userID uuid.UUID, createIfMissing bool) (*models.Cart, bool, error) {
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err == nil {
		return cart, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if !createIfMissing {
		return nil, false, nil
	}

	now := s.now()
	created, err := s.repo.Create(ctx, &models.Cart{
		UserID:       userID,
		Status:       enums.CartStatusActive,
		LastActivity: now,
		ExpiresAt:    now.Add(s.expiry),
	})
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, true, nil
}

// persist writes line items and the version-guarded header in one
// transaction.
func (s *service) persist(ctx context.Context, cart *models.Cart) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.ReplaceItems(ctx, cart.ID, cart.Items); err != nil {
			return err
		}
		return txRepo.SaveVersioned(ctx, cart)
	})
}

// reconcile walks the cart lines against the catalog: vanished and
// inactive products are pruned, quantities are clamped to stock, and
// stale unit prices are replaced with the current catalog price. Returns
// the product metadata for rendering, the adjustments applied, and
// whether anything changed.
func (s *service) reconcile(ctx context.Context, cart *models.Cart) (map[uuid.UUID]productMeta, []Adjustment, bool, error) {
	metas := make(map[uuid.UUID]productMeta, len(cart.Items))
	var adjustments []Adjustment
	changed := false
	kept := make([]models.CartItem, 0, len(cart.Items))

	for _, item := range cart.Items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if isNotFound(err) {
				adjustments = append(adjustments, Adjustment{
					ProductID: item.ProductID,
					Reason:    AdjustmentReasonRemoved,
					Requested: item.Quantity,
				})
				changed = true
				continue
			}
			return nil, nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive || product.Stock <= 0 {
			adjustments = append(adjustments, Adjustment{
				ProductID:   item.ProductID,
				ProductName: product.Name,
				Reason:      AdjustmentReasonRemoved,
				Requested:   item.Quantity,
			})
			changed = true
			continue
		}
		if item.Quantity > product.Stock {
			adjustments = append(adjustments, Adjustment{
				ProductID:   item.ProductID,
				ProductName: product.Name,
				Reason:      AdjustmentReasonClamped,
				Requested:   item.Quantity,
				Available:   product.Stock,
			})
			item.Quantity = product.Stock
			changed = true
		}
		if !item.UnitPrice.Equal(product.Price) {
			item.UnitPrice = product.Price
			changed = true
		}
		metas[item.ProductID] = productMeta{name: product.Name, thumbnail: product.Thumbnail}
		kept = append(kept, item)
	}

	cart.Items = kept
	return metas, adjustments, changed, nil
}

func (s *service) collectMetas(ctx context.Context, cart *models.Cart) (map[uuid.UUID]productMeta, error) {
	metas := make(map[uuid.UUID]productMeta, len(cart.Items))
	for _, item := range cart.Items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		metas[item.ProductID] = productMeta{name: product.Name, thumbnail: product.Thumbnail}
	}
	return metas, nil
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	if coded := pkgerrors.As(err); coded != nil {
		return coded.Code() == pkgerrors.CodeNotFound
	}
	return false
}
