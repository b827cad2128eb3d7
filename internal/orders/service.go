package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kalaa-market/kalaa-backend/internal/cart"
	"github.com/kalaa-market/kalaa-backend/internal/products"
	"github.com/kalaa-market/kalaa-backend/pkg/config"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	pkgerrors "github.com/kalaa-market/kalaa-backend/pkg/errors"
	"github.com/kalaa-market/kalaa-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, productID uuid.UUID)
}

// Service exposes checkout and order management operations.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*OrderDTO, error)
	ListMyOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error)
	ListAll(ctx context.Context, input ListInput) (*ListResult, error)
	CancelOrder(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error)
}

type service struct {
	repo     *Repository
	carts    cart.CartRepository
	products *products.Repository
	cache    cacheInvalidator
	tx       txRunner
	taxRate  decimal.Decimal
	shipping decimal.Decimal
	now      func() time.Time
}

// ServiceParams bundles the dependencies required to build an orders service.
type ServiceParams struct {
	Repo      *Repository
	CartRepo  cart.CartRepository
	Products  *products.Repository
	Cache     cacheInvalidator
	Tx        txRunner
	OrdersCfg config.OrdersConfig
}

// NewService constructs an orders service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}

	shipping, err := decimal.NewFromString(params.OrdersCfg.FlatShippingPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid flat shipping price %q: %w", params.OrdersCfg.FlatShippingPrice, err)
	}

	return &service{
		repo:     params.Repo,
		carts:    params.CartRepo,
		products: params.Products,
		cache:    params.Cache,
		tx:       params.Tx,
		taxRate:  decimal.NewFromFloat(params.OrdersCfg.TaxRatePercent),
		shipping: shipping.Round(2),
		now:      time.Now,
	}, nil
}

// CreateOrder places an order from the user's active cart. Stock is
// decremented atomically per line; any shortfall aborts the whole
// checkout.
func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	activeCart, err := s.carts.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(activeCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)

		items := make([]models.OrderItem, 0, len(activeCart.Items))
		itemsPrice := decimal.Zero
		for _, line := range activeCart.Items {
			product, err := productRepo.FindByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product no longer available").
						WithDetails(map[string]any{"product_id": line.ProductID})
				}
				return err
			}

			if err := productRepo.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				if errors.Is(err, products.ErrInsufficientStock) {
					return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for product").
						WithDetails(map[string]any{
							"product_id": line.ProductID,
							"requested":  line.Quantity,
							"available":  product.Stock,
						})
				}
				return err
			}

			items = append(items, models.OrderItem{
				ProductID: line.ProductID,
				Name:      product.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				Thumbnail: product.Thumbnail,
			})
			itemsPrice = itemsPrice.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		itemsPrice = itemsPrice.Round(2)
		taxPrice := itemsPrice.Mul(s.taxRate).Div(decimal.NewFromInt(100)).Round(2)
		totalPrice := itemsPrice.Add(taxPrice).Add(s.shipping).Round(2)

		order := &models.Order{
			UserID:          userID,
			Items:           items,
			ShippingAddress: input.ShippingAddress,
			PaymentMethod:   input.PaymentMethod,
			ItemsPrice:      itemsPrice,
			TaxPrice:        taxPrice,
			ShippingPrice:   s.shipping,
			TotalPrice:      totalPrice,
			Status:          enums.OrderStatusProcessing,
			Notes:           input.Notes,
		}
		created, err = s.repo.WithTx(tx).Create(ctx, order)
		if err != nil {
			return err
		}

		return s.carts.WithTx(tx).UpdateStatus(ctx, activeCart.ID, userID, enums.CartStatusCheckout)
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "place order")
	}

	s.invalidateAll(ctx, created.Items)
	return toOrderDTO(created), nil
}

// GetOrder returns a single order, restricted to its owner unless the
// caller is an admin.
func (s *service) GetOrder(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadVisible(ctx, userID, role, orderID)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

// ListMyOrders pages through the caller's own orders.
func (s *service) ListMyOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.ListAll(ctx, ListInput{UserID: &userID, Pagination: params})
}

// ListAll pages through orders matching the filters. The admin surface.
func (s *service) ListAll(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	rows, total, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toOrderDTO(&rows[i]))
	}
	return &ListResult{
		Orders: dtos,
		Page:   pagination.BuildPage(input.Pagination, total),
	}, nil
}

// CancelOrder cancels a processing order and returns its stock.
func (s *service) CancelOrder(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadVisible(ctx, userID, role, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanCancel() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
			WithDetails(map[string]any{"status": order.Status})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)
		for _, item := range order.Items {
			if err := productRepo.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		_, err := s.repo.WithTx(tx).Save(ctx, order)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}

	s.invalidateAll(ctx, order.Items)
	return toOrderDTO(order), nil
}

// UpdateStatus applies an admin transition (shipped, delivered).
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.Status != enums.OrderStatusShipped && input.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be shipped or delivered")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot change status")
	}

	order.Status = input.Status
	if input.TrackingNumber != nil {
		order.TrackingNumber = input.TrackingNumber
	}
	if input.Status == enums.OrderStatusDelivered {
		now := s.now().UTC()
		order.DeliveredAt = &now
	}

	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}
	return toOrderDTO(saved), nil
}

func (s *service) loadVisible(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id are required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != userID && role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) invalidateAll(ctx context.Context, items []models.OrderItem) {
	if s.cache == nil {
		return
	}
	for _, item := range items {
		s.cache.Invalidate(ctx, item.ProductID)
	}
}
