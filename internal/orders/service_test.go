package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kalaa-market/kalaa-backend/internal/cart"
	"github.com/kalaa-market/kalaa-backend/internal/products"
	"github.com/kalaa-market/kalaa-backend/pkg/config"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	pkgerrors "github.com/kalaa-market/kalaa-backend/pkg/errors"
	"github.com/kalaa-market/kalaa-backend/pkg/pagination"
	"github.com/kalaa-market/kalaa-backend/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

type recordingInvalidator struct {
	productIDs []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, productID uuid.UUID) {
	r.productIDs = append(r.productIDs, productID)
}

type orderFixture struct {
	svc      Service
	orders   *Repository
	carts    *cart.Repository
	products *products.Repository
	cache    *recordingInvalidator
	db       *gorm.DB
}

func setupOrderService(t *testing.T) *orderFixture {
	t.Helper()

	db := setupOrdersTestDB(t)

	carts := `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  total_items INTEGER NOT NULL DEFAULT 0,
  total_amount TEXT NOT NULL DEFAULT '0',
  version INTEGER NOT NULL DEFAULT 0,
  last_activity DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	cartItems := `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  added_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	productsTable := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  artist_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  category TEXT NOT NULL,
  price TEXT NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  thumbnail TEXT NOT NULL,
  images TEXT,
  tags TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  is_featured INTEGER NOT NULL DEFAULT 0,
  average_rating REAL NOT NULL DEFAULT 0,
  num_reviews INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, ddl := range []string{carts, cartItems, productsTable} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	for _, table := range []string{"carts", "cart_items", "products"} {
		require.NoError(t, db.Exec("DELETE FROM " + table).Error)
	}

	orderRepo := NewRepository(db)
	cartRepo := cart.NewRepository(db)
	productRepo := products.NewRepository(db)
	cache := &recordingInvalidator{}

	svc, err := NewService(ServiceParams{
		Repo:     orderRepo,
		CartRepo: cartRepo,
		Products: productRepo,
		Cache:    cache,
		Tx:       gormTxRunner{db: db},
		OrdersCfg: config.OrdersConfig{
			TaxRatePercent:    10,
			FlatShippingPrice: "5.00",
		},
	})
	require.NoError(t, err)

	return &orderFixture{
		svc:      svc,
		orders:   orderRepo,
		carts:    cartRepo,
		products: productRepo,
		cache:    cache,
		db:       db,
	}
}

func (f *orderFixture) seedProduct(t *testing.T, name string, price string, stock int) *models.Product {
	t.Helper()
	product, err := f.products.Create(context.Background(), &models.Product{
		ArtistID:    uuid.New(),
		Name:        name,
		Description: "handmade",
		Category:    enums.ProductCategoryHome,
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		Thumbnail:   "thumb.jpg",
		IsActive:    true,
	})
	require.NoError(t, err)
	return product
}

func (f *orderFixture) seedActiveCart(t *testing.T, userID uuid.UUID, items ...models.CartItem) *models.Cart {
	t.Helper()
	now := time.Now().UTC()
	created, err := f.carts.Create(context.Background(), &models.Cart{
		UserID:       userID,
		Status:       enums.CartStatusActive,
		LastActivity: now,
		ExpiresAt:    now.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)
	if len(items) > 0 {
		require.NoError(t, f.carts.ReplaceItems(context.Background(), created.ID, items))
	}
	return created
}

func checkoutAddress() types.Address {
	return types.Address{
		Line1:      "12 Pottery Lane",
		City:       "Jaipur",
		PostalCode: "302001",
		Country:    "IN",
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	coded := pkgerrors.As(err)
	require.NotNil(t, coded, "expected coded error %s, got %v", code, err)
	require.Equal(t, code, coded.Code())
	return coded
}

func TestCreateOrderFromCart(t *testing.T) {
	f := setupOrderService(t)
	userID := uuid.New()
	ctx := context.Background()

	vase := f.seedProduct(t, "Ceramic Vase", "45.00", 5)
	scarf := f.seedProduct(t, "Handwoven Scarf", "20.00", 3)
	addedAt := time.Now().UTC()
	activeCart := f.seedActiveCart(t, userID,
		models.CartItem{ProductID: vase.ID, Quantity: 1, UnitPrice: vase.Price, AddedAt: addedAt},
		models.CartItem{ProductID: scarf.ID, Quantity: 2, UnitPrice: scarf.Price, AddedAt: addedAt.Add(time.Minute)},
	)

	order, err := f.svc.CreateOrder(ctx, userID, CreateOrderInput{
		ShippingAddress: checkoutAddress(),
		PaymentMethod:   enums.PaymentMethodCreditCard,
	})
	require.NoError(t, err)

	// 45 + 2*20 = 85, tax 10% = 8.50, shipping 5.00
	assert.True(t, order.ItemsPrice.Equal(decimal.RequireFromString("85.00")), "items price %s", order.ItemsPrice)
	assert.True(t, order.TaxPrice.Equal(decimal.RequireFromString("8.50")), "tax price %s", order.TaxPrice)
	assert.True(t, order.ShippingPrice.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("98.50")), "total price %s", order.TotalPrice)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Ceramic Vase", order.Items[0].Name)

	vaseAfter, err := f.products.FindByID(ctx, vase.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, vaseAfter.Stock)
	scarfAfter, err := f.products.FindByID(ctx, scarf.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, scarfAfter.Stock)

	var cartStatus string
	require.NoError(t, f.db.Raw("SELECT status FROM carts WHERE id = ?", activeCart.ID).Scan(&cartStatus).Error)
	assert.Equal(t, string(enums.CartStatusCheckout), cartStatus)

	assert.ElementsMatch(t, []uuid.UUID{vase.ID, scarf.ID}, f.cache.productIDs)
}

func TestCreateOrderRequiresNonEmptyCart(t *testing.T) {
	f := setupOrderService(t)
	userID := uuid.New()

	_, err := f.svc.CreateOrder(context.Background(), userID, CreateOrderInput{
		ShippingAddress: checkoutAddress(),
		PaymentMethod:   enums.PaymentMethodCreditCard,
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	f.seedActiveCart(t, userID)
	_, err = f.svc.CreateOrder(context.Background(), userID, CreateOrderInput{
		ShippingAddress: checkoutAddress(),
		PaymentMethod:   enums.PaymentMethodCreditCard,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateOrderRejectsInvalidPaymentMethod(t *testing.T) {
	f := setupOrderService(t)

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		ShippingAddress: checkoutAddress(),
		PaymentMethod:   enums.PaymentMethod("cheque"),
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateOrderinsufficientStockRollsBack(t *testing.T) {
	f := setupOrderService(t)
	userID := uuid.New()
	ctx := context.Background()

	vase := f.seedProduct(t, "Ceramic Vase", "45.00", 5)
	lamp := f.seedProduct(t, "Brass Lamp", "60.00", 1)
	activeCart := f.seedActiveCart(t, userID,
		models.CartItem{ProductID: vase.ID, Quantity: 2, UnitPrice: vase.Price, AddedAt: time.Now().UTC()},
		models.CartItem{ProductID: lamp.ID, Quantity: 3, UnitPrice: lamp.Price, AddedAt: time.Now().UTC()},
	)

	_, err := f.svc.CreateOrder(ctx, userID, CreateOrderInput{
		ShippingAddress: checkoutAddress(),
		PaymentMethod:   enums.PaymentMethodCreditCard,
	})
	coded := assertCode(t, err, pkgerrors.CodeInsufficientStock)
	details, ok := coded.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, lamp.ID, details["product_id"])
	assert.Equal(t, 3, details["requested"])
	assert.Equal(t, 1, details["available"])

	// whole checkout rolled back: stock untouched, cart still active
	vaseAfter, err := f.products.FindByID(ctx, vase.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, vaseAfter.Stock)

	cartAfter, err := f.carts.FindActiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, activeCart.ID, cartAfter.ID)
	assert.Empty(t, f.cache.productIDs)
}

func TestGetOrderVisibility(t *testing.T) {
	f := setupOrderService(t)
	ownerID := uuid.New()
	ctx := context.Background()

	created := seedOrder(t, f.orders, ownerID, nil)

	got, err := f.svc.GetOrder(ctx, ownerID, enums.UserRoleUser, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.svc.GetOrder(ctx, uuid.New(), enums.UserRoleUser, created.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)

	got, err = f.svc.GetOrder(ctx, uuid.New(), enums.UserRoleAdmin, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestCancelOrderRestocksItems(t *testing.T) {
	f := setupOrderService(t)
	userID := uuid.New()
	ctx := context.Background()

	vase := f.seedProduct(t, "Ceramic Vase", "45.00", 3)
	created := seedOrder(t, f.orders, userID, func(o *models.Order) {
		o.Items = []models.OrderItem{{
			ProductID: vase.ID,
			Name:      vase.Name,
			Quantity:  2,
			UnitPrice: vase.Price,
			Thumbnail: vase.Thumbnail,
		}}
	})

	cancelled, err := f.svc.CancelOrder(ctx, userID, enums.UserRoleUser, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	vaseAfter, err := f.products.FindByID(ctx, vase.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, vaseAfter.Stock)
	assert.Contains(t, f.cache.productIDs, vase.ID)
}

func TestCancelOrderRejectsShipped(t *testing.T) {
	f := setupOrderService(t)
	userID := uuid.New()

	created := seedOrder(t, f.orders, userID, func(o *models.Order) {
		o.Status = enums.OrderStatusShipped
	})

	_, err := f.svc.CancelOrder(context.Background(), userID, enums.UserRoleUser, created.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()

	created := seedOrder(t, f.orders, uuid.New(), nil)
	tracking := "TRK-42"

	shipped, err := f.svc.UpdateStatus(ctx, created.ID, UpdateStatusInput{
		Status:         enums.OrderStatusShipped,
		TrackingNumber: &tracking,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, shipped.Status)
	require.NotNil(t, shipped.TrackingNumber)
	assert.Equal(t, "TRK-42", *shipped.TrackingNumber)
	assert.Nil(t, shipped.DeliveredAt)

	delivered, err := f.svc.UpdateStatus(ctx, created.ID, UpdateStatusInput{
		Status: enums.OrderStatusDelivered,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
}

func TestUpdateStatusRejectsInvalidTransitions(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()

	created := seedOrder(t, f.orders, uuid.New(), nil)

	_, err := f.svc.UpdateStatus(ctx, created.ID, UpdateStatusInput{Status: enums.OrderStatusProcessing})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), UpdateStatusInput{Status: enums.OrderStatusShipped})
	assertCode(t, err, pkgerrors.CodeNotFound)

	cancelled := seedOrder(t, f.orders, uuid.New(), func(o *models.Order) {
		o.Status = enums.OrderStatusCancelled
	})
	_, err = f.svc.UpdateStatus(ctx, cancelled.ID, UpdateStatusInput{Status: enums.OrderStatusShipped})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestListMyOrdersScopesToUser(t *testing.T) {
	f := setupOrderService(t)
	userID := uuid.New()
	ctx := context.Background()

	seedOrder(t, f.orders, userID, nil)
	seedOrder(t, f.orders, userID, nil)
	seedOrder(t, f.orders, uuid.New(), nil)

	result, err := f.svc.ListMyOrders(ctx, userID, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, result.Orders, 2)
	assert.Equal(t, int64(2), result.Page.TotalItems)
	for _, order := range result.Orders {
		assert.Equal(t, userID, order.UserID)
	}
}
