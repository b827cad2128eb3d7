package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kalaa-market/kalaa-backend/internal/auth"
	"github.com/kalaa-market/kalaa-backend/internal/cart"
	"github.com/kalaa-market/kalaa-backend/internal/orders"
	"github.com/kalaa-market/kalaa-backend/internal/products"
	"github.com/kalaa-market/kalaa-backend/internal/users"
	pkgAuth "github.com/kalaa-market/kalaa-backend/pkg/auth"
	"github.com/kalaa-market/kalaa-backend/pkg/config"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	"github.com/kalaa-market/kalaa-backend/pkg/logger"
	"github.com/kalaa-market/kalaa-backend/pkg/pagination"
)

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(context.Context, string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{}, nil
}

func (stubAuthService) Refresh(context.Context, auth.RefreshRequest) (*auth.RefreshResponse, error) {
	return &auth.RefreshResponse{}, nil
}

func (stubAuthService) Logout(context.Context, string) error {
	return nil
}

type stubRegisterService struct{}

func (stubRegisterService) Register(context.Context, auth.RegisterRequest) (*users.UserDTO, error) {
	return &users.UserDTO{}, nil
}

type stubProductService struct{}

func (stubProductService) CreateProduct(context.Context, uuid.UUID, enums.UserRole, products.CreateProductInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{}, nil
}

func (stubProductService) UpdateProduct(context.Context, uuid.UUID, enums.UserRole, uuid.UUID, products.UpdateProductInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{}, nil
}

func (stubProductService) DeleteProduct(context.Context, uuid.UUID, enums.UserRole, uuid.UUID) error {
	return nil
}

func (stubProductService) GetProduct(context.Context, uuid.UUID) (*products.ProductDTO, []products.RatingDTO, error) {
	return &products.ProductDTO{}, nil, nil
}

func (stubProductService) GetByID(context.Context, uuid.UUID) (*models.Product, error) {
	return &models.Product{}, nil
}

func (stubProductService) ListProducts(context.Context, products.ListInput) (*products.ListResult, error) {
	return &products.ListResult{}, nil
}

func (stubProductService) ListByArtist(context.Context, uuid.UUID) ([]products.ProductDTO, error) {
	return nil, nil
}

func (stubProductService) RateProduct(context.Context, uuid.UUID, uuid.UUID, products.RatingInput) (*products.RatingDTO, error) {
	return &products.RatingDTO{}, nil
}

func (stubProductService) Invalidate(context.Context, uuid.UUID) {}

type stubCartService struct{}

func (stubCartService) GetCart(context.Context, uuid.UUID) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) AddItem(context.Context, uuid.UUID, uuid.UUID, int) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) UpdateItem(context.Context, uuid.UUID, uuid.UUID, int) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) RemoveItem(context.Context, uuid.UUID, uuid.UUID) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) ClearCart(context.Context, uuid.UUID) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) Abandon(context.Context, uuid.UUID) error {
	return nil
}

func (stubCartService) MarkCheckedOut(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (stubCartService) SweepAbandoned(context.Context) (int64, error) {
	return 0, nil
}

func (stubCartService) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

type stubOrdersService struct{}

func (stubOrdersService) CreateOrder(context.Context, uuid.UUID, orders.CreateOrderInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{}, nil
}

func (stubOrdersService) GetOrder(context.Context, uuid.UUID, enums.UserRole, uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{}, nil
}

func (stubOrdersService) ListMyOrders(context.Context, uuid.UUID, pagination.Params) (*orders.ListResult, error) {
	return &orders.ListResult{}, nil
}

func (stubOrdersService) ListAll(context.Context, orders.ListInput) (*orders.ListResult, error) {
	return &orders.ListResult{}, nil
}

func (stubOrdersService) CancelOrder(context.Context, uuid.UUID, enums.UserRole, uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{}, nil
}

func (stubOrdersService) UpdateStatus(context.Context, uuid.UUID, orders.UpdateStatusInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{}, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "router-test-secret",
		Issuer:            "kalaa-test",
		ExpirationMinutes: 15,
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{JWT: testJWTConfig()}
	return NewRouter(RouterParams{
		Config:          cfg,
		Logger:          logger.New(logger.Options{ServiceName: "router-test"}),
		SessionChecker:  stubSessionChecker{},
		AuthService:     stubAuthService{},
		RegisterService: stubRegisterService{},
		ProductService:  stubProductService{},
		CartService:     stubCartService{},
		OrdersService:   stubOrdersService{},
	})
}

func mintToken(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testJWTConfig(), time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterPublicProductsOpen(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterCartRequiresAuth(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouterCartWithToken(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.UserRoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouterCartUpdateRequiresQuantityField(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/"+uuid.NewString(), strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.UserRoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for omitted quantity, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/"+uuid.NewString(), strings.NewReader(`{"quantity":0}`))
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.UserRoleUser))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for explicit zero, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouterProductCreateNeedsArtistRole(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.UserRoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRouterAdminOrdersNeedsAdminRole(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.UserRoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.UserRoleAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
