package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/internal/cart"
	checkoutsvc "github.com/shoplane/shoplane-backend/internal/checkout"
	"github.com/shoplane/shoplane-backend/internal/orders"
	"github.com/shoplane/shoplane-backend/pkg/config"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	"github.com/shoplane/shoplane-backend/pkg/pagination"
	"github.com/shoplane/shoplane-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCartService struct{}

func (stubCartService) Resolve(context.Context, types.Identity) (*models.Cart, error) {
	return &models.Cart{}, nil
}

func (stubCartService) AddItem(context.Context, types.Identity, uuid.UUID, int) (*cart.CartView, error) {
	return cart.BuildView(&models.Cart{}), nil
}

func (stubCartService) UpdateItem(context.Context, types.Identity, uuid.UUID, int) (*cart.CartView, error) {
	return cart.BuildView(&models.Cart{}), nil
}

func (stubCartService) RemoveItem(context.Context, types.Identity, uuid.UUID) (*cart.CartView, error) {
	return cart.BuildView(&models.Cart{}), nil
}

func (stubCartService) Clear(context.Context, types.Identity) error {
	return nil
}

func (stubCartService) GetCart(context.Context, types.Identity) (*cart.CartView, error) {
	return cart.BuildView(&models.Cart{}), nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) PlaceOrder(context.Context, types.Identity, checkoutsvc.PlaceOrderInput) (*models.Order, error) {
	return &models.Order{Status: enums.OrderStatusPending}, nil
}

type stubOrdersService struct{}

func (stubOrdersService) GetByID(context.Context, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) GetForOwner(context.Context, types.CartOwner, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) ListByOwner(context.Context, types.CartOwner, pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (stubOrdersService) List(context.Context, pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (stubOrdersService) UpdateStatus(context.Context, uuid.UUID, enums.OrderStatus) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) UpdateShippingDetails(context.Context, uuid.UUID, orders.ShippingPatch) (*models.Order, error) {
	return &models.Order{}, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "router-test-secret", Issuer: "shoplane-test", ExpirationMinutes: 60}
	cfg.Session = config.SessionConfig{CookieName: "shoplane_session", TTL: 720 * time.Hour}

	return NewRouter(cfg, nil, stubPinger{}, nil, stubCartService{}, stubCheckoutService{}, stubOrdersService{})
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := testRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestRouterMintsGuestSession(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "shoplane_session" {
		t.Fatalf("expected a minted session cookie, got %v", cookies)
	}
}

func TestRouterRejectsUnknownOrderID(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRouterAdminRoutesRequireAuth(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRouterCheckoutWithoutIdempotencyStore(t *testing.T) {
	// Without a redis client the idempotency middleware is a pass-through,
	// so a valid checkout body reaches the service.
	router := testRouter(t)

	body := `{"shipping":{"name":"Tess","email":"tess@example.com","line1":"1 Main St","city":"Springfield","postal_code":"12345","country":"US"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}
