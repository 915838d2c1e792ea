package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/types"
	"github.com/stretchr/testify/mock"
)

type MockRegistrar struct{ mock.Mock }

func (m *MockRegistrar) Create(ctx context.Context, username, secret string) (types.User, error) {
	args := m.Called(ctx, username, secret)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *MockRegistrar) GetByID(ctx context.Context, id int) (types.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.User), args.Error(1)
}

type MockAuthenticator struct{ mock.Mock }

func (m *MockAuthenticator) Authenticate(ctx context.Context, username, secret string) (types.Identity, error) {
	args := m.Called(ctx, username, secret)
	return args.Get(0).(types.Identity), args.Error(1)
}

type MockSessions struct{ mock.Mock }

func (m *MockSessions) Establish(ctx context.Context, identity types.Identity) (string, error) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Error(1)
}

func (m *MockSessions) Resolve(ctx context.Context, token string) (types.Identity, bool) {
	args := m.Called(ctx, token)
	return args.Get(0).(types.Identity), args.Bool(1)
}

func (m *MockSessions) Clear(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockSessions) TTL() time.Duration { return time.Hour }

type MockProducts struct{ mock.Mock }

func (m *MockProducts) List(ctx context.Context, filter types.ProductFilter, offset, limit int) ([]types.Product, int, error) {
	args := m.Called(ctx, filter, offset, limit)
	return args.Get(0).([]types.Product), args.Int(1), args.Error(2)
}

func (m *MockProducts) Get(ctx context.Context, id int) (types.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Product), args.Error(1)
}

func (m *MockProducts) Create(ctx context.Context, identity types.Identity, product types.Product) (types.Product, error) {
	args := m.Called(ctx, identity, product)
	return args.Get(0).(types.Product), args.Error(1)
}

func (m *MockProducts) Update(ctx context.Context, identity types.Identity, product types.Product) (types.Product, error) {
	args := m.Called(ctx, identity, product)
	return args.Get(0).(types.Product), args.Error(1)
}

func (m *MockProducts) Delete(ctx context.Context, identity types.Identity, id int) error {
	return m.Called(ctx, identity, id).Error(0)
}

func (m *MockProducts) OpenImage(ctx context.Context, id int) (io.ReadCloser, string, error) {
	args := m.Called(ctx, id)
	var reader io.ReadCloser
	if r := args.Get(0); r != nil {
		reader = r.(io.ReadCloser)
	}
	return reader, args.String(1), args.Error(2)
}

type MockCategories struct{ mock.Mock }

func (m *MockCategories) List(ctx context.Context) ([]types.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]types.Category), args.Error(1)
}

func (m *MockCategories) Create(ctx context.Context, identity types.Identity, name string) (types.Category, error) {
	args := m.Called(ctx, identity, name)
	return args.Get(0).(types.Category), args.Error(1)
}

func (m *MockCategories) Delete(ctx context.Context, identity types.Identity, id int) error {
	return m.Called(ctx, identity, id).Error(0)
}

type MockOrders struct{ mock.Mock }

func (m *MockOrders) Checkout(ctx context.Context, identity types.Identity, productID int) (types.Order, error) {
	args := m.Called(ctx, identity, productID)
	return args.Get(0).(types.Order), args.Error(1)
}

func (m *MockOrders) ListOrders(ctx context.Context, identity types.Identity) ([]types.Order, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).([]types.Order), args.Error(1)
}

const validToken = "valid-token"

var alice = types.Identity{UserID: 1, Username: "alice"}

type testDeps struct {
	users      *MockRegistrar
	auth       *MockAuthenticator
	sessions   *MockSessions
	products   *MockProducts
	categories *MockCategories
	orders     *MockOrders
	limit      func(http.Handler) http.Handler
}

func newTestDeps() *testDeps {
	sessions := &MockSessions{}
	sessions.On("Resolve", mock.Anything, validToken).Return(alice, true).Maybe()
	sessions.On("Resolve", mock.Anything, mock.Anything).Return(types.Identity{}, false).Maybe()

	return &testDeps{
		users:      &MockRegistrar{},
		auth:       &MockAuthenticator{},
		sessions:   sessions,
		products:   &MockProducts{},
		categories: &MockCategories{},
		orders:     &MockOrders{},
		limit:      RateLimit(0, 0),
	}
}

func (d *testDeps) router() http.Handler {
	log := logging.Discard()
	auth := NewAuthHandler(d.users, d.auth, d.sessions, nil, false, log)

	r := chi.NewRouter()
	r.Use(auth.LoadIdentity)
	AuthRouter(r, auth, d.limit)
	OrderRouter(r, NewOrderHandler(d.orders, nil, log))
	r.Route("/products", func(r chi.Router) {
		ProductRouter(r, NewProductHandler(d.products, log))
	})
	r.Route("/categories", func(r chi.Router) {
		CategoryRouter(r, NewCategoryHandler(d.categories, log))
	})
	return r
}

func (d *testDeps) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	d.router().ServeHTTP(rec, req)
	return rec
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func authed(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: validToken})
	return req
}
