//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopfront/apiserver/config"
	"github.com/shopfront/apiserver/internal/db"
	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/internal/server"
	"github.com/shopfront/apiserver/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const serverPort = 18080

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("shopfront_db"),
		postgres.WithUsername("shopfront"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		return 1
	}
	defer func() {
		_ = pgContainer.Terminate(context.Background())
	}()

	cfg, err := testConfig(ctx, pgContainer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build config: %v\n", err)
		return 1
	}

	if err := runMigrations(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		return 1
	}

	srv, err := server.New(ctx, cfg, logging.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		return 1
	}
	go func() {
		_ = srv.Start()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		return 1
	}

	return m.Run()
}

func testConfig(ctx context.Context, pg *postgres.PostgresContainer) (config.Config, error) {
	host, err := pg.Host(ctx)
	if err != nil {
		return config.Config{}, err
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return config.Config{}, err
	}

	return config.Config{
		Env:        "test",
		ServerPort: serverPort,
		BcryptCost: 4,
		Database: config.DatabaseConfig{
			Driver:   "pgx",
			Host:     host,
			Port:     port.Int(),
			User:     "shopfront",
			Password: "password",
			DBName:   "shopfront_db",
		},
		Session: config.SessionConfig{
			Secret:  "e2e-secret",
			TTL:     time.Hour,
			Backend: "memory",
		},
		RateLimit: config.RateLimitConfig{PerMinute: 600, Burst: 100},
		MQ:        config.MQConfig{OrdersChannel: "orders.created"},
	}, nil
}

func runMigrations(cfg config.Config) error {
	dir, err := filepath.Abs(filepath.Join("..", "..", "db", "migrations"))
	if err != nil {
		return err
	}
	migrator, err := migrate.New("file://"+dir, db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func waitForHealth(ctx context.Context, endpoint string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		resp, err := http.Get(endpoint)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newClient returns a client that keeps cookies and does not follow redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, client *http.Client, method, path string, form url.Values) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, baseURL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, client *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := client.Get(baseURL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func signUp(t *testing.T, username, secret string) *http.Client {
	t.Helper()
	client := newClient(t)

	resp := postForm(t, client, http.MethodPost, "/register", url.Values{"username": {username}, "secret": {secret}})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))

	resp = postForm(t, client, http.MethodPost, "/login", url.Values{"username": {username}, "secret": {secret}})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	return client
}

func uniqueName(prefix string) string {
	return prefix + "_" + strconv.FormatInt(time.Now().UnixNano(), 36)
}

func TestCheckoutScenario(t *testing.T) {
	alice := uniqueName("alice")
	client := signUp(t, alice, "pw1")

	me := decode[types.User](t, get(t, client, "/me"))
	assert.Equal(t, alice, me.Username)

	resp := postForm(t, client, http.MethodPost, "/products", url.Values{"name": {"Widget"}, "price": {"9.99"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	product := decode[types.Product](t, resp)
	assert.Equal(t, me.ID, product.OwnerID)

	resp = get(t, client, fmt.Sprintf("/checkout/%d", product.ID))
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/orders", resp.Header.Get("Location"))

	// Later edits must not change the recorded order.
	resp = postForm(t, client, http.MethodPut, fmt.Sprintf("/products/%d", product.ID), url.Values{"name": {"Widget Pro"}, "price": {"19.99"}})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	orders := decode[[]types.Order](t, get(t, client, "/orders"))
	require.Len(t, orders, 1)
	assert.Equal(t, "Widget", orders[0].ProductName)
	assert.True(t, decimal.RequireFromString("9.99").Equal(orders[0].TotalPrice))

	resp = get(t, client, "/checkout/999999")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	wrong := newClient(t)
	resp = postForm(t, wrong, http.MethodPost, "/login", url.Values{"username": {alice}, "secret": {"wrong"}})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postForm(t, wrong, http.MethodPost, "/register", url.Values{"username": {alice}, "secret": {"other"}})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestOrdersAndProductsAreScopedToOwner(t *testing.T) {
	alice := signUp(t, uniqueName("alice"), "pw1")
	bob := signUp(t, uniqueName("bob"), "pw2")

	resp := postForm(t, alice, http.MethodPost, "/products", url.Values{"name": {"Lamp"}, "price": {"15.00"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	lamp := decode[types.Product](t, resp)

	resp = get(t, alice, fmt.Sprintf("/checkout/%d", lamp.ID))
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	bobOrders := decode[[]types.Order](t, get(t, bob, "/orders"))
	assert.Empty(t, bobOrders)

	resp = postForm(t, bob, http.MethodPut, fmt.Sprintf("/products/%d", lamp.ID), url.Values{"name": {"Stolen"}, "price": {"0"}})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/products/%d", baseURL, lamp.ID), nil)
	require.NoError(t, err)
	resp, err = bob.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCategoryInUseCannotBeDeleted(t *testing.T) {
	client := signUp(t, uniqueName("carol"), "pw3")

	resp := postForm(t, client, http.MethodPost, "/categories", url.Values{"name": {uniqueName("Tools")}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	category := decode[types.Category](t, resp)

	resp = postForm(t, client, http.MethodPost, "/products", url.Values{
		"name":        {"Hammer"},
		"price":       {"12.50"},
		"category_id": {strconv.Itoa(category.ID)},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/categories/%d", baseURL, category.ID), nil)
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLogoutRevokesSession(t *testing.T) {
	client := signUp(t, uniqueName("dave"), "pw4")

	resp := get(t, client, "/me")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, client, "/logout")
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = get(t, client, "/me")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
