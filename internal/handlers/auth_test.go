package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopfront/apiserver/internal/services"
	"github.com/shopfront/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		setup      func(d *testDeps)
		wantStatus int
		wantBody   string
		wantLoc    string
	}{
		{
			name: "redirects to login",
			form: url.Values{"username": {" alice "}, "secret": {"pw1"}},
			setup: func(d *testDeps) {
				d.users.On("Create", mock.Anything, "alice", "pw1").Return(types.User{ID: 1, Username: "alice"}, nil)
			},
			wantStatus: http.StatusSeeOther,
			wantLoc:    "/login",
		},
		{
			name: "accepts password field",
			form: url.Values{"username": {"bob"}, "password": {"pw2"}},
			setup: func(d *testDeps) {
				d.users.On("Create", mock.Anything, "bob", "pw2").Return(types.User{ID: 2, Username: "bob"}, nil)
			},
			wantStatus: http.StatusSeeOther,
			wantLoc:    "/login",
		},
		{
			name: "duplicate username",
			form: url.Values{"username": {"alice"}, "secret": {"pw1"}},
			setup: func(d *testDeps) {
				d.users.On("Create", mock.Anything, "alice", "pw1").Return(types.User{}, services.ErrDuplicateUsername)
			},
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"username already exists"}`,
		},
		{
			name:       "missing secret",
			form:       url.Values{"username": {"alice"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `{"error":"field secret is required"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			if tt.setup != nil {
				tt.setup(d)
			}

			rec := d.do(formRequest(http.MethodPost, "/register", tt.form))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
			d.users.AssertExpectations(t)
		})
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	d := newTestDeps()
	d.auth.On("Authenticate", mock.Anything, "alice", "pw1").Return(alice, nil)
	d.sessions.On("Establish", mock.Anything, alice).Return("issued-token", nil)

	rec := d.do(formRequest(http.MethodPost, "/login", url.Values{"username": {"alice"}, "secret": {"pw1"}}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.Equal(t, "issued-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	d := newTestDeps()
	d.auth.On("Authenticate", mock.Anything, "alice", "wrong").Return(types.Identity{}, services.ErrInvalidCredentials)

	rec := d.do(formRequest(http.MethodPost, "/login", url.Values{"username": {"alice"}, "secret": {"wrong"}}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())
	d.sessions.AssertNotCalled(t, "Establish", mock.Anything, mock.Anything)
}

func TestLogin_RateLimited(t *testing.T) {
	d := newTestDeps()
	d.limit = RateLimit(1, 2)
	d.auth.On("Authenticate", mock.Anything, "alice", "wrong").Return(types.Identity{}, services.ErrInvalidCredentials)

	form := url.Values{"username": {"alice"}, "secret": {"wrong"}}
	for i := 0; i < 2; i++ {
		rec := d.do(formRequest(http.MethodPost, "/login", form))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := d.do(formRequest(http.MethodPost, "/login", form))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	d.auth.AssertNumberOfCalls(t, "Authenticate", 2)
}

func TestMe(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		d := newTestDeps()

		rec := d.do(httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthenticated"}`, rec.Body.String())
	})

	t.Run("tampered token", func(t *testing.T) {
		d := newTestDeps()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer forged")

		rec := d.do(req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		d.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("cookie session", func(t *testing.T) {
		d := newTestDeps()
		d.users.On("GetByID", mock.Anything, 1).Return(types.User{ID: 1, Username: "alice", PasswordHash: "hash"}, nil)

		rec := d.do(authed(httptest.NewRequest(http.MethodGet, "/me", nil)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"username":"alice"`)
		assert.NotContains(t, rec.Body.String(), "hash")
	})

	t.Run("bearer session", func(t *testing.T) {
		d := newTestDeps()
		d.users.On("GetByID", mock.Anything, 1).Return(types.User{ID: 1, Username: "alice"}, nil)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+validToken)

		rec := d.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLogout(t *testing.T) {
	d := newTestDeps()
	d.sessions.On("Clear", mock.Anything, validToken).Return(nil)

	rec := d.do(authed(httptest.NewRequest(http.MethodGet, "/logout", nil)))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
	d.sessions.AssertExpectations(t)
}

func TestLogout_Anonymous(t *testing.T) {
	d := newTestDeps()

	rec := d.do(httptest.NewRequest(http.MethodGet, "/logout", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	d.sessions.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
}
