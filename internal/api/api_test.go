package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/IlyasAtabaev731/finance/internal/config"
	"github.com/IlyasAtabaev731/finance/internal/domain/models"
	"github.com/IlyasAtabaev731/finance/internal/lib/jwt"
	"github.com/IlyasAtabaev731/finance/internal/quote"
	"github.com/IlyasAtabaev731/finance/internal/services/trading"
	"github.com/IlyasAtabaev731/finance/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ========================================================
// Test harness
// ========================================================

type harness struct {
	server *APIServer
	store  *memory.Storage
	quotes *quote.Static
	cfg    *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{
		ApiHost: "localhost",
		ApiPort: 8080,
		Auth: config.Auth{
			JWTSecret:  "secret",
			TokenTTL:   time.Hour,
			CookieName: "session",
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.New()
	quotes := quote.NewStatic()
	quotes.Set("AAPL", "Apple Inc.", decimal.RequireFromString("150.00"))
	quotes.Set("NFLX", "Netflix Inc.", decimal.RequireFromString("1000.00"))

	svc := trading.New(logger, store, quotes, decimal.RequireFromString("10000.00"), trading.WithHashCost(bcrypt.MinCost))

	return &harness{
		server: New(cfg, logger, svc),
		store:  store,
		quotes: quotes,
		cfg:    cfg,
	}
}

func (h *harness) do(t *testing.T, method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rr, req)
	return rr
}

// login registers username and returns the session cookie issued by /login.
func (h *harness) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	rr := h.do(t, http.MethodPost, "/register", url.Values{
		"username": {username}, "password": {password}, "confirmation": {password},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())

	rr = h.do(t, http.MethodPost, "/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())

	c := lastCookie(rr, h.cfg.Auth.CookieName)
	require.NotNil(t, c)
	require.NotEmpty(t, c.Value)
	return c
}

func lastCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func (h *harness) cash(t *testing.T, username string) decimal.Decimal {
	t.Helper()
	u, err := h.store.UserByName(context.Background(), username)
	require.NoError(t, err)
	return u.Cash
}

// ========================================================
// Cross-cutting behaviour
// ========================================================

func TestResponsesAreNotCached(t *testing.T) {
	h := newHarness(t)

	for _, target := range []string{"/login", "/register", "/", "/healthz", "/missing"} {
		rr := h.do(t, http.MethodGet, target, nil)
		assert.Equal(t, "no-cache, no-store, must-revalidate", rr.Header().Get("Cache-Control"), target)
		assert.Equal(t, "0", rr.Header().Get("Expires"), target)
		assert.Equal(t, "no-cache", rr.Header().Get("Pragma"), target)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	h := newHarness(t)

	for _, target := range []string{"/", "/buy", "/history", "/quote", "/change_password"} {
		rr := h.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusSeeOther, rr.Code, target)
		assert.Equal(t, "/login", rr.Header().Get("Location"), target)
	}

	rr := h.do(t, http.MethodPost, "/buy", url.Values{"symbol": {"AAPL"}, "shares": {"1"}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}

func TestInvalidSessionIsRejected(t *testing.T) {
	h := newHarness(t)

	forged, err := jwt.NewToken(&models.User{ID: 1, Username: "alice"}, "wrong-secret", time.Hour)
	require.NoError(t, err)

	rr := h.do(t, http.MethodGet, "/", nil, &http.Cookie{Name: "session", Value: forged})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}

func TestSessionForDeletedUserLogsOut(t *testing.T) {
	h := newHarness(t)

	token, err := jwt.NewToken(&models.User{ID: 404, Username: "ghost"}, "secret", time.Hour)
	require.NoError(t, err)

	rr := h.do(t, http.MethodGet, "/", nil, &http.Cookie{Name: "session", Value: token})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	c := lastCookie(rr, "session")
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPut, "/buy", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

// ========================================================
// Registration, login, logout, password change
// ========================================================

func TestRegisterLoginFlow(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/register", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="confirmation"`)

	rr = h.do(t, http.MethodPost, "/register", url.Values{
		"username": {"alice"}, "password": {"p"}, "confirmation": {"p"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	flash := lastCookie(rr, "flash")
	require.NotNil(t, flash)

	rr = h.do(t, http.MethodGet, "/login", nil, flash)
	assert.Contains(t, rr.Body.String(), "Registered!")

	rr = h.do(t, http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"p"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	session := lastCookie(rr, "session")
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	rr = h.do(t, http.MethodGet, "/", nil, session)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "$10,000.00")
}

func TestRegisterErrors(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", "p")

	tests := []struct {
		name string
		form url.Values
		msg  string
	}{
		{"missing username", url.Values{"password": {"p"}, "confirmation": {"p"}}, "must provide username"},
		{"missing password", url.Values{"username": {"bob"}, "confirmation": {"p"}}, "must provide password"},
		{"missing confirmation", url.Values{"username": {"bob"}, "password": {"p"}}, "must provide confirmation"},
		{"mismatch", url.Values{"username": {"bob"}, "password": {"p"}, "confirmation": {"q"}}, "passwords do not match"},
		{"duplicate", url.Values{"username": {"alice"}, "password": {"q"}, "confirmation": {"q"}}, "username already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(t, http.MethodPost, "/register", tt.form)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.msg)
		})
	}
}

func TestLoginFailuresAreForbidden(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", "p")

	tests := []struct {
		name string
		form url.Values
		msg  string
	}{
		{"missing username", url.Values{"password": {"p"}}, "must provide username"},
		{"missing password", url.Values{"username": {"alice"}}, "must provide password"},
		{"wrong password", url.Values{"username": {"alice"}, "password": {"x"}}, "invalid username and/or password"},
		{"unknown user", url.Values{"username": {"mallory"}, "password": {"p"}}, "invalid username and/or password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(t, http.MethodPost, "/login", tt.form)
			assert.Equal(t, http.StatusForbidden, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.msg)
		})
	}
}

func TestLogoutClearsSession(t *testing.T) {
	h := newHarness(t)
	session := h.login(t, "alice", "p")

	rr := h.do(t, http.MethodGet, "/logout", nil, session)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	c := lastCookie(rr, "session")
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.True(t, c.MaxAge < 0)
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	session := h.login(t, "alice", "p")

	rr := h.do(t, http.MethodPost, "/change_password", url.Values{
		"current_password": {"x"}, "new_password": {"q"}, "confirmation": {"q"},
	}, session)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid current password")

	rr = h.do(t, http.MethodPost, "/change_password", url.Values{
		"current_password": {"p"}, "new_password": {"q"}, "confirmation": {"r"},
	}, session)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "new passwords do not match")

	rr = h.do(t, http.MethodPost, "/change_password", url.Values{
		"current_password": {"p"}, "new_password": {"q"}, "confirmation": {"q"},
	}, session)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	rr = h.do(t, http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"p"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = h.do(t, http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"q"}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

// ========================================================
// Quote, buy, portfolio, history
// ========================================================

func TestQuote(t *testing.T) {
	h := newHarness(t)
	session := h.login(t, "alice", "p")

	rr := h.do(t, http.MethodGet, "/quote", nil, session)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodPost, "/quote", url.Values{"symbol": {"aapl"}}, session)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Apple Inc. (AAPL) costs $150.00")

	rr = h.do(t, http.MethodPost, "/quote", url.Values{"symbol": {"ZZZZ"}}, session)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid symbol")

	rr = h.do(t, http.MethodPost, "/quote", url.Values{}, session)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "must provide symbol")
}

func TestBuyAndPortfolio(t *testing.T) {
	h := newHarness(t)
	session := h.login(t, "alice", "p")

	rr := h.do(t, http.MethodPost, "/buy", url.Values{"symbol": {"aapl"}, "shares": {"4"}}, session)
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())
	assert.Equal(t, "/", rr.Header().Get("Location"))
	flash := lastCookie(rr, "flash")
	require.NotNil(t, flash)

	assert.True(t, h.cash(t, "alice").Equal(decimal.RequireFromString("9400")))

	rr = h.do(t, http.MethodGet, "/", nil, session, flash)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Bought!")
	assert.Contains(t, body, "<td>AAPL</td>")
	assert.Contains(t, body, "$600.00")
	assert.Contains(t, body, "$9,400.00")
	assert.Contains(t, body, "$10,000.00")
}

func TestBuyErrors(t *testing.T) {
	h := newHarness(t)
	session := h.login(t, "alice", "p")

	tests := []struct {
		name string
		form url.Values
		msg  string
	}{
		{"missing symbol", url.Values{"shares": {"1"}}, "must provide symbol"},
		{"unknown symbol", url.Values{"symbol": {"ZZZZ"}, "shares": {"1"}}, "invalid symbol"},
		{"zero shares", url.Values{"symbol": {"AAPL"}, "shares": {"0"}}, "must provide a positive number of shares"},
		{"negative shares", url.Values{"symbol": {"AAPL"}, "shares": {"-5"}}, "must provide a positive number of shares"},
		{"text shares", url.Values{"symbol": {"AAPL"}, "shares": {"abc"}}, "must provide a positive number of shares"},
		{"empty shares", url.Values{"symbol": {"AAPL"}, "shares": {""}}, "must provide a positive number of shares"},
		{"fractional shares", url.Values{"symbol": {"AAPL"}, "shares": {"1.5"}}, "must provide a positive number of shares"},
		{"cannot afford", url.Values{"symbol": {"NFLX"}, "shares": {"11"}}, "can&#39;t afford"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(t, http.MethodPost, "/buy", tt.form, session)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.msg)
		})
	}

	assert.True(t, h.cash(t, "alice").Equal(decimal.RequireFromString("10000")))
}

func TestPortfolioHidesHoldingWithoutQuote(t *testing.T) {
	h := newHarness(t)
	session := h.login(t, "alice", "p")

	rr := h.do(t, http.MethodPost, "/buy", url.Values{"symbol": {"NFLX"}, "shares": {"1"}}, session)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	h.quotes.Delete("NFLX")

	rr = h.do(t, http.MethodGet, "/", nil, session)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "NFLX")
	assert.Contains(t, rr.Body.String(), "$9,000.00")

	rr = h.do(t, http.MethodPost, "/buy", url.Values{"symbol": {"NFLX"}, "shares": {"1"}}, session)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid symbol")
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	session := h.login(t, "alice", "p")

	for _, symbol := range []string{"AAPL", "NFLX"} {
		rr := h.do(t, http.MethodPost, "/buy", url.Values{"symbol": {symbol}, "shares": {"2"}}, session)
		require.Equal(t, http.StatusSeeOther, rr.Code)
	}

	rr := h.do(t, http.MethodGet, "/history", nil, session)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<td>AAPL</td>")
	assert.Contains(t, body, "<td>NFLX</td>")
	assert.Contains(t, body, "$1,000.00")
}
