package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"market-service/config"
	"market-service/internal/broker"
	"market-service/internal/recommend"
	"market-service/internal/redisclient"
	"market-service/internal/service"
	"market-service/internal/session"
	"market-service/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type discardWriter struct{}

func (discardWriter) PublishEvent(context.Context, string, interface{}) error { return nil }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	router   *gin.Engine
	mock     sqlmock.Sqlmock
	redis    *miniredis.Miniredis
	sessions *session.Manager
}

func newTestServer(t *testing.T, checks map[string]Pinger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := store.NewWithDB(sqlx.NewDb(db, "postgres"))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rc := redisclient.New(rdb)

	recoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(recoSrv.Close)
	reco := recommend.NewClient(config.RecommendConfig{BaseURL: recoSrv.URL, Timeout: time.Second})

	publisher := broker.NewEventPublisher(discardWriter{})
	business := config.BusinessConfig{CartLookupParallelism: 2, ShopsPageSize: 10, ProductsPageSize: 20}
	payment := config.PaymentConfig{Currency: "INR"}

	sessions := session.NewManager(rc, config.SessionConfig{CookieName: "sid", TTL: time.Hour}, false)
	h := NewHandler(Services{
		Auth:     service.NewAuthService(st),
		Catalog:  service.NewCatalogService(st, reco, business),
		Cart:     service.NewCartService(st, reco, business),
		Orders:   service.NewOrderService(st, publisher, payment, true),
		Payments: service.NewPaymentService(st, rc, publisher, payment, true),
		Booking:  service.NewBookingService(st, publisher),
	}, sessions, checks)

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, mock: mock, redis: mr, sessions: sessions}
}

// login stores an authenticated session and returns its cookie
func (ts *testServer) login(t *testing.T, userID int64, admin bool) *http.Cookie {
	t.Helper()
	sess := ts.sessions.New()
	sess.UserID = userID
	sess.Name = "Asha"
	sess.Email = "asha@example.com"
	sess.IsAdmin = admin
	require.NoError(t, ts.sessions.Save(context.Background(), sess))
	return &http.Cookie{Name: "sid", Value: sess.ID}
}

func (ts *testServer) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	return nil
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestReadinessCheck(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	ready := newTestServer(t, map[string]Pinger{"postgres": ok, "redis": ok})
	w := ready.do(httptest.NewRequest(http.MethodGet, "/ready", nil), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	notReady := newTestServer(t, map[string]Pinger{"postgres": ok, "redis": down})
	w = notReady.do(httptest.NewRequest(http.MethodGet, "/ready", nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	checks := decode(t, w)["checks"].(map[string]any)
	assert.Equal(t, "connection refused", checks["redis"])
}

func TestGuardRedirectsBrowserToLogin(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/cart?tab=deals", nil), nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/cart?tab=deals", ts.redis.HGet("session:"+cookie.Value, "return_to"))
}

func TestGuardRejectsXHR(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/cart/add", strings.NewReader(`{}`))
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	w := ts.do(req, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "please log in to continue", body["message"])
}

func TestLoginReturnsToStoredPath(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/checkout", nil), nil)
	require.Equal(t, http.StatusFound, w.Code)
	anon := sessionCookie(w)
	require.NotNil(t, anon)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	ts.mock.ExpectQuery(`SELECT id, name, email, password_hash, is_admin, created_at FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("asha@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "is_admin", "created_at"}).
			AddRow(5, "Asha", "asha@example.com", string(hash), false, time.Now()))

	w = ts.do(jsonRequest(http.MethodPost, "/login", `{"email":"asha@example.com","password":"secret"}`), anon)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "/checkout", body["redirect"])

	fresh := sessionCookie(w)
	require.NotNil(t, fresh)
	assert.NotEqual(t, anon.Value, fresh.Value, "session id rotates on login")
	assert.False(t, ts.redis.Exists("session:"+anon.Value))
	assert.Equal(t, "5", ts.redis.HGet("session:"+fresh.Value, "user_id"))
	assert.NoError(t, ts.mock.ExpectationsWereMet())
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t, nil)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	ts.mock.ExpectQuery(`FROM users WHERE LOWER\(email\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "is_admin", "created_at"}).
			AddRow(5, "Asha", "asha@example.com", string(hash), false, time.Now()))

	w := ts.do(jsonRequest(http.MethodPost, "/login", `{"email":"asha@example.com","password":"nope"}`), nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", decode(t, w)["message"])
}

func TestSignupValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(jsonRequest(http.MethodPost, "/signup",
		`{"name":"Asha","email":"asha@example.com","password":"a","confirmPassword":"b"}`), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "passwords do not match", decode(t, w)["message"])
}

func TestAdminRequiresAdmin(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(jsonRequest(http.MethodGet, "/admin", ""), ts.login(t, 5, false))
	assert.Equal(t, http.StatusForbidden, w.Code)

	ts.mock.ExpectQuery(`SELECT payment_status, COUNT\(\*\) AS count FROM orders GROUP BY payment_status`).
		WillReturnRows(sqlmock.NewRows([]string{"payment_status", "count"}).AddRow("paid", 3))

	w = ts.do(jsonRequest(http.MethodGet, "/admin", ""), ts.login(t, 1, true))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode(t, w)["orders_by_payment_status"].(map[string]any)
	assert.Equal(t, float64(3), stats["paid"])
	assert.Equal(t, float64(0), stats["pending"])
}

func TestVerifyPaymentForOtherUsersOrder(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.mock.ExpectQuery(`FROM orders WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "total_amount", "shipping_address", "phone", "payment_status",
			"razorpay_order_id", "razorpay_payment_id", "created_at", "updated_at",
		}).AddRow(9, 6, "100.00", "a", "b", "pending", nil, nil, time.Now(), time.Now()))

	w := ts.do(jsonRequest(http.MethodPost, "/checkout/verify-payment", `{"dev_mode":true,"order_id":9}`), ts.login(t, 5, false))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
	assert.NoError(t, ts.mock.ExpectationsWereMet())
}

func TestAvailableSlots(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.mock.ExpectQuery(`SELECT appointment_time::text FROM appointments`).
		WithArgs(int64(2), "2024-06-15").
		WillReturnRows(sqlmock.NewRows([]string{"appointment_time"}).AddRow("10:00:00"))

	w := ts.do(httptest.NewRequest(http.MethodGet, "/booking/slots?shop_id=2&date=2024-06-15", nil), nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	slots := decode(t, w)["slots"].([]any)
	require.Len(t, slots, 9)
	first := slots[0].(map[string]any)
	assert.Equal(t, "09:00:00", first["time"])
	assert.Equal(t, "9:00 AM", first["display"])
}

func TestInvalidIDs(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/products/abc", nil), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/booking/slots?shop_id=0&date=2024-06-15", nil), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.login(t, 5, false)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/logout", nil), cookie)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ts.redis.Exists("session:"+cookie.Value))
}

func TestAuthPageRedirectsLoggedInUsers(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(jsonRequest(http.MethodGet, "/login", ""), ts.login(t, 5, false))
	assert.Equal(t, "/", decode(t, w)["redirect"])

	w = ts.do(jsonRequest(http.MethodGet, "/signup", ""), nil)
	assert.Equal(t, false, decode(t, w)["authenticated"])
}
