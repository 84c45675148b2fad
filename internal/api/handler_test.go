package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"auto-order/internal/apperr"
	"auto-order/internal/gateway"
	"auto-order/internal/models"
	"auto-order/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockApplier struct{ mock.Mock }

func (m *mockApplier) ApplyGatewayEvent(ctx context.Context, n gateway.Notification) (*models.Order, bool, error) {
	args := m.Called(ctx, n)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Bool(1), args.Error(2)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func setup(t *testing.T, checks map[string]Pinger) (*gin.Engine, *mockApplier, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	applier := &mockApplier{}
	router := gin.New()
	NewHandler(applier, redisclient.New(rdb), Options{Checks: checks}).SetupRoutes(router)
	return router, applier, mr
}

func notify(router http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ipaymu/notify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func paidForm() url.Values {
	return url.Values{
		"trx_id":       {"TRX-1"},
		"status":       {"berhasil"},
		"status_code":  {"1"},
		"sid":          {"sid-1"},
		"reference_id": {"ORD-42-12-20240501090000"},
	}
}

func TestHealth(t *testing.T) {
	router, _, _ := setup(t, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestReady(t *testing.T) {
	router, _, _ := setup(t, map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestNotify_AppliesAndAcknowledges(t *testing.T) {
	router, applier, mr := setup(t, nil)
	applier.On("ApplyGatewayEvent", mock.Anything, mock.MatchedBy(func(n gateway.Notification) bool {
		return n.ReferenceID == "ORD-42-12-20240501090000" && n.Outcome() == gateway.OutcomePaid
	})).Return(&models.Order{ID: 12, Status: models.StatusPaid}, true, nil).Once()

	w := notify(router, paidForm())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Len(t, mr.Keys(), 1)

	// the replay is answered from Redis without touching the order
	w = notify(router, paidForm())
	assert.Equal(t, http.StatusOK, w.Code)
	applier.AssertNumberOfCalls(t, "ApplyGatewayEvent", 1)
}

func TestNotify_ReplayKeyExpires(t *testing.T) {
	router, applier, mr := setup(t, nil)
	applier.On("ApplyGatewayEvent", mock.Anything, mock.Anything).
		Return(&models.Order{ID: 12, Status: models.StatusPaid}, false, nil)

	notify(router, paidForm())
	mr.FastForward(25 * time.Hour)
	notify(router, paidForm())
	applier.AssertNumberOfCalls(t, "ApplyGatewayEvent", 2)
}

func TestNotify_MissingReference(t *testing.T) {
	router, applier, _ := setup(t, nil)
	form := paidForm()
	form.Del("reference_id")

	w := notify(router, form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	applier.AssertNotCalled(t, "ApplyGatewayEvent", mock.Anything, mock.Anything)
}

func TestNotify_UnknownOrder(t *testing.T) {
	router, applier, mr := setup(t, nil)
	applier.On("ApplyGatewayEvent", mock.Anything, mock.Anything).
		Return(nil, false, apperr.NotFound.New("order not found")).Once()

	w := notify(router, paidForm())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, mr.Keys())
}

func TestNotify_StoreFailureAsksForRetry(t *testing.T) {
	router, applier, mr := setup(t, nil)
	applier.On("ApplyGatewayEvent", mock.Anything, mock.Anything).
		Return(nil, false, errors.New("pq: connection refused")).Once()

	w := notify(router, paidForm())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
	assert.Empty(t, mr.Keys())
}

func TestNotify_RedisDownStillApplies(t *testing.T) {
	router, applier, mr := setup(t, nil)
	mr.Close()
	applier.On("ApplyGatewayEvent", mock.Anything, mock.Anything).
		Return(&models.Order{ID: 12, Status: models.StatusPaid}, true, nil).Once()

	w := notify(router, paidForm())
	assert.Equal(t, http.StatusOK, w.Code)
	applier.AssertExpectations(t)
}

func TestReturnPages(t *testing.T) {
	router, _, _ := setup(t, nil)
	for _, path := range []string{"/thanks", "/cancel"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	}
}

func TestRequestIDIsKept(t *testing.T) {
	router, _, _ := setup(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
