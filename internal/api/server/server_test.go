package server_test

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untron/untron-v3-engine/internal/api/middleware"
	"github.com/untron/untron-v3-engine/internal/api/server"
	"github.com/untron/untron-v3-engine/internal/engine"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/mocks"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

func newEngine(t *testing.T) *engine.Engine {
	ctrl := gomock.NewController(t)
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Unix(1_700_000_000, 0)).AnyTimes()
	clock.EXPECT().Since(gomock.Any()).Return(time.Duration(0)).AnyTimes()

	return engine.New(engine.Config{
		HubChainID: big.NewInt(10),
		HubAddress: common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Owner:      common.HexToAddress("0x1"),
	}, clock, nil, mocks.NewMockTokenLedger(ctrl), nil, nil)
}

func TestRouter(t *testing.T) {
	srv := server.New(server.Config{
		MetricsPath: "/metrics",
		Auth:        middleware.AuthConfig{APIKeys: []string{"k"}},
		RateLimit:   middleware.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}, newEngine(t), nil)
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "untron_engine_http_requests_total")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/leases", nil)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterWithoutMetrics(t *testing.T) {
	router := server.New(server.Config{}, newEngine(t), nil).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
