package rest_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untron/untron-v3-engine/internal/api/middleware"
	"github.com/untron/untron-v3-engine/internal/api/rest"
	"github.com/untron/untron-v3-engine/internal/api/shared/constants"
	"github.com/untron/untron-v3-engine/internal/api/shared/dto"
	apierrors "github.com/untron/untron-v3-engine/internal/api/shared/errors"
	"github.com/untron/untron-v3-engine/internal/api/shared/executor"
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
	gin.SetMode(gin.TestMode)

	code := m.Run()
	os.Exit(code)
}

const apiKey = "test-api-key"

var (
	owner      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	stranger   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	hubAddress = common.HexToAddress("0x1000000000000000000000000000000000000001")
	lp         = common.HexToAddress("0x8000000000000000000000000000000000000008")
)

// testAPI is a router over a real engine
type testAPI struct {
	router     *gin.Engine
	engine     *engine.Engine
	ledger     *mocks.MockTokenLedger
	signingKey *rsa.PrivateKey
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctrl := gomock.NewController(t)

	clock := mocks.NewMockClock(ctrl)
	now := time.Unix(1_700_000_000, 0)
	clock.EXPECT().Now().Return(now).AnyTimes()
	clock.EXPECT().Since(gomock.Any()).Return(time.Duration(0)).AnyTimes()
	ledger := mocks.NewMockTokenLedger(ctrl)

	eng := engine.New(engine.Config{
		HubChainID: big.NewInt(10),
		HubAddress: hubAddress,
		Owner:      owner,
	}, clock, nil, ledger, nil, nil)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	rest.SetupRoutes(router, rest.NewHandler(executor.NewExecutor(eng, nil)), middleware.AuthConfig{
		JWTPublicKey: string(publicPEM),
		APIKeys:      []string{apiKey},
	})

	return &testAPI{router: router, engine: eng, ledger: ledger, signingKey: key}
}

func (a *testAPI) token(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.signingKey)
	require.NoError(t, err)
	return "Bearer " + signed
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}, auth string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func operator(caller common.Address) map[string]interface{} {
	return map[string]interface{}{"caller": caller.Hex()}
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get(constants.REQUEST_ID_HEADER))
}

func TestOperationsRequireAuthentication(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/admin/pause", operator(owner), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/admin/pause", operator(owner), "ApiKey wrong-key")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, api.engine.Paused())
}

func TestPause(t *testing.T) {
	api := newTestAPI(t)

	t.Run("owner pauses", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/admin/pause", operator(owner), "ApiKey "+apiKey)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[dto.OperationResponse](t, w)
		assert.Equal(t, "committed", resp.Status)
		assert.Equal(t, uint64(1), resp.HubSeq)
		seq, tip := api.engine.EventChainHead()
		assert.Equal(t, seq, resp.HubSeq)
		assert.Equal(t, tip, resp.HubTip)
		assert.Equal(t, w.Header().Get(constants.REQUEST_ID_HEADER), resp.RequestID)

		settings := decode[engine.Settings](t, api.do(t, http.MethodGet, "/api/v1/settings", nil, ""))
		assert.True(t, settings.Paused)
	})

	t.Run("pausing twice conflicts", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/admin/pause", operator(owner), "ApiKey "+apiKey)
		assert.Equal(t, http.StatusConflict, w.Code)

		apiErr := decode[apierrors.APIError](t, w)
		assert.Equal(t, apierrors.ErrCodeProtocolError, apiErr.Code)
		assert.Equal(t, "EnforcedPause", apiErr.Name)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/admin/unpause", operator(stranger), "ApiKey "+apiKey)
		assert.Equal(t, http.StatusForbidden, w.Code)

		apiErr := decode[apierrors.APIError](t, w)
		assert.Equal(t, "Unauthorized", apiErr.Name)
		assert.True(t, strings.HasPrefix(apiErr.Selector, "0x"))
		assert.Len(t, apiErr.Selector, 10)
		assert.True(t, api.engine.Paused())
	})

	t.Run("JWT subject overrides the body caller", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/admin/unpause", operator(stranger), api.token(t, owner.Hex()))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.False(t, api.engine.Paused())
	})

	t.Run("JWT subject stands in for an empty body", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/admin/pause", nil, api.token(t, owner.Hex()))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.True(t, api.engine.Paused())
	})

	t.Run("missing caller", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/admin/unpause", nil, "ApiKey "+apiKey)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestLpDepositAndAccounting(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/lp/deposit", map[string]interface{}{
		"caller": lp.Hex(),
		"amount": "1000",
	}, "ApiKey "+apiKey)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/admin/allowlists/lps", map[string]interface{}{
		"caller":  owner.Hex(),
		"account": lp.Hex(),
		"allowed": true,
	}, "ApiKey "+apiKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	usdt := common.HexToAddress("0x2000000000000000000000000000000000000002")
	require.NoError(t, api.engine.InitializeIdentities(context.Background(), owner, engine.Identities{USDT: usdt}))
	gomock.InOrder(
		api.ledger.EXPECT().BalanceOf(gomock.Any(), usdt, hubAddress).Return(big.NewInt(0), nil),
		api.ledger.EXPECT().TransferFrom(gomock.Any(), usdt, lp, gomock.Any()).DoAndReturn(
			func(_ context.Context, _, _ common.Address, amount *big.Int) error {
				assert.Equal(t, "1000", amount.String())
				return nil
			}),
		api.ledger.EXPECT().BalanceOf(gomock.Any(), usdt, hubAddress).Return(big.NewInt(1000), nil),
	)

	w = api.do(t, http.MethodPost, "/api/v1/lp/deposit", map[string]interface{}{
		"caller": lp.Hex(),
		"amount": "0x3e8",
	}, "ApiKey "+apiKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/accounting?lp="+lp.Hex(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	acct := decode[dto.AccountingResponse](t, w)
	assert.Equal(t, big.NewInt(1000), acct.LpPrincipal)
	assert.Equal(t, big.NewInt(1000), acct.TotalLpPrincipal)
	require.NotNil(t, acct.LP)
	assert.Equal(t, lp, *acct.LP)

	w = api.do(t, http.MethodGet, "/api/v1/accounting?lp=nope", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/admin/allowlists/whales", map[string]interface{}{
		"caller":  owner.Hex(),
		"account": lp.Hex(),
		"allowed": true,
	}, "ApiKey "+apiKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventChainEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/admin/pause", operator(owner), "ApiKey "+apiKey)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPost, "/api/v1/admin/unpause", operator(owner), "ApiKey "+apiKey)
	require.Equal(t, http.StatusOK, w.Code)

	head := decode[dto.EventChainHeadResponse](t, api.do(t, http.MethodGet, "/api/v1/event-chain/head", nil, ""))
	assert.Equal(t, uint64(2), head.Seq)

	w = api.do(t, http.MethodGet, "/api/v1/event-chain/entries?from=1&to=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	rng := decode[dto.EventChainRangeResponse](t, w)
	require.Len(t, rng.Entries, 2)
	assert.Equal(t, rng.Entries[0].NewTip, rng.Entries[1].PrevTip)
	assert.Equal(t, head.Tip, rng.Entries[1].NewTip)

	w = api.do(t, http.MethodGet, "/api/v1/event-chain/entries?from=0&to=2", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/event-chain/entries?from=1&to=100000", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/events", nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestViewErrors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown lease", "/api/v1/leases/7", http.StatusNotFound},
		{"non-numeric lease id", "/api/v1/leases/abc", http.StatusBadRequest},
		{"unknown claim", "/api/v1/claims/1", http.StatusNotFound},
		{"bad salt", "/api/v1/receivers/0x1234", http.StatusBadRequest},
		{"receiver before identities", "/api/v1/receivers/" + common.HexToHash("0x1").Hex(), http.StatusBadGateway},
		{"bad token", "/api/v1/queues/xyz/claims", http.StatusBadRequest},
		{"bad tx id", "/api/v1/deposits/0xzz", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodGet, tt.path, nil, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestDepositAndQueueViews(t *testing.T) {
	api := newTestAPI(t)
	txID := common.HexToHash("0xdead")

	w := api.do(t, http.MethodGet, "/api/v1/deposits/"+txID.Hex(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	dep := decode[dto.DepositResponse](t, w)
	assert.Equal(t, txID, dep.TxID)
	assert.False(t, dep.Processed)
	assert.Nil(t, dep.PreEntitlement)

	token := common.HexToAddress("0x2000000000000000000000000000000000000002")
	w = api.do(t, http.MethodGet, "/api/v1/queues/"+token.Hex()+"/claims?limit=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[dto.PendingClaimsResponse](t, w)
	assert.Equal(t, token, pending.TargetToken)
	assert.Empty(t, pending.Claims)
}
