package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appreconcile "github.com/Zhima-Mochi/stock-ledger/internal/application/reconcile"
	appstock "github.com/Zhima-Mochi/stock-ledger/internal/application/stock"
	apptoken "github.com/Zhima-Mochi/stock-ledger/internal/application/token"
	"github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/id"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type app struct {
	mr      *miniredis.Miniredis
	archive *memory.Archive
	router  *gin.Engine
}

func setupApp(t *testing.T) *app {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ledger := redisstore.NewLedger(client, nil)
	records := redisstore.NewRecordStore(client, nil)
	archive := memory.NewArchive()
	ids := id.NewUUIDGenerator()

	svc := appstock.NewService(ledger, records, stock.OfflineRecordTTL, nil)
	deduct := appstock.NewDeductStockUseCase(ledger, ids, nil, stock.DefaultRecordTTL, nil)
	pipeline := appreconcile.NewPipeline(records, archive, stock.OfflineRecordTTL, nil)
	guard := apptoken.NewGuard(redisstore.NewTokenStore(client, nil), ids, 0, nil)

	return &app{
		mr:      mr,
		archive: archive,
		router: NewRouter(RouterOptions{
			ServiceName: "stock-ledger-test",
			Stock:       NewStockHandler(svc, deduct, pipeline),
			Token:       NewTokenHandler(guard),
			Gatherer:    prometheus.NewRegistry(),
		}),
	}
}

func (a *app) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)

	var env envelope
	if rr.Header().Get("Content-Type") != "" && rr.Body.Len() > 0 {
		_ = json.Unmarshal(rr.Body.Bytes(), &env)
	}
	return rr, env
}

// deduct takes one unit of productID and returns the generated record id.
func (a *app) deduct(t *testing.T, productID string) string {
	t.Helper()
	_, env := a.do(t, http.MethodPost, "/api/stock/deduct", map[string]any{"product_id": productID, "amount": 1})
	require.True(t, env.Success)
	var out deductResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.RecordID)
	return out.RecordID
}

func TestHealthAndRequestID(t *testing.T) {
	a := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-1")
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "req-1", rr.Header().Get(headerRequestID))

	rr, _ = a.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rr.Header().Get(headerRequestID))
}

func TestMetricsServed(t *testing.T) {
	a := setupApp(t)
	rr, _ := a.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestInitAndCurrentStock(t *testing.T) {
	a := setupApp(t)

	rr, env := a.do(t, http.MethodPost, "/api/stock/init", map[string]any{"product_id": "p1", "stock": 10})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.Success)

	_, env = a.do(t, http.MethodGet, "/api/stock/current/p1", nil)
	require.True(t, env.Success)
	var cur struct {
		Stock int64 `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cur))
	assert.Equal(t, int64(10), cur.Stock)

	rr, env = a.do(t, http.MethodGet, "/api/stock/current/missing", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "PRODUCT_NOT_FOUND", env.Code)
}

func TestInitStockRejectsBadInput(t *testing.T) {
	a := setupApp(t)

	rr, env := a.do(t, http.MethodPost, "/api/stock/init", map[string]any{"product_id": "p1", "stock": -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, env.Success)

	rr, _ = a.do(t, http.MethodPost, "/api/stock/init", map[string]any{"product_id": "p1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeductFlow(t *testing.T) {
	a := setupApp(t)
	a.mr.Set("stock:p1", "3")

	rr, env := a.do(t, http.MethodPost, "/api/stock/deduct", map[string]any{
		"product_id": "p1", "amount": 2, "user_id": "u1", "record_id": "caller-chosen",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, env.Success)
	var out deductResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	rid := out.RecordID
	assert.Len(t, rid, 32)
	assert.NotEqual(t, "caller-chosen", rid, "record ids are always generated server side")
	require.NotNil(t, out.RemainingStock)
	assert.Equal(t, int64(1), *out.RemainingStock)

	_, env = a.do(t, http.MethodPost, "/api/stock/deduct", map[string]any{"product_id": "p1", "amount": 2})
	assert.False(t, env.Success)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Code)

	_, env = a.do(t, http.MethodPost, "/api/stock/deduct", map[string]any{"product_id": "p1", "amount": 0})
	assert.False(t, env.Success)
	assert.Equal(t, "INVALID_AMOUNT", env.Code)

	_, env = a.do(t, http.MethodPost, "/api/stock/deduct", map[string]any{"product_id": "nope", "amount": 1})
	assert.False(t, env.Success)
	assert.Equal(t, "PRODUCT_NOT_FOUND", env.Code)

	_, env = a.do(t, http.MethodGet, "/api/stock/records/p1", nil)
	var ids []string
	require.NoError(t, json.Unmarshal(env.Data, &ids))
	assert.Equal(t, []string{rid}, ids)

	_, env = a.do(t, http.MethodGet, "/api/stock/record/p1/"+rid, nil)
	require.True(t, env.Success)
	var rec stock.Record
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, int64(2), rec.Amount)
	require.NotNil(t, rec.AfterStock)
	assert.Equal(t, int64(1), *rec.AfterStock)

	_, env = a.do(t, http.MethodGet, "/api/stock/record/p1/unknown", nil)
	assert.False(t, env.Success)
	assert.Equal(t, "RECORD_NOT_FOUND", env.Code)
}

func TestDeductSystemErrorIs500(t *testing.T) {
	a := setupApp(t)
	a.mr.Close()

	rr, env := a.do(t, http.MethodPost, "/api/stock/deduct", map[string]any{"product_id": "p1", "amount": 1})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "SYSTEM_ERROR", env.Code)
}

func TestBatchDeleteAndOffline(t *testing.T) {
	a := setupApp(t)
	a.mr.Set("stock:p1", "5")
	rids := []string{a.deduct(t, "p1"), a.deduct(t, "p1"), a.deduct(t, "p1")}

	_, env := a.do(t, http.MethodPost, "/api/stock/records/batch-delete", map[string]any{
		"product_id": "p1", "record_ids": []string{rids[0], "ghost"},
	})
	require.True(t, env.Success)
	assert.JSONEq(t, `{"deleted":1}`, string(env.Data))

	_, env = a.do(t, http.MethodPost, "/api/stock/product-offline/p1", nil)
	require.True(t, env.Success)
	assert.JSONEq(t, `{"persisted":2,"expired":2}`, string(env.Data))
	assert.Equal(t, 24*time.Hour, a.mr.TTL("stock_record:p1:"+rids[1]))

	recs, err := a.archive.ListByStatus(context.Background(), "p1", stock.StatusPending)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, env = a.do(t, http.MethodPost, "/api/stock/offline/p1", nil)
	require.True(t, env.Success)
	assert.JSONEq(t, `{"expired":2}`, string(env.Data))
}

func TestReconcileRoutes(t *testing.T) {
	a := setupApp(t)
	a.mr.Set("stock:p1", "5")
	r1, r2 := a.deduct(t, "p1"), a.deduct(t, "p1")
	_, env := a.do(t, http.MethodPost, "/api/stock/product-offline/p1", nil)
	require.True(t, env.Success)

	_, env = a.do(t, http.MethodPost, "/api/stock/records/mark-completed", []string{r1, r2, r1})
	require.True(t, env.Success)
	assert.JSONEq(t, `{"updated":2}`, string(env.Data))

	_, env = a.do(t, http.MethodGet, "/api/stock/records/pending-reconcile/p1", nil)
	var pending []stock.Record
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	assert.Len(t, pending, 2)

	_, env = a.do(t, http.MethodPost, "/api/stock/records/mark-reconciled", []string{r1})
	assert.JSONEq(t, `{"updated":1}`, string(env.Data))

	_, env = a.do(t, http.MethodGet, "/api/stock/records/pending-reconcile/p1", nil)
	pending = nil
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, r2, pending[0].RecordID)

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	to := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	_, env = a.do(t, http.MethodGet, "/api/stock/records/time-range/p1?start="+from+"&end="+to, nil)
	var inRange []stock.Record
	require.NoError(t, json.Unmarshal(env.Data, &inRange))
	assert.Len(t, inRange, 2)

	rr, _ := a.do(t, http.MethodGet, "/api/stock/records/time-range/p1?start="+from, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmitTokenRoutes(t *testing.T) {
	a := setupApp(t)
	key := map[string]any{"scene": "checkout", "user_id": "u1"}

	_, env := a.do(t, http.MethodPost, "/submit-token/generate", key)
	require.True(t, env.Success)
	var issued struct {
		Token         string `json:"token"`
		ExpireSeconds int64  `json:"expire_seconds"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	assert.Len(t, issued.Token, 32)
	assert.Equal(t, int64(300), issued.ExpireSeconds)

	_, env = a.do(t, http.MethodPost, "/submit-token/validate", map[string]any{"scene": "checkout", "user_id": "u1", "token": "wrong"})
	assert.False(t, env.Success)
	assert.Equal(t, "MISMATCH", env.Code)

	_, env = a.do(t, http.MethodPost, "/submit-token/validate", map[string]any{"scene": "checkout", "user_id": "u1", "token": issued.Token})
	assert.True(t, env.Success)

	_, env = a.do(t, http.MethodPost, "/submit-token/validate", map[string]any{"scene": "checkout", "user_id": "u1", "token": issued.Token})
	assert.False(t, env.Success)
	assert.Equal(t, "NOT_FOUND_OR_EXPIRED", env.Code)

	rr, _ := a.do(t, http.MethodPost, "/submit-token/generate", map[string]any{"scene": "checkout"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmitTokenDelete(t *testing.T) {
	a := setupApp(t)
	_, env := a.do(t, http.MethodPost, "/submit-token/generate", map[string]any{"scene": "s", "user_id": "u1", "biz_id": "b1"})
	require.True(t, env.Success)
	assert.True(t, a.mr.Exists("token:s:u1:b1"))

	_, env = a.do(t, http.MethodDelete, "/submit-token/delete?scene=s&user_id=u1&biz_id=b1", nil)
	assert.JSONEq(t, `{"deleted":true}`, string(env.Data))
	assert.False(t, a.mr.Exists("token:s:u1:b1"))

	_, env = a.do(t, http.MethodDelete, "/submit-token/delete?scene=s&user_id=u1&biz_id=b1", nil)
	assert.JSONEq(t, `{"deleted":false}`, string(env.Data))
}
