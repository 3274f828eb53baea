package httppresentation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/application"
	appreconcile "github.com/Zhima-Mochi/stock-ledger/internal/application/reconcile"
	appstock "github.com/Zhima-Mochi/stock-ledger/internal/application/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/gin-gonic/gin"
)

// StockService is the plain ledger surface.
type StockService interface {
	InitStock(ctx context.Context, productID string, quantity int64) error
	CurrentStock(ctx context.Context, productID string) (int64, bool, error)
	GetRecord(ctx context.Context, productID, recordID string) (*stock.Record, error)
	ListRecordIDs(ctx context.Context, productID string) ([]string, error)
	BatchDeleteRecords(ctx context.Context, productID string, recordIDs []string) (int, error)
	SetExpiryOnOffline(ctx context.Context, productID string) (int, error)
}

// Reconciler is the archive-facing surface.
type Reconciler interface {
	ProcessOffline(ctx context.Context, productID string) (*appreconcile.OfflineResult, error)
	MarkCompleted(ctx context.Context, recordIDs []string) (int, error)
	MarkReconciled(ctx context.Context, recordIDs []string) (int, error)
	PendingReconcile(ctx context.Context, productID string) ([]*stock.Record, error)
	RecordsInRange(ctx context.Context, productID string, from, to time.Time) ([]*stock.Record, error)
}

type StockHandler struct {
	stock     StockService
	deduct    application.UseCase[appstock.DeductCommand, *appstock.DeductOutcome]
	reconcile Reconciler
}

func NewStockHandler(
	svc StockService,
	deduct application.UseCase[appstock.DeductCommand, *appstock.DeductOutcome],
	reconcile Reconciler,
) *StockHandler {
	return &StockHandler{stock: svc, deduct: deduct, reconcile: reconcile}
}

func (h *StockHandler) register(g *gin.RouterGroup) {
	g.POST("/init", h.InitStock)
	g.GET("/current/:productId", h.CurrentStock)
	g.POST("/deduct", h.Deduct)
	g.GET("/records/:productId", h.ListRecordIDs)
	g.GET("/record/:productId/:recordId", h.GetRecord)
	g.POST("/records/batch-delete", h.BatchDelete)
	g.POST("/offline/:productId", h.SetExpiryOnOffline)
	g.POST("/product-offline/:productId", h.ProcessOffline)
	g.POST("/records/mark-completed", h.MarkCompleted)
	g.POST("/records/mark-reconciled", h.MarkReconciled)
	g.GET("/records/pending-reconcile/:productId", h.PendingReconcile)
	g.GET("/records/time-range/:productId", h.RecordsInRange)
}

type initStockRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Stock     *int64 `json:"stock" binding:"required"`
}

func (h *StockHandler) InitStock(c *gin.Context) {
	var req initStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.stock.InitStock(c.Request.Context(), req.ProductID, *req.Stock); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"product_id": req.ProductID, "stock": *req.Stock})
}

func (h *StockHandler) CurrentStock(c *gin.Context) {
	productID := c.Param("productId")
	n, found, err := h.stock.CurrentStock(c.Request.Context(), productID)
	if err != nil {
		fail(c, err)
		return
	}
	if !found {
		rejected(c, "PRODUCT_NOT_FOUND", "stock is not configured for this product", nil)
		return
	}
	ok(c, gin.H{"product_id": productID, "stock": n})
}

type deductRequest struct {
	ProductID           string `json:"product_id" binding:"required"`
	Amount              int64  `json:"amount"`
	UserID              string `json:"user_id"`
	OrderID             string `json:"order_id"`
	Scene               string `json:"scene"`
	ExtInfo             string `json:"ext_info"`
	Remark              string `json:"remark"`
	RecordExpireSeconds int64  `json:"record_expire_seconds"`
}

type deductResponse struct {
	RecordID       string `json:"record_id"`
	Result         string `json:"result"`
	RemainingStock *int64 `json:"remaining_stock,omitempty"`
}

func (h *StockHandler) Deduct(c *gin.Context) {
	var req deductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := h.deduct.Execute(c.Request.Context(), appstock.DeductCommand{
		ProductID: req.ProductID,
		Amount:    req.Amount,
		UserID:    req.UserID,
		OrderID:   req.OrderID,
		Scene:     req.Scene,
		ExtInfo:   req.ExtInfo,
		Remark:    req.Remark,
		RecordTTL: time.Duration(req.RecordExpireSeconds) * time.Second,
	})
	if err != nil {
		fail(c, err)
		return
	}

	body := deductResponse{RecordID: out.RecordID, Result: out.Result.String(), RemainingStock: out.RemainingStock}
	if !out.Succeeded() {
		rejected(c, strings.ToUpper(out.Result.String()), out.Result.Err().Error(), body)
		return
	}
	ok(c, body)
}

func (h *StockHandler) ListRecordIDs(c *gin.Context) {
	ids, err := h.stock.ListRecordIDs(c.Request.Context(), c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	ok(c, ids)
}

func (h *StockHandler) GetRecord(c *gin.Context) {
	rec, err := h.stock.GetRecord(c.Request.Context(), c.Param("productId"), c.Param("recordId"))
	if err != nil {
		fail(c, err)
		return
	}
	if rec == nil {
		rejected(c, "RECORD_NOT_FOUND", "record does not exist or has expired", nil)
		return
	}
	ok(c, rec)
}

type batchDeleteRequest struct {
	ProductID string   `json:"product_id" binding:"required"`
	RecordIDs []string `json:"record_ids" binding:"required"`
}

func (h *StockHandler) BatchDelete(c *gin.Context) {
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.stock.BatchDeleteRecords(c.Request.Context(), req.ProductID, req.RecordIDs)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"deleted": n})
}

func (h *StockHandler) SetExpiryOnOffline(c *gin.Context) {
	n, err := h.stock.SetExpiryOnOffline(c.Request.Context(), c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"expired": n})
}

func (h *StockHandler) ProcessOffline(c *gin.Context) {
	res, err := h.reconcile.ProcessOffline(c.Request.Context(), c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"persisted": res.Persisted, "expired": res.Expired})
}

func (h *StockHandler) MarkCompleted(c *gin.Context) {
	h.transition(c, h.reconcile.MarkCompleted)
}

func (h *StockHandler) MarkReconciled(c *gin.Context) {
	h.transition(c, h.reconcile.MarkReconciled)
}

func (h *StockHandler) transition(c *gin.Context, apply func(context.Context, []string) (int, error)) {
	var ids []string
	if err := c.ShouldBindJSON(&ids); err != nil {
		badRequest(c, err)
		return
	}
	n, err := apply(c.Request.Context(), ids)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"updated": n})
}

func (h *StockHandler) PendingReconcile(c *gin.Context) {
	recs, err := h.reconcile.PendingReconcile(c.Request.Context(), c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nonNil(recs))
}

func (h *StockHandler) RecordsInRange(c *gin.Context) {
	from, err := parseTime(c.Query("start"))
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := parseTime(c.Query("end"))
	if err != nil {
		badRequest(c, err)
		return
	}
	recs, err := h.reconcile.RecordsInRange(c.Request.Context(), c.Param("productId"), from, to)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nonNil(recs))
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// parseTime accepts RFC 3339 or a zone-less local timestamp, read as UTC.
func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("start and end are required")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognised time " + raw)
}

func nonNil(recs []*stock.Record) []*stock.Record {
	if recs == nil {
		return []*stock.Record{}
	}
	return recs
}
