package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
	"papertrade/internal/scheduler"
	"papertrade/internal/snapshot"
	"papertrade/internal/store"
	"papertrade/internal/types"
)

type handlers struct {
	ledger    *ledger.Service
	snapshots *snapshot.Engine
	pipeline  *scheduler.Pipeline
	store     store.Store
}

func (h *handlers) register(group *gin.RouterGroup) {
	group.POST("/accounts", h.handleInitAccount)
	group.GET("/accounts/:user", h.handleGetAccount)
	group.DELETE("/accounts/:user", h.handleCloseAccount)
	group.GET("/accounts/:user/positions", h.handleGetPositions)
	group.GET("/accounts/:user/trades", h.handleListTrades)
	group.POST("/accounts/:user/trades", h.handleApplyTrade)
	group.GET("/accounts/:user/snapshots", h.handleListSnapshots)
	group.GET("/accounts/:user/reconcile", h.handleReconcile)
	group.POST("/accounts/:user/strategies", h.handleSaveStrategyJob)
	group.POST("/scheduler/run", h.handleRunCycle)
}

type initAccountRequest struct {
	UserID         string          `json:"user_id" binding:"required"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
}

func (h *handlers) handleInitAccount(c *gin.Context) {
	var req initAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account, err := h.ledger.InitAccount(c.Request.Context(), req.UserID, req.InitialCapital)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *handlers) handleGetAccount(c *gin.Context) {
	account, err := h.ledger.GetAccount(c.Request.Context(), c.Param("user"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *handlers) handleCloseAccount(c *gin.Context) {
	if err := h.ledger.CloseAccount(c.Request.Context(), c.Param("user")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (h *handlers) handleGetPositions(c *gin.Context) {
	positions, err := h.ledger.GetPositions(c.Request.Context(), c.Param("user"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

type applyTradeRequest struct {
	Instrument     string          `json:"instrument" binding:"required"`
	Side           string          `json:"side" binding:"required"`
	Quantity       decimal.Decimal `json:"quantity"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
}

func (h *handlers) handleApplyTrade(c *gin.Context) {
	var req applyTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := h.ledger.ApplyTrade(c.Request.Context(), c.Param("user"),
		req.Instrument, types.TradeSide(req.Side), req.Quantity, req.ReferencePrice)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (h *handlers) handleListTrades(c *gin.Context) {
	filter := store.TradeFilter{
		Instrument: c.Query("instrument"),
		Side:       types.TradeSide(c.Query("side")),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = t
	}
	if until := c.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "until must be RFC3339"})
			return
		}
		filter.Until = t
	}
	trades, err := h.ledger.ListTrades(c.Request.Context(), c.Param("user"), filter)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (h *handlers) handleListSnapshots(c *gin.Context) {
	snapshots, err := h.snapshots.ListSnapshots(c.Request.Context(), c.Param("user"),
		c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

func (h *handlers) handleReconcile(c *gin.Context) {
	report, err := h.ledger.Reconcile(c.Request.Context(), c.Param("user"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

type saveStrategyJobRequest struct {
	Strategy      string          `json:"strategy" binding:"required"`
	IsActive      bool            `json:"is_active"`
	AllocatedCash decimal.Decimal `json:"allocated_cash"`
	Params        map[string]any  `json:"params"`
}

func (h *handlers) handleSaveStrategyJob(c *gin.Context) {
	var req saveStrategyJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job := &types.StrategyJob{
		UserID:        c.Param("user"),
		Strategy:      req.Strategy,
		IsActive:      req.IsActive,
		AllocatedCash: req.AllocatedCash,
		Params:        req.Params,
	}
	uow, err := h.store.Begin(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := uow.StrategyJobs().Save(c.Request.Context(), job); err != nil {
		uow.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := uow.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *handlers) handleRunCycle(c *gin.Context) {
	summary, err := h.pipeline.RunCycle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientPosition),
		errors.Is(err, ledger.ErrAccountClosed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, snapshot.ErrSnapshotConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
