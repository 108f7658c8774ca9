package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"oracle/internal/models"
	"oracle/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MarketHandler exposes market listing, entry and settlement endpoints.
type MarketHandler struct {
	db         *gorm.DB
	entry      *services.EntryService
	settlement *services.SettlementService
}

// NewMarketHandler creates a new MarketHandler
func NewMarketHandler(db *gorm.DB, entry *services.EntryService, settlement *services.SettlementService) *MarketHandler {
	return &MarketHandler{db: db, entry: entry, settlement: settlement}
}

// GetMarkets returns markets with optional status filtering
func (h *MarketHandler) GetMarkets(c *gin.Context) {
	status := c.DefaultQuery("status", models.MarketStatusActive)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var markets []models.Market
	if err := h.db.Where("status = ?", status).
		Order("end_time ASC").Limit(limit).Offset(offset).Find(&markets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch markets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    markets,
		"count":   len(markets),
	})
}

// GetMarketByID returns a specific market
func (h *MarketHandler) GetMarketByID(c *gin.Context) {
	var market models.Market
	if err := h.db.Where("id = ?", c.Param("id")).First(&market).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Market not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch market"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": market})
}

// CreateMarket creates a new market
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	var req struct {
		Title             string                `json:"title" binding:"required"`
		MarketType        string                `json:"market_type" binding:"required,oneof=price_prediction outcome_based"`
		EndTime           time.Time             `json:"end_time" binding:"required"`
		EntryCostOP       int64                 `json:"entry_cost_op" binding:"required,min=1"`
		Options           []models.MarketOption `json:"options" binding:"required,min=2"`
		PrizePoolLamports int64                 `json:"prize_pool_lamports"`
		AutoResolve       *bool                 `json:"auto_resolve"`
		ResolutionSource  string                `json:"resolution_source"`
		CreatedBy         string                `json:"created_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	options, err := models.EncodeOptions(req.Options)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid options"})
		return
	}

	autoResolve := true
	if req.AutoResolve != nil {
		autoResolve = *req.AutoResolve
	}

	market := models.Market{
		Title:             req.Title,
		MarketType:        req.MarketType,
		Status:            models.MarketStatusActive,
		StartTime:         time.Now().UTC(),
		EndTime:           req.EndTime,
		EntryCostOP:       req.EntryCostOP,
		Options:           options,
		PrizePoolLamports: req.PrizePoolLamports,
		AutoResolve:       autoResolve,
		ResolutionSource:  req.ResolutionSource,
		CreatedBy:         req.CreatedBy,
	}
	if err := h.db.Create(&market).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create market"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": market})
}

// EnterPrediction records a wager in a market
func (h *MarketHandler) EnterPrediction(c *gin.Context) {
	marketID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid market id"})
		return
	}

	var req struct {
		Wallet   string `json:"wallet" binding:"required"`
		OptionID string `json:"option_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prediction, err := h.entry.EnterPrediction(c.Request.Context(), req.Wallet, uint(marketID), req.OptionID)
	if err != nil {
		status, msg := entryErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": prediction})
}

// SettleMarket settles a single market on demand
func (h *MarketHandler) SettleMarket(c *gin.Context) {
	marketID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid market id"})
		return
	}

	report, err := h.settlement.SettleMarket(c.Request.Context(), uint(marketID))
	if err != nil && report == nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrMarketNotFound):
			status = http.StatusNotFound
		case errors.Is(err, services.ErrMarketNotOpen),
			errors.Is(err, services.ErrSettlementInProgress):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": err == nil, "data": report})
}

// SettleAllExpired runs a settlement sweep over all expired markets
func (h *MarketHandler) SettleAllExpired(c *gin.Context) {
	reports := h.settlement.SettleAllExpired(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"success": true, "data": reports, "count": len(reports)})
}

// CancelMarket aborts a market and refunds all entries
func (h *MarketHandler) CancelMarket(c *gin.Context) {
	marketID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid market id"})
		return
	}

	report, err := h.settlement.CancelMarket(c.Request.Context(), uint(marketID))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrMarketNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

// entryErrorStatus maps entry failures to HTTP statuses with a reason string.
func entryErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrMarketNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrTokenGate):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, services.ErrAlreadyEntered):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrMarketNotOpen),
		errors.Is(err, services.ErrInvalidChoice),
		errors.Is(err, services.ErrInvalidWallet):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Failed to enter prediction"
	}
}
