package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"oracle/internal/services"

	"github.com/gin-gonic/gin"
)

// UserHandler exposes profile, daily claim and ledger endpoints.
type UserHandler struct {
	ledger *services.LedgerService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(ledger *services.LedgerService) *UserHandler {
	return &UserHandler{ledger: ledger}
}

// GetProfile returns (creating if needed) the profile for a wallet
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.ledger.GetOrCreateUser(c.Param("wallet"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": profile})
}

// ClaimDailyBonus credits the daily bonus once per 24h window
func (h *UserHandler) ClaimDailyBonus(c *gin.Context) {
	newBalance, err := h.ledger.ClaimDailyBonus(c.Param("wallet"))
	if err != nil {
		if errors.Is(err, services.ErrAlreadyClaimed) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to claim bonus"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "balance": newBalance})
}

// GetLedger returns the wallet's ledger history, newest first
func (h *UserHandler) GetLedger(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.ledger.History(c.Param("wallet"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load ledger"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries, "count": len(entries)})
}
