package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"oracle/internal/services"

	"github.com/gin-gonic/gin"
)

// TournamentHandler exposes tournament join and leaderboard endpoints.
type TournamentHandler struct {
	tournaments *services.TournamentService
}

// NewTournamentHandler creates a new TournamentHandler
func NewTournamentHandler(tournaments *services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournaments: tournaments}
}

// GetTournaments lists tournaments
func (h *TournamentHandler) GetTournaments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	tournaments, err := h.tournaments.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tournaments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": tournaments, "count": len(tournaments)})
}

// Join registers a wallet in a tournament
func (h *TournamentHandler) Join(c *gin.Context) {
	tournamentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tournament id"})
		return
	}

	var req struct {
		Wallet string `json:"wallet" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tournaments.Join(c.Request.Context(), req.Wallet, uint(tournamentID)); err != nil {
		switch {
		case errors.Is(err, services.ErrTournamentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrAlreadyJoined):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrInvalidWallet):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join tournament"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Leaderboard returns the recomputed leaderboard for a tournament
func (h *TournamentHandler) Leaderboard(c *gin.Context) {
	tournamentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tournament id"})
		return
	}

	entries, err := h.tournaments.Leaderboard(c.Request.Context(), uint(tournamentID))
	if err != nil {
		if errors.Is(err, services.ErrTournamentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries, "count": len(entries)})
}
