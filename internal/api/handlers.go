package api

import (
	"net/http"
	"strconv"
	"time"

	"contrarian-trading-bot/internal/auth"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	if req.Username != s.config.OperatorUsername ||
		!auth.VerifyPassword(req.Password, s.config.OperatorPassHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidCredentials.Error()})
		return
	}

	token, err := s.jwtManager.GenerateToken(req.Username)
	if err != nil {
		s.logger.Error().Err(err).Msg("token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   s.jwtManager.TokenDuration(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.engine.ActiveTrades()})
}

func (s *Server) handleRisk(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Daily())
}

func (s *Server) handleSignals(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal journal disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := s.journal.RecentSignals(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("signal query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query signals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signals": records})
}
