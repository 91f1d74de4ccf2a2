// Package handlers wires the engine's services to the HTTP surface.
package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"taptrack/internal/auth"
	"taptrack/internal/cards"
	"taptrack/internal/checkin"
	"taptrack/internal/config"
	"taptrack/internal/events"
	"taptrack/internal/registrations"
	"taptrack/internal/students"
)

// Handler carries the engine services behind the HTTP endpoints.
type Handler struct {
	cards    *cards.Registry
	events   *events.Service
	importer *registrations.Importer
	recorder *checkin.Recorder
	students *students.Service
	cfg      config.App
}

// New creates a handler.
func New(
	cardReg *cards.Registry,
	eventSvc *events.Service,
	importer *registrations.Importer,
	recorder *checkin.Recorder,
	studentSvc *students.Service,
	cfg config.App,
) *Handler {
	return &Handler{
		cards:    cardReg,
		events:   eventSvc,
		importer: importer,
		recorder: recorder,
		students: studentSvc,
		cfg:      cfg,
	}
}

// AdminLogin exchanges the configured admin credentials for a token pair.
// An unset admin password fails closed.
func (h *Handler) AdminLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.cfg.AdminPassword == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin authentication not configured"})
		return
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.AdminPassword)) == 1
	if !userOK || !passOK {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	tokens, err := auth.Issue(req.Username, "admin", h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}
