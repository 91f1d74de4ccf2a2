package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taptrack/internal/cards"
	"taptrack/internal/checkin"
	"taptrack/internal/events"
	"taptrack/internal/registrations"
)

// DetectCard records a single card tap from a field device.
func (h *Handler) DetectCard(c *gin.Context) {
	var req struct {
		UID      string `json:"uid" binding:"required"`
		DeviceID string `json:"deviceId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.cards.ReportDetection(c.Request.Context(), req.UID, req.DeviceID)
	if err != nil {
		if errors.Is(err, cards.ErrInvalidUID) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid card uid"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "detection failed"})
		return
	}

	switch res.Status {
	case cards.DetectionDuplicate:
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "card already activated",
			"cardUid": res.UID,
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "card pending activation",
			"cardUid": res.UID,
		})
	}
}

// DetectCardsBatch records up to 100 taps at once; per-card failures never
// abort their siblings.
func (h *Handler) DetectCardsBatch(c *gin.Context) {
	var req struct {
		Cards []struct {
			UID string `json:"uid"`
		} `json:"cards" binding:"required"`
		DeviceID string `json:"deviceId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uids := make([]string, len(req.Cards))
	for i, card := range req.Cards {
		uids[i] = card.UID
	}
	res, err := h.cards.ReportDetectionBatch(c.Request.Context(), uids, req.DeviceID)
	if err != nil {
		if errors.Is(err, cards.ErrBatchTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch detection failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// CardStatus lets a device poll whether a tapped card has been activated.
func (h *Handler) CardStatus(c *gin.Context) {
	status, err := h.cards.ResolveStatus(c.Request.Context(), c.Param("uid"))
	if err != nil {
		if errors.Is(err, cards.ErrInvalidUID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card uid"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status lookup failed"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ActiveEvent returns the single event currently accepting check-ins, or null.
func (h *Handler) ActiveEvent(c *gin.Context) {
	evt, err := h.events.ActiveEvent(c.Request.Context())
	if err != nil {
		if errors.Is(err, events.ErrMultipleActive) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "active event invariant violated"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "active event lookup failed"})
		return
	}
	if evt == nil {
		c.JSON(http.StatusOK, gin.H{"event": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": evt})
}

// EventRegistrations exports the card-bound registration list a device stages
// before an event starts.
func (h *Handler) EventRegistrations(c *gin.Context) {
	export, err := h.importer.ExportForEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, events.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		case errors.Is(err, registrations.ErrEventCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "event already completed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration export failed"})
		}
		return
	}
	c.JSON(http.StatusOK, export)
}

// CheckIn runs the check-in state machine for a card tap.
func (h *Handler) CheckIn(c *gin.Context) {
	var req struct {
		CardUID string `json:"cardUid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.recorder.CheckIn(c.Request.Context(), req.CardUID)
	if err != nil {
		switch {
		case errors.Is(err, cards.ErrInvalidUID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card uid"})
		case errors.Is(err, checkin.ErrNoActiveEvent):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active event"})
		case errors.Is(err, checkin.ErrCardNotRegistered):
			c.JSON(http.StatusNotFound, gin.H{"error": "card not registered"})
		case errors.Is(err, checkin.ErrNotRegistered):
			c.JSON(http.StatusForbidden, gin.H{"error": "not registered for this event"})
		case errors.Is(err, checkin.ErrAlreadyCheckedIn):
			c.JSON(http.StatusConflict, gin.H{"error": "already checked in"})
		case errors.Is(err, events.ErrMultipleActive):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "active event invariant violated"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "check-in failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "checkIn": result})
}
