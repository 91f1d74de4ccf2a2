package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taptrack/internal/cards"
	"taptrack/internal/events"
	"taptrack/internal/registrations"
	"taptrack/internal/students"
)

type eventRequest struct {
	Name        string    `json:"name" binding:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime" binding:"required"`
	EndTime     time.Time `json:"endTime" binding:"required"`
	Status      string    `json:"status"`
}

func eventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, events.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
	case errors.Is(err, events.ErrInvalidTimeRange),
		errors.Is(err, events.ErrInvalidStatus),
		errors.Is(err, events.ErrNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event operation failed"})
	}
}

// CreateEvent stores a new event.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	evt, err := h.events.Create(c.Request.Context(), events.Event{
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      events.Status(req.Status),
	})
	if err != nil {
		eventError(c, err)
		return
	}
	c.JSON(http.StatusCreated, evt)
}

// ListEvents returns all non-deleted events.
func (h *Handler) ListEvents(c *gin.Context) {
	list, err := h.events.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if list == nil {
		list = []events.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}

// GetEvent returns one event.
func (h *Handler) GetEvent(c *gin.Context) {
	evt, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		eventError(c, err)
		return
	}
	c.JSON(http.StatusOK, evt)
}

// UpdateEvent replaces an event's fields.
func (h *Handler) UpdateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	evt, err := h.events.Update(c.Request.Context(), events.Event{
		ID:          c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      events.Status(req.Status),
	})
	if err != nil {
		eventError(c, err)
		return
	}
	c.JSON(http.StatusOK, evt)
}

// ActivateEvent makes the target the single active event.
func (h *Handler) ActivateEvent(c *gin.Context) {
	if err := h.events.Activate(c.Request.Context(), c.Param("id")); err != nil {
		eventError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": events.StatusActive})
}

// EndEvent completes the target unconditionally.
func (h *Handler) EndEvent(c *gin.Context) {
	if err := h.events.End(c.Request.Context(), c.Param("id")); err != nil {
		eventError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": events.StatusCompleted})
}

// DeleteEvent soft-deletes the target.
func (h *Handler) DeleteEvent(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		eventError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ActivateCard binds a pending card to a student.
func (h *Handler) ActivateCard(c *gin.Context) {
	var req struct {
		StudentID string `json:"studentId" binding:"required"`
		CardUID   string `json:"cardUid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	student, err := h.cards.Activate(c.Request.Context(), req.StudentID, req.CardUID)
	if err != nil {
		var conflict *cards.ConflictError
		switch {
		case errors.Is(err, cards.ErrInvalidUID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card uid"})
		case errors.Is(err, cards.ErrStudentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		case errors.Is(err, cards.ErrStudentHasCard):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.As(err, &conflict):
			c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "activation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "student": student})
}

// PendingCards lists non-expired pending cards, most recent first.
func (h *Handler) PendingCards(c *gin.Context) {
	pending, err := h.cards.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pending list failed"})
		return
	}
	if pending == nil {
		pending = []cards.PendingCard{}
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "count": len(pending)})
}

// SweepPendingCards removes expired pending entries on demand.
func (h *Handler) SweepPendingCards(c *gin.Context) {
	removed, err := h.cards.SweepExpired(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ImportRegistrations bulk-loads a registration CSV for one event.
// Expects multipart form with a "file" field.
func (h *Handler) ImportRegistrations(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "csv file field required"})
		return
	}
	defer file.Close()

	report, err := h.importer.Import(c.Request.Context(), c.Param("id"), file)
	if err != nil {
		var verr *registrations.ValidationError
		switch {
		case errors.Is(err, events.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":       "import validation failed",
				"errors":      verr.RowErrors,
				"totalErrors": verr.Total,
			})
		case errors.Is(err, registrations.ErrTooManyRows),
			errors.Is(err, registrations.ErrMissingColumn),
			errors.Is(err, registrations.ErrEmptyImport):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		}
		return
	}
	c.JSON(http.StatusOK, report)
}

// CreateStudent stores a new identity record.
func (h *Handler) CreateStudent(c *gin.Context) {
	var req struct {
		StudentNumber string  `json:"studentNumber" binding:"required"`
		Name          string  `json:"name" binding:"required"`
		Email         *string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.students.Create(c.Request.Context(), students.Student{
		StudentNumber: req.StudentNumber,
		Name:          req.Name,
		Email:         req.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, students.ErrDuplicateNumber):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, students.ErrNumberRequired), errors.Is(err, students.ErrNameRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create student failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, st)
}

// ListStudents returns all students.
func (h *Handler) ListStudents(c *gin.Context) {
	list, err := h.students.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if list == nil {
		list = []students.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": list})
}
