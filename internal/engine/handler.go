package engine

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/certification"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/fraud"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/identity"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/transactions"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
)

const identityKey = "engine.identity"

// Handler is the HTTP surface over the engine facade.
type Handler struct {
	engine *Engine
	parser *identity.Parser
	logger *zap.Logger
}

// NewHandler creates an engine HTTP handler.
func NewHandler(engine *Engine, parser *identity.Parser, logger *zap.Logger) *Handler {
	return &Handler{
		engine: engine,
		parser: parser,
		logger: logger,
	}
}

// RegisterRoutes mounts the engine endpoints on the router group. Every
// route requires an authenticated identity.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Use(h.authenticate)

	creditsGroup := rg.Group("/credits")
	{
		creditsGroup.POST("/requests", h.SubmitCreditRequest)
		creditsGroup.POST("/requests/:id/assign", h.AssignCertifier)
		creditsGroup.POST("/requests/:id/decision", h.DecideCreditRequest)
		creditsGroup.GET("/mine", h.ListMyCredits)
		creditsGroup.GET("/:id", h.GetCredit)
		creditsGroup.POST("/:id/retire", h.RetireCredit)
		creditsGroup.GET("/:id/fraud-alerts", h.ListFraudAlerts)
	}

	marketplaceGroup := rg.Group("/marketplace")
	{
		marketplaceGroup.GET("/credits", h.ListAvailableCredits)
		marketplaceGroup.POST("/purchases", h.RequestPurchase)
		marketplaceGroup.GET("/purchases", h.ListMyTransactions)
		marketplaceGroup.POST("/purchases/:id/accept", h.AcceptPurchase)
		marketplaceGroup.POST("/purchases/:id/decline", h.DeclinePurchase)
		marketplaceGroup.POST("/purchases/:id/cancel", h.CancelPurchase)
	}

	notificationsGroup := rg.Group("/notifications")
	{
		notificationsGroup.GET("", h.GetNotifications)
		notificationsGroup.GET("/unread-count", h.UnreadNotificationCount)
		notificationsGroup.PUT("/:id/read", h.MarkNotificationRead)
		notificationsGroup.PUT("/read-all", h.MarkAllNotificationsRead)
	}

	rg.PUT("/fraud-alerts/:id/status", h.UpdateFraudAlertStatus)
}

func (h *Handler) authenticate(c *gin.Context) {
	actor, err := h.parser.FromBearer(c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set(identityKey, actor)
	c.Next()
}

func (h *Handler) actor(c *gin.Context) identity.Identity {
	return c.MustGet(identityKey).(identity.Identity)
}

type submitRequestPayload struct {
	FacilityName     string   `json:"facility_name" binding:"required"`
	FacilityLocation string   `json:"facility_location" binding:"required"`
	EnergySource     string   `json:"energy_source" binding:"required"`
	EnergyAmountMWh  float64  `json:"energy_amount_mwh" binding:"required"`
	ProductionDate   string   `json:"production_date" binding:"required"`
	ProofDocumentRef string   `json:"proof_document_ref" binding:"required"`
	PricePerMWh      *float64 `json:"price_per_mwh,omitempty"`
}

func (h *Handler) SubmitCreditRequest(c *gin.Context) {
	var payload submitRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	productionDate, err := time.Parse("2006-01-02", payload.ProductionDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "production_date must be YYYY-MM-DD"})
		return
	}

	req, credit, err := h.engine.SubmitCreditRequest(c.Request.Context(), h.actor(c), certification.SubmitInput{
		FacilityName:     payload.FacilityName,
		FacilityLocation: payload.FacilityLocation,
		EnergySource:     credits.EnergySource(payload.EnergySource),
		EnergyAmountMWh:  payload.EnergyAmountMWh,
		ProductionDate:   productionDate,
		ProofDocumentRef: payload.ProofDocumentRef,
		PricePerMWh:      payload.PricePerMWh,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": req, "credit": credit})
}

func (h *Handler) AssignCertifier(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	req, err := h.engine.AssignCertifier(c.Request.Context(), h.actor(c), requestID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type decidePayload struct {
	Decision         string            `json:"decision" binding:"required"`
	Comments         string            `json:"comments,omitempty"`
	RejectionReason  string            `json:"rejection_reason,omitempty"`
	RejectionDetails string            `json:"rejection_details,omitempty"`
	Indicators       *fraud.Indicators `json:"indicators,omitempty"`
	Override         bool              `json:"override,omitempty"`
}

func (h *Handler) DecideCreditRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var payload decidePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	credit, err := h.engine.DecideCreditRequest(c.Request.Context(), h.actor(c), certification.DecideInput{
		RequestID:        requestID,
		Decision:         certification.Decision(payload.Decision),
		Comments:         payload.Comments,
		RejectionReason:  payload.RejectionReason,
		RejectionDetails: payload.RejectionDetails,
		Indicators:       payload.Indicators,
		Override:         payload.Override,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, credit)
}

func (h *Handler) GetCredit(c *gin.Context) {
	credit, err := h.engine.GetCredit(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, credit)
}

func (h *Handler) ListMyCredits(c *gin.Context) {
	list, err := h.engine.ListMyCredits(c.Request.Context(), h.actor(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ListAvailableCredits(c *gin.Context) {
	filter := credits.ListFilter{}
	if source := c.Query("energy_source"); source != "" {
		s := credits.EnergySource(source)
		filter.EnergySource = &s
	}
	if producer := c.Query("producer_id"); producer != "" {
		id, err := uuid.Parse(producer)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid producer_id"})
			return
		}
		filter.ProducerID = &id
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}

	listings, err := h.engine.ListAvailableCredits(c.Request.Context(), h.actor(c), filter)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, listings)
}

type purchasePayload struct {
	CreditID string `json:"credit_id" binding:"required"`
}

func (h *Handler) RequestPurchase(c *gin.Context) {
	var payload purchasePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txn, err := h.engine.RequestPurchase(c.Request.Context(), h.actor(c), payload.CreditID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (h *Handler) ListMyTransactions(c *gin.Context) {
	txns, err := h.engine.ListMyTransactions(c.Request.Context(), h.actor(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (h *Handler) AcceptPurchase(c *gin.Context)  { h.decidePurchase(c, h.engine.AcceptPurchase) }
func (h *Handler) DeclinePurchase(c *gin.Context) { h.decidePurchase(c, h.engine.DeclinePurchase) }
func (h *Handler) CancelPurchase(c *gin.Context)  { h.decidePurchase(c, h.engine.CancelPurchase) }

func (h *Handler) decidePurchase(c *gin.Context, op func(ctx context.Context, actor identity.Identity, txnID uuid.UUID) (*transactions.PurchaseTransaction, error)) {
	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	txn, err := op(c.Request.Context(), h.actor(c), txnID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

type retirePayload struct {
	Purpose *string `json:"purpose,omitempty"`
}

func (h *Handler) RetireCredit(c *gin.Context) {
	var payload retirePayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	credit, err := h.engine.RetireCredit(c.Request.Context(), h.actor(c), c.Param("id"), payload.Purpose)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, credit)
}

func (h *Handler) GetNotifications(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	list, err := h.engine.GetNotifications(c.Request.Context(), h.actor(c), limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) UnreadNotificationCount(c *gin.Context) {
	count, err := h.engine.UnreadNotificationCount(c.Request.Context(), h.actor(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.engine.MarkNotificationRead(c.Request.Context(), h.actor(c), notificationID); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

type markAllPayload struct {
	IDs []uuid.UUID `json:"ids,omitempty"`
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	var payload markAllPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.engine.MarkAllNotificationsRead(c.Request.Context(), h.actor(c), payload.IDs); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func (h *Handler) ListFraudAlerts(c *gin.Context) {
	alerts, err := h.engine.ListFraudAlerts(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

type alertStatusPayload struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) UpdateFraudAlertStatus(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	var payload alertStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.engine.UpdateFraudAlertStatus(c.Request.Context(), h.actor(c), alertID, fraud.AlertStatus(payload.Status)); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// renderError maps the engine error taxonomy to HTTP statuses. Conflict
// responses carry the machine-readable reason code.
func (h *Handler) renderError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if reason := errs.ReasonOf(err); reason != "" {
		body["reason"] = reason
	}

	switch errs.KindOf(err) {
	case errs.KindValidation:
		c.JSON(http.StatusBadRequest, body)
	case errs.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case errs.KindConflict:
		c.JSON(http.StatusConflict, body)
	case errs.KindUnauthorized:
		c.JSON(http.StatusForbidden, body)
	case errs.KindFraudHold:
		c.JSON(http.StatusUnprocessableEntity, body)
	default:
		h.logger.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, body)
	}
}
