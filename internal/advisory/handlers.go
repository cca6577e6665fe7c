package advisory

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mnbara/advisory/internal/audit"
	"github.com/mnbara/advisory/internal/idgen"
	"github.com/mnbara/advisory/internal/intent"
	"github.com/mnbara/advisory/internal/trust"
	"github.com/mnbara/advisory/internal/validation"
)

// Handler provides HTTP endpoints for the advisory pipeline.
type Handler struct {
	svc *Service
}

// NewHandler creates an advisory handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up advisory endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/advisory/assess", h.Assess)
	r.POST("/advisory/trust-score", h.TrustScore)
	r.POST("/advisory/intent", h.ClassifyIntent)
	r.GET("/advisory/corridors", h.ListCorridors)
	r.GET("/advisory/corridors/:id/volume", validation.CorridorParamMiddleware(), h.CorridorVolume)
	r.GET("/audit/logs", h.AuditLogs)
	r.GET("/audit/snapshots", h.AuditSnapshots)
	r.GET("/audit/snapshots/:requestId", h.AuditSnapshot)
}

// PartyRequest carries one party's trust inputs over the wire.
type PartyRequest struct {
	UserID                 string    `json:"userId"`
	Role                   string    `json:"role"`
	EmailVerified          bool      `json:"emailVerified"`
	PhoneVerified          bool      `json:"phoneVerified"`
	TwoFAEnabled           bool      `json:"twoFAEnabled"`
	TotalTransactions      int       `json:"totalTransactions"`
	SuccessfulTransactions int       `json:"successfulTransactions"`
	AccountCreatedAt       time.Time `json:"accountCreatedAt"`
	AverageRating          float64   `json:"averageRating"`
	TotalRatings           int       `json:"totalRatings"`
	DisputesRaised         int       `json:"disputesRaised"`
	DisputesLost           int       `json:"disputesLost"`
	ResponseRate           float64   `json:"responseRate"`
	KYCLevel               string    `json:"kycLevel"`
	PassportVerified       bool      `json:"passportVerified"`
	TotalDeliveries        int       `json:"totalDeliveries"`
	SuccessfulDeliveries   int       `json:"successfulDeliveries"`
	OnTimeDeliveries       int       `json:"onTimeDeliveries"`
}

func (p PartyRequest) toInput() trust.Input {
	return trust.Input{
		UserID:                 p.UserID,
		Role:                   trust.Role(strings.ToUpper(p.Role)),
		EmailVerified:          p.EmailVerified,
		PhoneVerified:          p.PhoneVerified,
		TwoFAEnabled:           p.TwoFAEnabled,
		TotalTransactions:      p.TotalTransactions,
		SuccessfulTransactions: p.SuccessfulTransactions,
		AccountCreatedAt:       p.AccountCreatedAt,
		AverageRating:          p.AverageRating,
		TotalRatings:           p.TotalRatings,
		DisputesRaised:         p.DisputesRaised,
		DisputesLost:           p.DisputesLost,
		ResponseRate:           p.ResponseRate,
		KYCLevel:               trust.KYCLevel(strings.ToLower(p.KYCLevel)),
		PassportVerified:       p.PassportVerified,
		TotalDeliveries:        p.TotalDeliveries,
		SuccessfulDeliveries:   p.SuccessfulDeliveries,
		OnTimeDeliveries:       p.OnTimeDeliveries,
	}
}

// AssessRequest is the full pipeline request body.
type AssessRequest struct {
	RequestID    string       `json:"requestId"`
	TravelerID   string       `json:"travelerId"`
	Origin       string       `json:"origin"`
	Destination  string       `json:"destination"`
	ItemValue    float64      `json:"itemValue"`
	Currency     string       `json:"currency"`
	ItemCategory string       `json:"itemCategory"`
	DeliveryDays int          `json:"deliveryDays"`
	MatchScore   float64      `json:"matchScore"`
	Buyer        PartyRequest `json:"buyer"`
	Traveler     PartyRequest `json:"traveler"`
}

// Assess runs the full advisory pipeline.
// POST /v1/advisory/assess
func (h *Handler) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body is not valid JSON",
		})
		return
	}

	req.Origin = validation.SanitizeCountry(req.Origin)
	req.Destination = validation.SanitizeCountry(req.Destination)

	if errs := validation.Validate(
		validation.Required("buyer.userId", req.Buyer.UserID),
		validation.Required("traveler.userId", req.Traveler.UserID),
		validation.Required("origin", req.Origin),
		validation.Required("destination", req.Destination),
		validation.ValidCountry("origin", req.Origin),
		validation.ValidCountry("destination", req.Destination),
		validation.ValidCurrency("currency", req.Currency),
		validation.NonNegative("itemValue", req.ItemValue),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"details": errs,
		})
		return
	}

	if req.RequestID == "" {
		req.RequestID = idgen.WithPrefix("req_")
	}

	result := h.svc.Assess(c.Request.Context(), AssessInput{
		RequestID:    req.RequestID,
		TravelerID:   req.TravelerID,
		ActorID:      req.Buyer.UserID,
		ClientIP:     c.ClientIP(),
		Origin:       req.Origin,
		Destination:  req.Destination,
		ItemValue:    req.ItemValue,
		Currency:     req.Currency,
		ItemCategory: req.ItemCategory,
		DeliveryDays: req.DeliveryDays,
		MatchScore:   req.MatchScore,
		Buyer:        req.Buyer.toInput(),
		Traveler:     req.Traveler.toInput(),
	})

	if result.Rejected() {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     "admission_rejected",
			"message":   result.Admission.Reason,
			"admission": result.Admission,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assessment": result})
}

// TrustScore computes a single party's trust score.
// POST /v1/advisory/trust-score
func (h *Handler) TrustScore(c *gin.Context) {
	var req PartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body is not valid JSON",
		})
		return
	}

	req.Role = strings.ToUpper(req.Role)
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("role", req.Role),
		validation.ValidRole("role", req.Role),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"details": errs,
		})
		return
	}

	score := h.svc.TrustScore(c.Request.Context(), req.toInput())
	if score == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "feature_disabled",
			"message": "Trust scoring is currently disabled",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trustScore": score})
}

// IntentRequest is the intent classification request body.
type IntentRequest struct {
	ActorID         string `json:"actorId"`
	PageContext     string `json:"pageContext"`
	Action          string `json:"action"`
	UserRole        string `json:"userRole"`
	ItemInteraction string `json:"itemInteraction"`
}

// ClassifyIntent classifies context signals.
// POST /v1/advisory/intent
func (h *Handler) ClassifyIntent(c *gin.Context) {
	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body is not valid JSON",
		})
		return
	}
	if req.ActorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": "actorId is required",
		})
		return
	}

	result, admission := h.svc.ClassifyIntent(c.Request.Context(), intent.Input{
		PageContext:     req.PageContext,
		Action:          req.Action,
		UserRole:        req.UserRole,
		ItemInteraction: req.ItemInteraction,
	}, req.ActorID, c.ClientIP())

	if admission != nil {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     "admission_rejected",
			"message":   admission.Reason,
			"admission": admission,
		})
		return
	}
	if result == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "feature_disabled",
			"message": "Intent classification is currently disabled",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"intent": result})
}

// ListCorridors returns the configured corridor lanes.
// GET /v1/advisory/corridors
func (h *Handler) ListCorridors(c *gin.Context) {
	corridors := h.svc.Corridors()
	c.JSON(http.StatusOK, gin.H{
		"corridors": corridors,
		"count":     len(corridors),
	})
}

// CorridorVolume reports usage against a corridor's daily caps.
// GET /v1/advisory/corridors/:id/volume
func (h *Handler) CorridorVolume(c *gin.Context) {
	id := c.Param("id")
	status := h.svc.CorridorVolume(id)
	c.JSON(http.StatusOK, gin.H{
		"corridorId": id,
		"volume":     status,
	})
}

// AuditLogs returns recorded audit entries.
// GET /v1/audit/logs?operation=&limit=
func (h *Handler) AuditLogs(c *gin.Context) {
	q := audit.EntryQuery{
		Operation: c.Query("operation"),
		Limit:     parseLimit(c.Query("limit")),
	}

	entries, err := h.svc.AuditLogs(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "query_failed",
			"message": "Failed to query audit logs",
		})
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// AuditSnapshots returns stored decision snapshots.
// GET /v1/audit/snapshots?limit=
func (h *Handler) AuditSnapshots(c *gin.Context) {
	snapshots, err := h.svc.AuditSnapshots(c.Request.Context(), parseLimit(c.Query("limit")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "query_failed",
			"message": "Failed to query snapshots",
		})
		return
	}
	if snapshots == nil {
		snapshots = []*audit.Snapshot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// AuditSnapshot returns the snapshot for one request.
// GET /v1/audit/snapshots/:requestId
func (h *Handler) AuditSnapshot(c *gin.Context) {
	requestID := c.Param("requestId")

	snap, err := h.svc.AuditSnapshot(c.Request.Context(), requestID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "query_failed",
			"message": "Failed to query snapshot",
		})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "snapshot_not_found",
			"message": "No snapshot stored for this request",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshot": snap})
}

func parseLimit(s string) int {
	if s == "" {
		return 0
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 {
		return 0
	}
	if limit > 1000 {
		limit = 1000
	}
	return limit
}
