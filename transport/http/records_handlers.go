package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
	"github.com/layer-3/axiom/service"
	"go.uber.org/zap"
)

// RecordHandlers serves the wallet-owned governance and KeyGrow resources
type RecordHandlers struct {
	grants      *service.GrantService
	enrollments *service.EnrollmentService
	gate        *Gate
	log         *zap.Logger
}

// NewRecordHandlers creates record handlers
func NewRecordHandlers(grants *service.GrantService, enrollments *service.EnrollmentService, gate *Gate, log *zap.Logger) *RecordHandlers {
	return &RecordHandlers{grants: grants, enrollments: enrollments, gate: gate, log: log}
}

type grantView struct {
	ID              string    `json:"id"`
	ProposerAddress string    `json:"proposerAddress"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	RequestedAmount string    `json:"requestedAmount"`
	Status          string    `json:"status"`
	VotingStartsAt  time.Time `json:"votingStartDate"`
	VotingEndsAt    time.Time `json:"votingEndDate"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newGrantView(g *core.Grant) grantView {
	return grantView{
		ID:              g.ID,
		ProposerAddress: g.ProposerAddress,
		Title:           g.Title,
		Description:     g.Description,
		Category:        g.Category,
		RequestedAmount: g.RequestedAmount.String(),
		Status:          g.Status,
		VotingStartsAt:  g.VotingStartsAt,
		VotingEndsAt:    g.VotingEndsAt,
		CreatedAt:       g.CreatedAt,
	}
}

type enrollmentView struct {
	ID               string    `json:"id"`
	PropertyID       uint64    `json:"propertyId"`
	TenantAddress    string    `json:"tenantAddress"`
	TenantName       string    `json:"tenantName,omitempty"`
	TenantEmail      string    `json:"tenantEmail,omitempty"`
	AgreedTermMonths int       `json:"agreedTermMonths"`
	Status           string    `json:"status"`
	TargetOwnership  time.Time `json:"targetOwnershipDate"`
	NextPaymentDue   time.Time `json:"nextPaymentDue"`
	CreatedAt        time.Time `json:"createdAt"`
}

func newEnrollmentView(e *core.Enrollment) enrollmentView {
	return enrollmentView{
		ID:               e.ID,
		PropertyID:       e.PropertyID,
		TenantAddress:    e.TenantAddress,
		TenantName:       e.TenantName,
		TenantEmail:      e.TenantEmail,
		AgreedTermMonths: e.AgreedTermMonths,
		Status:           e.Status,
		TargetOwnership:  e.TargetOwnership,
		NextPaymentDue:   e.NextPaymentDue,
		CreatedAt:        e.CreatedAt,
	}
}

// ListGrants returns recent grant proposals
func (h *RecordHandlers) ListGrants(c *gin.Context) {
	grants, err := h.grants.List(c.Request.Context())
	if err != nil {
		h.log.Error("failed to list grants", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch grants"})
		return
	}

	views := make([]grantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, newGrantView(g))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "grants": views})
}

// CreateGrant submits a grant proposal for the signed-in proposer
func (h *RecordHandlers) CreateGrant(c *gin.Context) {
	v, err := h.gate.VerifyAddress(c, "proposerAddress")
	if err != nil {
		h.gate.fail(c, err)
		return
	}
	if !v.Valid {
		c.JSON(v.Status, v.response())
		return
	}

	var req struct {
		ProposerAddress string      `json:"proposerAddress"`
		Title           string      `json:"title"`
		Description     string      `json:"description"`
		Category        string      `json:"category"`
		RequestedAmount json.Number `json:"requestedAmount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// The proposer is the session wallet; a present claim already matched it
	if req.ProposerAddress != "" {
		req.ProposerAddress = v.AuthenticatedAddress
	}

	grant, err := h.grants.Create(c.Request.Context(), service.GrantInput{
		ProposerAddress: req.ProposerAddress,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		RequestedAmount: req.RequestedAmount.String(),
	})
	if err != nil {
		h.writeError(c, err, "Failed to create grant proposal. Please try again.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"grant": gin.H{
			"id":     grant.ID,
			"title":  grant.Title,
			"status": grant.Status,
		},
	})
}

// CreateEnrollment enrolls the signed-in tenant. Routed behind
// RequireAddressMatch on tenantAddress.
func (h *RecordHandlers) CreateEnrollment(c *gin.Context) {
	var req struct {
		PropertyID       uint64 `json:"propertyId"`
		TenantAddress    string `json:"tenantAddress"`
		TenantName       string `json:"tenantName"`
		TenantEmail      string `json:"tenantEmail"`
		AgreedTermMonths int    `json:"agreedTermMonths"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	if req.TenantAddress != "" {
		auth, ok := AuthFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Wallet authentication required. Please sign in with your wallet.", Code: CodeAuthRequired})
			return
		}
		req.TenantAddress = auth.Address
	}

	enrollment, err := h.enrollments.Enroll(c.Request.Context(), service.EnrollmentInput{
		PropertyID:       req.PropertyID,
		TenantAddress:    req.TenantAddress,
		TenantName:       req.TenantName,
		TenantEmail:      req.TenantEmail,
		AgreedTermMonths: req.AgreedTermMonths,
	})
	if err != nil {
		h.writeError(c, err, "Failed to create enrollment")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "enrollment": newEnrollmentView(enrollment)})
}

// ListEnrollments returns the signed-in tenant's enrollments
func (h *RecordHandlers) ListEnrollments(c *gin.Context) {
	auth, _ := AuthFromContext(c)

	tenant := c.Query("tenantAddress")
	if _, err := core.NormalizeAddress(tenant); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Valid tenant wallet address is required"})
		return
	}
	if auth == nil || !core.SameAddress(tenant, auth.Address) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "You can only view your own enrollments",
			"code":    CodeAddressMismatch,
		})
		return
	}

	filter := ports.EnrollmentFilter{Tenant: tenant, Status: c.Query("status")}
	if raw := c.Query("propertyId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid property ID format - must be a positive integer"})
			return
		}
		filter.PropertyID = id
	}

	enrollments, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err, "Failed to fetch enrollments")
		return
	}

	views := make([]enrollmentView, 0, len(enrollments))
	for _, e := range enrollments {
		views = append(views, newEnrollmentView(e))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enrollments": views})
}

func (h *RecordHandlers) writeError(c *gin.Context, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Message})
	case service.IsDuplicate(err):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "An active enrollment already exists for this property"})
	default:
		h.log.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": fallback})
	}
}
