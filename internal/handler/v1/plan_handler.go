package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/planflow/planflow/internal/domain/plan"
	"github.com/planflow/planflow/internal/service"
	"github.com/planflow/planflow/pkg/metrics"
)

// PlanHandler exposes the treatment-plan lifecycle: review gate, item
// editing, item status transitions, and scheduling suggestions.
type PlanHandler struct {
	approvals   *service.ApprovalService
	additions   *service.ItemAdditionService
	updates     *service.ItemUpdateService
	deletions   *service.ItemDeletionService
	transitions *service.ItemStatusService
	scheduler   *service.AutoScheduleService
	collector   *metrics.Collector
}

func NewPlanHandler(
	approvals *service.ApprovalService,
	additions *service.ItemAdditionService,
	updates *service.ItemUpdateService,
	deletions *service.ItemDeletionService,
	transitions *service.ItemStatusService,
	scheduler *service.AutoScheduleService,
	collector *metrics.Collector,
) *PlanHandler {
	return &PlanHandler{
		approvals:   approvals,
		additions:   additions,
		updates:     updates,
		deletions:   deletions,
		transitions: transitions,
		scheduler:   scheduler,
		collector:   collector,
	}
}

func (h *PlanHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/plans/:planCode", h.getPlan)
	rg.GET("/plans/:planCode/audit", h.auditTrail)
	rg.POST("/plans/:planCode/submit", h.submitForReview)
	rg.POST("/plans/:planCode/decision", h.decide)
	rg.POST("/plans/:planCode/suggestions", h.generateSuggestions)

	rg.POST("/phases/:phaseID/items", h.addItems)
	rg.PATCH("/items/:itemID", h.updateItem)
	rg.DELETE("/items/:itemID", h.deleteItem)
	rg.PATCH("/items/:itemID/status", h.updateItemStatus)
}

func (h *PlanHandler) getPlan(c *gin.Context) {
	p, err := h.approvals.GetPlan(c.Request.Context(), c.Param("planCode"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PlanHandler) auditTrail(c *gin.Context) {
	entries, err := h.approvals.AuditTrail(c.Request.Context(), c.Param("planCode"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, entries)
}

type submitRequest struct {
	Notes string `json:"notes"`
}

func (h *PlanHandler) submitForReview(c *gin.Context) {
	var req submitRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	p, err := h.approvals.SubmitForReview(c.Request.Context(), c.Param("planCode"), actorID(c), req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

type decisionRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

func (h *PlanHandler) decide(c *gin.Context) {
	var req decisionRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.approvals.Decide(c.Request.Context(), c.Param("planCode"), actorID(c), service.DecideCommand{
		Approve: req.Approve,
		Notes:   req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	outcome := "rejected"
	if req.Approve {
		outcome = "approved"
	}
	h.collector.PlanDecisionsTotal.WithLabelValues(outcome).Inc()

	respondOK(c, p)
}

type addItemsRequest struct {
	Items []addItemLine `json:"items" binding:"required,min=1"`
}

type addItemLine struct {
	ServiceCode string `json:"service_code" binding:"required"`
	Price       int64  `json:"price" binding:"required,gt=0"`
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
	Notes       string `json:"notes"`
}

func (h *PlanHandler) addItems(c *gin.Context) {
	phaseID, ok := parseUUID(c, "phaseID")
	if !ok {
		return
	}

	var req addItemsRequest
	if !bindJSON(c, &req) {
		return
	}

	lines := make([]plan.AddItemLine, 0, len(req.Items))
	for _, l := range req.Items {
		lines = append(lines, plan.AddItemLine{
			ServiceCode: l.ServiceCode,
			Price:       l.Price,
			Quantity:    l.Quantity,
			Notes:       l.Notes,
		})
	}

	result, err := h.additions.AddItems(c.Request.Context(), phaseID, actorID(c), lines)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

type updateItemRequest struct {
	ItemName              *string `json:"item_name"`
	Price                 *int64  `json:"price"`
	EstimatedDurationMins *int    `json:"estimated_duration_mins"`
}

func (h *PlanHandler) updateItem(c *gin.Context) {
	itemID, ok := parseUUID(c, "itemID")
	if !ok {
		return
	}

	var req updateItemRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.updates.UpdateItem(c.Request.Context(), itemID, actorID(c), plan.UpdateItemCommand{
		ItemName:              req.ItemName,
		Price:                 req.Price,
		EstimatedDurationMins: req.EstimatedDurationMins,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

func (h *PlanHandler) deleteItem(c *gin.Context) {
	itemID, ok := parseUUID(c, "itemID")
	if !ok {
		return
	}

	result, err := h.deletions.DeleteItem(c.Request.Context(), itemID, actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

type updateItemStatusRequest struct {
	Status      string     `json:"status" binding:"required"`
	CompletedAt *time.Time `json:"completed_at"`
	Notes       string     `json:"notes"`
}

func (h *PlanHandler) updateItemStatus(c *gin.Context) {
	itemID, ok := parseUUID(c, "itemID")
	if !ok {
		return
	}

	var req updateItemStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.transitions.UpdateItemStatus(c.Request.Context(), itemID, actorID(c), plan.UpdateItemStatusCommand{
		Status:      plan.ItemStatus(req.Status),
		CompletedAt: req.CompletedAt,
		Notes:       req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.collector.ItemTransitionsTotal.WithLabelValues(req.Status).Inc()

	respondOK(c, result)
}

type suggestionsRequest struct {
	DoctorID *uuid.UUID `json:"doctor_id"`
	Force    bool       `json:"force"`
}

func (h *PlanHandler) generateSuggestions(c *gin.Context) {
	var req suggestionsRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	result, err := h.scheduler.GenerateSuggestions(c.Request.Context(), c.Param("planCode"), service.SuggestRequest{
		DoctorID: req.DoctorID,
		Force:    req.Force,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	for _, sg := range result.Suggestions {
		if sg.Success {
			h.collector.SuggestionsTotal.WithLabelValues("success", "").Inc()
			h.collector.SuggestionDaysShift.Observe(float64(sg.DaysShifted))
		} else {
			h.collector.SuggestionsTotal.WithLabelValues("failure", string(sg.FailureCause)).Inc()
		}
	}

	respondOK(c, result)
}
