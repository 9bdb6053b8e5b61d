package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/congregate/internal/audit"
	"github.com/mrlokans/congregate/internal/entities"
)

type AuditController struct {
	auditService *audit.Service
}

func NewAuditController(auditService *audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// GetAuditEvents returns paginated audit events as JSON
// GET /api/audit?run_id=...&type=...&page=N&limit=N
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	page := queryInt(c, "page", 1, 0)
	limit := queryInt(c, "limit", 25, 100)

	if eventType := c.Query("type"); eventType != "" {
		events, err := ac.auditService.GetEventsByType(entities.AuditEventType(eventType), limit)
		if err != nil {
			respondInternalError(c, err, "audit events by type")
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
		return
	}

	offset := (page - 1) * limit
	events, total, err := ac.auditService.GetEvents(c.Query("run_id"), limit, offset)
	if err != nil {
		respondInternalError(c, err, "audit events")
		return
	}

	totalPages := (int(total) + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:       events,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    int64(offset+len(events)) < total,
		TotalPages: totalPages,
	})
}
