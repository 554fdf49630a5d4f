package api

import (
	"net/http"

	"github.com/aethra/hera/internal/engine"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// ENTITY ENDPOINTS
// =============================================================================

// CreateEntity creates a new entity in the caller's organization.
// POST /api/v1/entities
func (h *Handler) CreateEntity(c *gin.Context) {
	var req engine.CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	req.OrganizationID = organizationID(c)

	if err := checkSmartCode(req.SmartCode); err != nil {
		h.respondError(c, err)
		return
	}

	entity, err := h.entities.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entity)
}

// GetEntity returns one entity.
// GET /api/v1/entities/:id
func (h *Handler) GetEntity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entity, err := h.entities.Get(c.Request.Context(), organizationID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

// QueryEntities runs a structured entity query.
// POST /api/v1/entities/query
func (h *Handler) QueryEntities(c *gin.Context) {
	var filter engine.EntityFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	entities, err := h.entities.Query(c.Request.Context(), organizationID(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entities, "count": len(entities)})
}

type updateEntityRequest struct {
	ExpectedVersion int `json:"expected_version"`
	engine.EntityPatch
}

// UpdateEntity patches an entity under optimistic concurrency.
// PUT /api/v1/entities/:id
func (h *Handler) UpdateEntity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	if req.SmartCode != nil {
		if err := checkSmartCode(*req.SmartCode); err != nil {
			h.respondError(c, err)
			return
		}
	}

	entity, err := h.entities.Update(c.Request.Context(), organizationID(c), id, req.ExpectedVersion, req.EntityPatch, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

// BulkCreateEntities creates a batch of entities, one result per request.
// POST /api/v1/entities/bulk
func (h *Handler) BulkCreateEntities(c *gin.Context) {
	var reqs []engine.CreateEntityRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	results := h.entities.BulkCreate(c.Request.Context(), organizationID(c), reqs, actorID(c))

	succeeded := 0
	for _, r := range results {
		if r.Error == "" {
			succeeded++
		}
	}
	status := http.StatusCreated
	if succeeded < len(results) {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"results": results, "succeeded": succeeded, "failed": len(results) - succeeded})
}
