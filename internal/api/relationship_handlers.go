package api

import (
	"net/http"

	"github.com/aethra/hera/internal/engine"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// RELATIONSHIP ENDPOINTS
// =============================================================================

// CreateRelationship links two entities.
// POST /api/v1/relationships
func (h *Handler) CreateRelationship(c *gin.Context) {
	var req engine.CreateRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	req.OrganizationID = organizationID(c)

	if err := checkSmartCode(req.SmartCode); err != nil {
		h.respondError(c, err)
		return
	}

	rel, err := h.rels.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rel)
}

// GetRelationship returns one relationship.
// GET /api/v1/relationships/:id
func (h *Handler) GetRelationship(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rel, err := h.rels.Get(c.Request.Context(), organizationID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

// QueryRelationships runs a structured relationship query.
// POST /api/v1/relationships/query
func (h *Handler) QueryRelationships(c *gin.Context) {
	var filter engine.RelationshipFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	rels, err := h.rels.Query(c.Request.Context(), organizationID(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rels, "count": len(rels)})
}

type updateRelationshipRequest struct {
	ExpectedVersion int `json:"expected_version"`
	engine.RelationshipPatch
}

// UpdateRelationship patches a relationship under optimistic concurrency.
// PUT /api/v1/relationships/:id
func (h *Handler) UpdateRelationship(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateRelationshipRequest
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

	rel, err := h.rels.Update(c.Request.Context(), organizationID(c), id, req.ExpectedVersion, req.RelationshipPatch, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}
