package api

import (
	"encoding/json"
	"net/http"

	"github.com/aethra/hera/internal/engine"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// DYNAMIC FIELD ENDPOINTS
// =============================================================================

// CreateField attaches a dynamic field to an entity.
// POST /api/v1/fields
func (h *Handler) CreateField(c *gin.Context) {
	var req engine.CreateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	req.OrganizationID = organizationID(c)

	if err := checkSmartCode(req.SmartCode); err != nil {
		h.respondError(c, err)
		return
	}

	field, err := h.fields.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, field)
}

// GetField returns one dynamic field.
// GET /api/v1/fields/:id
func (h *Handler) GetField(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	field, err := h.fields.Get(c.Request.Context(), organizationID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, field)
}

// QueryFields runs a structured dynamic field query.
// POST /api/v1/fields/query
func (h *Handler) QueryFields(c *gin.Context) {
	var filter engine.FieldFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	fields, err := h.fields.Query(c.Request.Context(), organizationID(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": fields, "count": len(fields)})
}

type setFieldValueRequest struct {
	ExpectedVersion int `json:"expected_version"`
	engine.SetValueRequest
}

// SetFieldValue replaces a field's value under optimistic concurrency.
// PUT /api/v1/fields/:id/value
func (h *Handler) SetFieldValue(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	// A raw decode pass distinguishes "validation_rules": null (clear the
	// rules) from the key being absent (keep the stored rules).
	var raw map[string]json.RawMessage
	if err := c.ShouldBindBodyWithJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	var req setFieldValueRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	_, req.RulesProvided = raw["validation_rules"]

	field, err := h.fields.SetValue(c.Request.Context(), organizationID(c), id, req.ExpectedVersion, req.SetValueRequest, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, field)
}

type revalidateFieldRequest struct {
	ExpectedVersion int `json:"expected_version"`
}

// RevalidateField re-runs the stored rules against the stored value under
// optimistic concurrency.
// POST /api/v1/fields/:id/revalidate
func (h *Handler) RevalidateField(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req revalidateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	field, err := h.fields.Revalidate(c.Request.Context(), organizationID(c), id, req.ExpectedVersion, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, field)
}
