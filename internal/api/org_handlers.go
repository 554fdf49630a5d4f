package api

import (
	"net/http"

	"github.com/aethra/hera/internal/auth"
	"github.com/aethra/hera/internal/engine"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// ORGANIZATION (ADMIN) ENDPOINTS
// =============================================================================

// ListOrganizations returns every tenant.
// GET /admin/organizations
func (h *Handler) ListOrganizations(c *gin.Context) {
	orgs, err := h.orgs.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orgs, "count": len(orgs)})
}

// CreateOrganization registers a tenant and returns its freshly generated
// API key. The key is shown only in this response.
// POST /admin/organizations
func (h *Handler) CreateOrganization(c *gin.Context) {
	var req engine.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}

	key, hash, err := auth.GenerateAPIKey()
	if err != nil {
		h.respondError(c, err)
		return
	}
	if req.Settings == nil {
		req.Settings = make(map[string]interface{})
	}
	req.Settings[auth.APIKeySettingsKey] = hash

	org, err := h.orgs.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"organization": org, "api_key": key})
}

// GetOrganization returns one tenant.
// GET /admin/organizations/:id
func (h *Handler) GetOrganization(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	org, err := h.orgs.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

type updateOrganizationRequest struct {
	ExpectedVersion int `json:"expected_version"`
	engine.OrganizationPatch
}

// UpdateOrganization patches a tenant under optimistic concurrency.
// PUT /admin/organizations/:id
func (h *Handler) UpdateOrganization(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}

	org, err := h.orgs.Update(c.Request.Context(), id, req.ExpectedVersion, req.OrganizationPatch, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

// RotateAPIKey replaces a tenant's API key. The previous key stops working
// immediately; the new one is shown only in this response.
// POST /admin/organizations/:id/rotate-key
func (h *Handler) RotateAPIKey(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	org, err := h.orgs.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	key, hash, err := auth.GenerateAPIKey()
	if err != nil {
		h.respondError(c, err)
		return
	}

	settings := map[string]interface{}(org.Settings)
	if settings == nil {
		settings = make(map[string]interface{})
	}
	settings[auth.APIKeySettingsKey] = hash

	updated, err := h.orgs.Update(c.Request.Context(), id, org.Version, engine.OrganizationPatch{Settings: settings}, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": updated, "api_key": key})
}
