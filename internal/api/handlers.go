// Package api contains the HTTP surface over the universal engines.
package api

import (
	"net/http"
	"strings"

	"github.com/aethra/hera/internal/auth"
	"github.com/aethra/hera/internal/engine"
	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler contains all API handlers
type Handler struct {
	orgs         *engine.OrganizationEngine
	entities     *engine.EntityEngine
	fields       *engine.FieldEngine
	rels         *engine.RelationshipEngine
	transactions *engine.TransactionEngine
	jwt          *auth.JWTService
	log          *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	orgs *engine.OrganizationEngine,
	entities *engine.EntityEngine,
	fields *engine.FieldEngine,
	rels *engine.RelationshipEngine,
	transactions *engine.TransactionEngine,
	jwt *auth.JWTService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		orgs:         orgs,
		entities:     entities,
		fields:       fields,
		rels:         rels,
		transactions: transactions,
		jwt:          jwt,
		log:          log.With("component", "api"),
	}
}

// respondError maps an engine error onto its HTTP shape.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := apperr.ToHTTPError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// OrganizationMiddleware resolves the tenant scope from the
// X-Organization-ID header. Every record operation runs inside this scope.
func (h *Handler) OrganizationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgIDStr := c.GetHeader("X-Organization-ID")
		if orgIDStr == "" {
			orgIDStr = c.Query("organization_id")
		}
		if orgIDStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_REQUIRED_FIELD", "message": "organization_id is required"})
			c.Abort()
			return
		}

		orgID, err := uuid.Parse(orgIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid organization_id"})
			c.Abort()
			return
		}

		c.Set("organization_id", orgID)
		c.Next()
	}
}

// AuthMiddleware authenticates the caller with either a bearer token or the
// organization's API key. A bearer token must be scoped to the requested
// organization; an API key is checked against the hash in the organization
// settings.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.MustGet("organization_id").(uuid.UUID)

		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			claims, err := h.jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "invalid token"})
				c.Abort()
				return
			}
			if claims.OrganizationID != orgID {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "token is not scoped to this organization"})
				c.Abort()
				return
			}
			c.Set("actor_id", claims.ActorID)
			c.Next()
			return
		}

		if key := c.GetHeader("X-API-Key"); key != "" {
			org, err := h.orgs.Get(c.Request.Context(), orgID)
			if err != nil {
				h.respondError(c, err)
				c.Abort()
				return
			}
			hash, _ := org.Settings[auth.APIKeySettingsKey].(string)
			if hash == "" || !auth.VerifyAPIKey(key, hash) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "invalid api key"})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "authentication required"})
		c.Abort()
	}
}

// AdminMiddleware authenticates administrative endpoints with a bearer
// token. Admin tokens are minted from the CLI and carry any organization
// scope; the admin surface itself is not tenant scoped.
func (h *Handler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "authentication required"})
			c.Abort()
			return
		}
		claims, err := h.jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "invalid token"})
			c.Abort()
			return
		}
		c.Set("actor_id", claims.ActorID)
		c.Next()
	}
}

// organizationID returns the tenant scope resolved by the middleware.
func organizationID(c *gin.Context) uuid.UUID {
	return c.MustGet("organization_id").(uuid.UUID)
}

// actorID returns the authenticated actor, when one is known. API key
// callers act anonymously.
func actorID(c *gin.Context) *uuid.UUID {
	if v, exists := c.Get("actor_id"); exists {
		id := v.(uuid.UUID)
		return &id
	}
	return nil
}

// parseID parses a uuid path parameter.
func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
