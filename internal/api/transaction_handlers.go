package api

import (
	"net/http"

	"github.com/aethra/hera/internal/engine"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

// CreateTransaction records a transaction header with its lines.
// POST /api/v1/transactions
func (h *Handler) CreateTransaction(c *gin.Context) {
	var req engine.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	req.OrganizationID = organizationID(c)

	if err := checkSmartCode(req.SmartCode); err != nil {
		h.respondError(c, err)
		return
	}

	txn, err := h.transactions.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// GetTransaction returns one transaction with its lines.
// GET /api/v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	txn, err := h.transactions.Get(c.Request.Context(), organizationID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// QueryTransactions runs a structured transaction query.
// POST /api/v1/transactions/query
func (h *Handler) QueryTransactions(c *gin.Context) {
	var filter engine.TransactionFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}
	txns, err := h.transactions.Query(c.Request.Context(), organizationID(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txns, "count": len(txns)})
}

type updateTransactionRequest struct {
	ExpectedVersion int `json:"expected_version"`
	engine.TransactionPatch
}

// UpdateTransaction patches a transaction header under optimistic
// concurrency. Lines are immutable.
// PUT /api/v1/transactions/:id
func (h *Handler) UpdateTransaction(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid request body"})
		return
	}

	txn, err := h.transactions.Update(c.Request.Context(), organizationID(c), id, req.ExpectedVersion, req.TransactionPatch, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}
