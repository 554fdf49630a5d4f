package engine

import (
	"context"
	"fmt"
	"time"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/logger"
	"github.com/aethra/hera/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TransactionEngine manages universal transaction headers and their lines.
// Header and lines are written atomically; lines live and die with the
// header and carry no version of their own.
type TransactionEngine struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewTransactionEngine creates a new transaction engine
func NewTransactionEngine(db *gorm.DB, log *logger.Logger) *TransactionEngine {
	return &TransactionEngine{db: db, log: log.With("engine", "transaction")}
}

// CreateTransactionLineRequest is one line of a transaction creation request.
type CreateTransactionLineRequest struct {
	LineEntityID *uuid.UUID             `json:"line_entity_id"`
	Quantity     float64                `json:"quantity"`
	UnitPrice    float64                `json:"unit_price"`
	LineAmount   *float64               `json:"line_amount"`
	SmartCode    string                 `json:"smart_code"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// CreateTransactionRequest is a creation request for a transaction header
// plus its lines.
type CreateTransactionRequest struct {
	OrganizationID  uuid.UUID                      `json:"organization_id"`
	TransactionType string                         `json:"transaction_type"`
	TransactionCode string                         `json:"transaction_code"`
	TransactionDate *time.Time                     `json:"transaction_date"`
	SmartCode       string                         `json:"smart_code"`
	SourceEntityID  *uuid.UUID                     `json:"source_entity_id"`
	TargetEntityID  *uuid.UUID                     `json:"target_entity_id"`
	TotalAmount     *float64                       `json:"total_amount"`
	Currency        string                         `json:"currency"`
	Status          string                         `json:"status"`
	Metadata        map[string]interface{}         `json:"metadata"`
	Lines           []CreateTransactionLineRequest `json:"lines"`
}

// TransactionPatch carries the mutable members of a header update. Lines
// are immutable after creation.
type TransactionPatch struct {
	TransactionCode *string                `json:"transaction_code"`
	Status          *string                `json:"status"`
	TotalAmount     *float64               `json:"total_amount"`
	Currency        *string                `json:"currency"`
	Metadata        map[string]interface{} `json:"metadata"`
}

func (p TransactionPatch) updates() (map[string]interface{}, error) {
	updates := make(map[string]interface{})
	if p.TransactionCode != nil {
		updates["transaction_code"] = *p.TransactionCode
	}
	if p.Status != nil {
		switch *p.Status {
		case models.StatusActive, models.StatusInactive, models.StatusArchived, models.StatusDeleted:
			updates["status"] = *p.Status
		default:
			return nil, apperr.NewBadRequestError(fmt.Sprintf("unknown status %q", *p.Status))
		}
	}
	if p.TotalAmount != nil {
		updates["total_amount"] = *p.TotalAmount
	}
	if p.Currency != nil {
		updates["currency"] = *p.Currency
	}
	if p.Metadata != nil {
		updates["metadata"] = datatypes.JSONMap(p.Metadata)
	}
	if len(updates) == 0 {
		return nil, apperr.NewBadRequestError("no fields to update")
	}
	return updates, nil
}

// Create persists a transaction header and its lines in one database
// transaction. Line amounts default to quantity times unit price, and the
// header total defaults to the sum of line amounts.
func (e *TransactionEngine) Create(ctx context.Context, req CreateTransactionRequest, actor *uuid.UUID) (*models.Transaction, error) {
	var missing []string
	if req.OrganizationID == uuid.Nil {
		missing = append(missing, "organization_id")
	}
	if req.TransactionType == "" {
		missing = append(missing, "transaction_type")
	}
	if req.SmartCode == "" {
		missing = append(missing, "smart_code")
	}
	if len(missing) > 0 {
		return nil, apperr.NewMissingFieldsError(missing...)
	}

	db := e.db.WithContext(ctx)
	now := time.Now().UTC()

	if err := e.resolveEndpoints(db, req.OrganizationID, req.SourceEntityID, req.TargetEntityID); err != nil {
		return nil, err
	}

	txnDate := now
	if req.TransactionDate != nil {
		txnDate = req.TransactionDate.UTC()
	}

	header := &models.Transaction{
		ID:              uuid.New(),
		OrganizationID:  req.OrganizationID,
		TransactionType: req.TransactionType,
		TransactionCode: req.TransactionCode,
		TransactionDate: txnDate,
		SmartCode:       req.SmartCode,
		SourceEntityID:  req.SourceEntityID,
		TargetEntityID:  req.TargetEntityID,
		Currency:        req.Currency,
		Status:          defaultString(req.Status, models.StatusActive),
		Metadata:        datatypes.JSONMap(req.Metadata),
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       actor,
		UpdatedBy:       actor,
		Version:         1,
	}

	var lineTotal float64
	lines := make([]models.TransactionLine, 0, len(req.Lines))
	for i, lr := range req.Lines {
		amount := lr.Quantity * lr.UnitPrice
		if lr.LineAmount != nil {
			amount = *lr.LineAmount
		}
		lineTotal += amount
		lines = append(lines, models.TransactionLine{
			ID:            uuid.New(),
			TransactionID: header.ID,
			LineNumber:    i + 1,
			LineEntityID:  lr.LineEntityID,
			Quantity:      lr.Quantity,
			UnitPrice:     lr.UnitPrice,
			LineAmount:    amount,
			SmartCode:     lr.SmartCode,
			Metadata:      datatypes.JSONMap(lr.Metadata),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	header.TotalAmount = lineTotal
	if req.TotalAmount != nil {
		header.TotalAmount = *req.TotalAmount
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(header).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		if len(lines) > 0 {
			if err := tx.Create(&lines).Error; err != nil {
				return fmt.Errorf("failed to create transaction lines: %w", err)
			}
		}
		if err := writeAudit(tx, header.OrganizationID, actor, header.TableName(), header.ID, "create", nil, recordSnapshot(header), now); err != nil {
			e.log.Warn("audit write failed", "record_id", header.ID, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	header.Lines = lines
	e.log.Debug("transaction created",
		"transaction_id", header.ID,
		"transaction_type", header.TransactionType,
		"lines", len(lines))
	return header, nil
}

// Get returns a transaction with its lines within the caller's organization.
func (e *TransactionEngine) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := e.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC")
		}).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&txn).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFoundError("transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &txn, nil
}

// Query returns the organization's transaction headers matching the filter,
// newest first. Lines are not loaded; use Get for line detail.
func (e *TransactionEngine) Query(ctx context.Context, orgID uuid.UUID, filter TransactionFilter) ([]models.Transaction, error) {
	tx, err := translateTransactionFilter(e.db.WithContext(ctx), orgID, filter)
	if err != nil {
		return nil, err
	}
	var txns []models.Transaction
	if err := tx.Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return txns, nil
}

// Update applies a header patch under the optimistic-concurrency rule.
func (e *TransactionEngine) Update(ctx context.Context, orgID, id uuid.UUID, expectedVersion int, patch TransactionPatch, actor *uuid.UUID) (*models.Transaction, error) {
	updates, err := patch.updates()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	var updated models.Transaction
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before models.Transaction
		if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&before).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NewNotFoundError("transaction")
			}
			return fmt.Errorf("failed to read transaction: %w", err)
		}

		if err := applyVersionedUpdate(tx, &models.Transaction{}, "transaction", orgID, id, expectedVersion, updates, actor, now); err != nil {
			return err
		}

		if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&updated).Error; err != nil {
			return fmt.Errorf("failed to reload transaction: %w", err)
		}
		if err := writeAudit(tx, orgID, actor, updated.TableName(), id, "update", recordSnapshot(&before), recordSnapshot(&updated), now); err != nil {
			e.log.Warn("audit write failed", "record_id", id, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// resolveEndpoints checks that any referenced source or target entity exists
// in the organization.
func (e *TransactionEngine) resolveEndpoints(db *gorm.DB, orgID uuid.UUID, ids ...*uuid.UUID) error {
	var refs []uuid.UUID
	for _, id := range ids {
		if id != nil {
			refs = append(refs, *id)
		}
	}
	if len(refs) == 0 {
		return nil
	}
	var count int64
	err := db.Model(&models.Entity{}).
		Where("organization_id = ? AND id IN ?", orgID, refs).
		Distinct("id").
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to resolve transaction endpoints: %w", err)
	}
	if int(count) != len(uniqueIDs(refs)) {
		return apperr.NewNotFoundError("transaction endpoint entity")
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
