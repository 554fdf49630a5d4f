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

// EntityEngine implements the entity operations of the universal API:
// create, query, optimistic update, and the sequential bulk create.
type EntityEngine struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewEntityEngine creates a new entity engine
func NewEntityEngine(db *gorm.DB, log *logger.Logger) *EntityEngine {
	return &EntityEngine{db: db, log: log.With("engine", "entity")}
}

// EntityPatch carries the mutable members of an entity update. Nil members
// leave the stored value untouched; document members replace wholesale.
type EntityPatch struct {
	EntityName        *string                `json:"entity_name"`
	EntityCode        *string                `json:"entity_code"`
	EntityDescription *string                `json:"entity_description"`
	Status            *string                `json:"status"`
	SmartCode         *string                `json:"smart_code"`
	SmartCodeStatus   *string                `json:"smart_code_status"`
	ParentEntityID    *uuid.UUID             `json:"parent_entity_id"`
	ClearParent       bool                   `json:"clear_parent"`
	Metadata          map[string]interface{} `json:"metadata"`
	BusinessRules     map[string]interface{} `json:"business_rules"`
	Tags              []string               `json:"tags"`
	AIConfidence      *float64               `json:"ai_confidence"`
	AIInsights        map[string]interface{} `json:"ai_insights"`
	AIClassification  *string                `json:"ai_classification"`
}

func (p EntityPatch) updates() (map[string]interface{}, error) {
	updates := make(map[string]interface{})
	if p.EntityName != nil {
		if *p.EntityName == "" {
			return nil, apperr.NewBadRequestError("entity_name cannot be cleared")
		}
		updates["entity_name"] = *p.EntityName
	}
	if p.EntityCode != nil {
		updates["entity_code"] = *p.EntityCode
	}
	if p.EntityDescription != nil {
		updates["entity_description"] = *p.EntityDescription
	}
	if p.Status != nil {
		switch *p.Status {
		case models.StatusActive, models.StatusInactive, models.StatusArchived, models.StatusDeleted:
			updates["status"] = *p.Status
		default:
			return nil, apperr.NewBadRequestError(fmt.Sprintf("unknown status %q", *p.Status))
		}
	}
	if p.SmartCode != nil {
		if *p.SmartCode == "" {
			return nil, apperr.NewBadRequestError("smart_code cannot be cleared")
		}
		updates["smart_code"] = *p.SmartCode
	}
	if p.SmartCodeStatus != nil {
		switch *p.SmartCodeStatus {
		case models.SmartCodeStatusDraft, models.SmartCodeStatusActive, models.SmartCodeStatusProduction:
			updates["smart_code_status"] = *p.SmartCodeStatus
		default:
			return nil, apperr.NewBadRequestError(fmt.Sprintf("unknown smart_code_status %q", *p.SmartCodeStatus))
		}
	}
	if p.ClearParent {
		updates["parent_entity_id"] = nil
	} else if p.ParentEntityID != nil {
		updates["parent_entity_id"] = *p.ParentEntityID
	}
	if p.Metadata != nil {
		updates["metadata"] = datatypes.JSONMap(p.Metadata)
	}
	if p.BusinessRules != nil {
		updates["business_rules"] = datatypes.JSONMap(p.BusinessRules)
	}
	if p.Tags != nil {
		updates["tags"] = datatypes.JSONSlice[string](p.Tags)
	}
	if p.AIConfidence != nil {
		updates["ai_confidence"] = *p.AIConfidence
	}
	if p.AIInsights != nil {
		updates["ai_insights"] = datatypes.JSONMap(p.AIInsights)
	}
	if p.AIClassification != nil {
		updates["ai_classification"] = *p.AIClassification
	}
	if len(updates) == 0 {
		return nil, apperr.NewBadRequestError("no fields to update")
	}
	return updates, nil
}

// BulkResult is the per-request outcome of a bulk create. Bulk creation is
// a sequence of individual creates with no cross-record atomicity: some
// requests may succeed while others fail.
type BulkResult struct {
	Index  int            `json:"index"`
	Entity *models.Entity `json:"entity,omitempty"`
	Error  string         `json:"error,omitempty"`
	Code   string         `json:"code,omitempty"`
}

// Create validates, builds and persists a new entity record.
func (e *EntityEngine) Create(ctx context.Context, req CreateEntityRequest, actor *uuid.UUID) (*models.Entity, error) {
	now := time.Now().UTC()
	entity, err := BuildEntity(req, actor, now)
	if err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)

	var org models.Organization
	if err := db.Where("id = ?", req.OrganizationID).First(&org).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NewNotFoundError("organization")
		}
		return nil, fmt.Errorf("failed to resolve organization: %w", err)
	}

	// Parent is a weak reference: it must exist in the same organization,
	// but no cycle check is performed.
	if entity.ParentEntityID != nil {
		var count int64
		if err := db.Model(&models.Entity{}).
			Where("id = ? AND organization_id = ?", *entity.ParentEntityID, req.OrganizationID).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to resolve parent entity: %w", err)
		}
		if count == 0 {
			return nil, apperr.NewNotFoundError("parent entity")
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entity).Error; err != nil {
			return fmt.Errorf("failed to create entity: %w", err)
		}
		if err := writeAudit(tx, entity.OrganizationID, actor, entity.TableName(), entity.ID, "create", nil, recordSnapshot(entity), now); err != nil {
			e.log.Warn("audit write failed", "record_id", entity.ID, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("entity created", "entity_id", entity.ID, "entity_type", entity.EntityType)
	return entity, nil
}

// Get returns a single entity by id within the caller's organization.
func (e *EntityEngine) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Entity, error) {
	var entity models.Entity
	err := e.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&entity).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFoundError("entity")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &entity, nil
}

// Query returns every entity of the organization matching the filter.
func (e *EntityEngine) Query(ctx context.Context, orgID uuid.UUID, filter EntityFilter) ([]models.Entity, error) {
	tx, err := translateEntityFilter(e.db.WithContext(ctx), orgID, filter)
	if err != nil {
		return nil, err
	}
	var entities []models.Entity
	if err := tx.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	return entities, nil
}

// Update applies a patch under the optimistic-concurrency rule: the caller
// supplies the version it believes is current, and a mismatch fails with
// VersionConflict without mutating state.
func (e *EntityEngine) Update(ctx context.Context, orgID, id uuid.UUID, expectedVersion int, patch EntityPatch, actor *uuid.UUID) (*models.Entity, error) {
	updates, err := patch.updates()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	var updated models.Entity
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before models.Entity
		if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&before).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NewNotFoundError("entity")
			}
			return fmt.Errorf("failed to read entity: %w", err)
		}

		if err := applyVersionedUpdate(tx, &models.Entity{}, "entity", orgID, id, expectedVersion, updates, actor, now); err != nil {
			return err
		}

		if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&updated).Error; err != nil {
			return fmt.Errorf("failed to reload entity: %w", err)
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

// BulkCreate runs the requests as a sequence of individual creates. The
// organization scope is forced onto every request; per-request failures are
// reported in place and do not stop the remainder.
func (e *EntityEngine) BulkCreate(ctx context.Context, orgID uuid.UUID, reqs []CreateEntityRequest, actor *uuid.UUID) []BulkResult {
	results := make([]BulkResult, len(reqs))
	for i, req := range reqs {
		req.OrganizationID = orgID
		entity, err := e.Create(ctx, req, actor)
		results[i] = BulkResult{Index: i, Entity: entity}
		if err != nil {
			results[i].Entity = nil
			results[i].Error = err.Error()
			if ce, ok := err.(apperr.CoreError); ok {
				results[i].Code = ce.Code()
			}
		}
	}
	return results
}
