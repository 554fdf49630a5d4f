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

// RelationshipEngine manages typed edges between entities of the same
// organization.
type RelationshipEngine struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewRelationshipEngine creates a new relationship engine
func NewRelationshipEngine(db *gorm.DB, log *logger.Logger) *RelationshipEngine {
	return &RelationshipEngine{db: db, log: log.With("engine", "relationship")}
}

// CreateRelationshipRequest is a creation request for an entity relationship.
type CreateRelationshipRequest struct {
	OrganizationID   uuid.UUID              `json:"organization_id"`
	SourceEntityID   uuid.UUID              `json:"source_entity_id"`
	TargetEntityID   uuid.UUID              `json:"target_entity_id"`
	RelationshipType string                 `json:"relationship_type"`
	SmartCode        string                 `json:"smart_code"`
	RelationshipData map[string]interface{} `json:"relationship_data"`
}

// RelationshipPatch carries the mutable members of a relationship update.
type RelationshipPatch struct {
	RelationshipType *string                `json:"relationship_type"`
	SmartCode        *string                `json:"smart_code"`
	RelationshipData map[string]interface{} `json:"relationship_data"`
	IsActive         *bool                  `json:"is_active"`
}

func (p RelationshipPatch) updates() (map[string]interface{}, error) {
	updates := make(map[string]interface{})
	if p.RelationshipType != nil {
		if *p.RelationshipType == "" {
			return nil, apperr.NewBadRequestError("relationship_type cannot be cleared")
		}
		updates["relationship_type"] = *p.RelationshipType
	}
	if p.SmartCode != nil {
		if *p.SmartCode == "" {
			return nil, apperr.NewBadRequestError("smart_code cannot be cleared")
		}
		updates["smart_code"] = *p.SmartCode
	}
	if p.RelationshipData != nil {
		updates["relationship_data"] = datatypes.JSONMap(p.RelationshipData)
	}
	if p.IsActive != nil {
		updates["is_active"] = *p.IsActive
	}
	if len(updates) == 0 {
		return nil, apperr.NewBadRequestError("no fields to update")
	}
	return updates, nil
}

// Create links two existing entities of the same organization. Self edges
// are rejected.
func (e *RelationshipEngine) Create(ctx context.Context, req CreateRelationshipRequest, actor *uuid.UUID) (*models.Relationship, error) {
	var missing []string
	if req.OrganizationID == uuid.Nil {
		missing = append(missing, "organization_id")
	}
	if req.SourceEntityID == uuid.Nil {
		missing = append(missing, "source_entity_id")
	}
	if req.TargetEntityID == uuid.Nil {
		missing = append(missing, "target_entity_id")
	}
	if req.RelationshipType == "" {
		missing = append(missing, "relationship_type")
	}
	if req.SmartCode == "" {
		missing = append(missing, "smart_code")
	}
	if len(missing) > 0 {
		return nil, apperr.NewMissingFieldsError(missing...)
	}
	if req.SourceEntityID == req.TargetEntityID {
		return nil, apperr.NewBadRequestError("source and target entity must differ")
	}

	db := e.db.WithContext(ctx)

	var count int64
	err := db.Model(&models.Entity{}).
		Where("organization_id = ? AND id IN ?", req.OrganizationID, []uuid.UUID{req.SourceEntityID, req.TargetEntityID}).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve endpoints: %w", err)
	}
	if count != 2 {
		return nil, apperr.NewNotFoundError("relationship endpoint entity")
	}

	now := time.Now().UTC()
	rel := &models.Relationship{
		ID:               uuid.New(),
		OrganizationID:   req.OrganizationID,
		SourceEntityID:   req.SourceEntityID,
		TargetEntityID:   req.TargetEntityID,
		RelationshipType: req.RelationshipType,
		SmartCode:        req.SmartCode,
		RelationshipData: datatypes.JSONMap(req.RelationshipData),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        actor,
		UpdatedBy:        actor,
		Version:          1,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rel).Error; err != nil {
			return fmt.Errorf("failed to create relationship: %w", err)
		}
		if err := writeAudit(tx, rel.OrganizationID, actor, rel.TableName(), rel.ID, "create", nil, recordSnapshot(rel), now); err != nil {
			e.log.Warn("audit write failed", "record_id", rel.ID, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("relationship created",
		"relationship_id", rel.ID,
		"relationship_type", rel.RelationshipType)
	return rel, nil
}

// Get returns a single relationship by id within the caller's organization.
func (e *RelationshipEngine) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Relationship, error) {
	var rel models.Relationship
	err := e.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&rel).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFoundError("relationship")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	return &rel, nil
}

// Query returns the organization's relationships matching the filter.
func (e *RelationshipEngine) Query(ctx context.Context, orgID uuid.UUID, filter RelationshipFilter) ([]models.Relationship, error) {
	tx, err := translateRelationshipFilter(e.db.WithContext(ctx), orgID, filter)
	if err != nil {
		return nil, err
	}
	var rels []models.Relationship
	if err := tx.Find(&rels).Error; err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	return rels, nil
}

// Update applies a patch under the optimistic-concurrency rule.
func (e *RelationshipEngine) Update(ctx context.Context, orgID, id uuid.UUID, expectedVersion int, patch RelationshipPatch, actor *uuid.UUID) (*models.Relationship, error) {
	updates, err := patch.updates()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	var updated models.Relationship
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before models.Relationship
		if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&before).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NewNotFoundError("relationship")
			}
			return fmt.Errorf("failed to read relationship: %w", err)
		}

		if err := applyVersionedUpdate(tx, &models.Relationship{}, "relationship", orgID, id, expectedVersion, updates, actor, now); err != nil {
			return err
		}

		if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&updated).Error; err != nil {
			return fmt.Errorf("failed to reload relationship: %w", err)
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
