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

// FieldEngine manages the dynamic attributes attached to entities. Values
// pass through the codec on every write so the one-column invariant holds,
// and through the validator so declared rules are evaluated.
type FieldEngine struct {
	db        *gorm.DB
	validator *Validator
	log       *logger.Logger
}

// NewFieldEngine creates a new dynamic field engine
func NewFieldEngine(db *gorm.DB, validator *Validator, log *logger.Logger) *FieldEngine {
	return &FieldEngine{db: db, validator: validator, log: log.With("engine", "field")}
}

// SetValueRequest carries a versioned mutation of an existing field. The
// field keeps its declared type; a non-nil Value is re-encoded into the
// typed column, while a nil Value keeps the stored value so order, flags
// and rules can change on their own. Every request re-evaluates the rules.
type SetValueRequest struct {
	Value           interface{}            `json:"value"`
	ValidationRules map[string]interface{} `json:"validation_rules"`
	RulesProvided   bool                   `json:"-"`
	FieldOrder      *int                   `json:"field_order"`
	IsRequired      *bool                  `json:"is_required"`
	IsSearchable    *bool                  `json:"is_searchable"`
	IsSystemField   *bool                  `json:"is_system_field"`
}

// Create attaches a new dynamic field to an existing entity. Field names
// are unique per entity; a duplicate name is a conflict.
func (e *FieldEngine) Create(ctx context.Context, req CreateFieldRequest, actor *uuid.UUID) (*models.DynamicField, error) {
	now := time.Now().UTC()
	field, err := BuildField(req, actor, now)
	if err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)

	var entity models.Entity
	if err := db.Where("id = ? AND organization_id = ?", req.EntityID, req.OrganizationID).
		First(&entity).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NewNotFoundError("entity")
		}
		return nil, fmt.Errorf("failed to resolve entity: %w", err)
	}

	var count int64
	if err := db.Model(&models.DynamicField{}).
		Where("entity_id = ? AND field_name = ?", req.EntityID, req.FieldName).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check field name: %w", err)
	}
	if count > 0 {
		return nil, apperr.NewConflictError(fmt.Sprintf("field %q already exists on entity", req.FieldName))
	}

	e.evaluate(ctx, field)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(field).Error; err != nil {
			return fmt.Errorf("failed to create field: %w", err)
		}
		if err := writeAudit(tx, field.OrganizationID, actor, field.TableName(), field.ID, "create", nil, recordSnapshot(field), now); err != nil {
			e.log.Warn("audit write failed", "record_id", field.ID, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("field created",
		"field_id", field.ID,
		"field_name", field.FieldName,
		"validation_status", field.ValidationStatus)
	return field, nil
}

// Get returns a single field by id within the caller's organization.
func (e *FieldEngine) Get(ctx context.Context, orgID, id uuid.UUID) (*models.DynamicField, error) {
	var field models.DynamicField
	err := e.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&field).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFoundError("field")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get field: %w", err)
	}
	return &field, nil
}

// Query returns the organization's fields matching the filter, ordered by
// field_order then creation time.
func (e *FieldEngine) Query(ctx context.Context, orgID uuid.UUID, filter FieldFilter) ([]models.DynamicField, error) {
	tx, err := translateFieldFilter(e.db.WithContext(ctx), orgID, filter)
	if err != nil {
		return nil, err
	}
	var fields []models.DynamicField
	if err := tx.Find(&fields).Error; err != nil {
		return nil, fmt.Errorf("failed to query fields: %w", err)
	}
	return fields, nil
}

// SetValue mutates a field under the optimistic-concurrency rule. A non-nil
// value is re-encoded for the field's declared type; the stored rules (or
// the replacement rules, when provided) are re-evaluated either way.
func (e *FieldEngine) SetValue(ctx context.Context, orgID, id uuid.UUID, expectedVersion int, req SetValueRequest, actor *uuid.UUID) (*models.DynamicField, error) {
	now := time.Now().UTC()

	var updated models.DynamicField
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before models.DynamicField
		if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&before).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NewNotFoundError("field")
			}
			return fmt.Errorf("failed to read field: %w", err)
		}

		updates := make(map[string]interface{})
		value := DecodeValue(&before)
		if req.Value != nil {
			encoded, err := EncodeValue(before.FieldType, req.Value)
			if err != nil {
				return err
			}
			scratch := before
			encoded.Apply(&scratch)
			value = DecodeValue(&scratch)

			updates[models.ColumnValueText] = encoded.Text
			updates[models.ColumnValueNumber] = encoded.Number
			updates[models.ColumnValueBoolean] = encoded.Boolean
			updates[models.ColumnValueDate] = encoded.Date
			updates[models.ColumnValueJSON] = nullableJSON(encoded.JSON)
			updates[models.ColumnValueFileURL] = encoded.FileURL
		}

		rules := map[string]interface{}(before.ValidationRules)
		if req.RulesProvided {
			rules = req.ValidationRules
		}
		result := e.validate(ctx, orgID, before.EntityID, before.FieldType, value, rules)
		updates["validation_status"] = result.Status
		updates["validation_errors"] = datatypes.JSONSlice[string](result.Messages)

		if req.RulesProvided {
			updates["validation_rules"] = datatypes.JSONMap(req.ValidationRules)
		}
		if req.FieldOrder != nil {
			updates["field_order"] = *req.FieldOrder
		}
		if req.IsRequired != nil {
			updates["is_required"] = *req.IsRequired
		}
		if req.IsSearchable != nil {
			updates["is_searchable"] = *req.IsSearchable
		}
		if req.IsSystemField != nil {
			updates["is_system_field"] = *req.IsSystemField
		}

		if err := applyVersionedUpdate(tx, &models.DynamicField{}, "field", orgID, id, expectedVersion, updates, actor, now); err != nil {
			return err
		}

		if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&updated).Error; err != nil {
			return fmt.Errorf("failed to reload field: %w", err)
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

// Revalidate re-runs the stored rules against the stored value and persists
// the refreshed status under the same optimistic-concurrency rule as any
// other field mutation. Used after registering custom predicates that were
// previously unknown and left fields pending.
func (e *FieldEngine) Revalidate(ctx context.Context, orgID, id uuid.UUID, expectedVersion int, actor *uuid.UUID) (*models.DynamicField, error) {
	now := time.Now().UTC()

	var updated models.DynamicField
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before models.DynamicField
		if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&before).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NewNotFoundError("field")
			}
			return fmt.Errorf("failed to read field: %w", err)
		}

		result := e.validate(ctx, orgID, before.EntityID, before.FieldType, DecodeValue(&before), map[string]interface{}(before.ValidationRules))
		updates := map[string]interface{}{
			"validation_status": result.Status,
			"validation_errors": datatypes.JSONSlice[string](result.Messages),
		}

		if err := applyVersionedUpdate(tx, &models.DynamicField{}, "field", orgID, id, expectedVersion, updates, actor, now); err != nil {
			return err
		}

		if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&updated).Error; err != nil {
			return fmt.Errorf("failed to reload field: %w", err)
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

// evaluate runs the declared rules for a freshly built field and stamps the
// outcome onto the record before it is persisted.
func (e *FieldEngine) evaluate(ctx context.Context, field *models.DynamicField) {
	result := e.validate(ctx, field.OrganizationID, field.EntityID, field.FieldType, DecodeValue(field), map[string]interface{}(field.ValidationRules))
	field.ValidationStatus = result.Status
	field.ValidationErrors = datatypes.JSONSlice[string](result.Messages)
}

// validate resolves the sibling-field context for required_if conditions and
// evaluates the rules. Rule evaluation never errors; an unresolvable context
// simply means conditional rules see no siblings.
func (e *FieldEngine) validate(ctx context.Context, orgID, entityID uuid.UUID, fieldType string, value interface{}, rules map[string]interface{}) ValidationResult {
	var context map[string]interface{}
	if _, ok := rules["required_if"]; ok {
		context = e.siblingValues(ctx, orgID, entityID)
	}
	return e.validator.Validate(value, rules, context)
}

func (e *FieldEngine) siblingValues(ctx context.Context, orgID, entityID uuid.UUID) map[string]interface{} {
	var siblings []models.DynamicField
	err := e.db.WithContext(ctx).
		Where("organization_id = ? AND entity_id = ?", orgID, entityID).
		Find(&siblings).Error
	if err != nil {
		e.log.Warn("failed to load sibling fields for validation", "entity_id", entityID, "error", err)
		return nil
	}
	values := make(map[string]interface{}, len(siblings))
	for i := range siblings {
		values[siblings[i].FieldName] = DecodeValue(&siblings[i])
	}
	return values
}

// nullableJSON maps an empty raw document to SQL NULL so unset json values
// do not count as a populated column.
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}
