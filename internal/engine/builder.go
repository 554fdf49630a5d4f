package engine

import (
	"time"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CreateEntityRequest is a creation request for a core entity. Only the
// four required members must be set; everything else is optional.
type CreateEntityRequest struct {
	OrganizationID    uuid.UUID              `json:"organization_id"`
	EntityType        string                 `json:"entity_type"`
	EntityName        string                 `json:"entity_name"`
	EntityCode        string                 `json:"entity_code"`
	EntityDescription string                 `json:"entity_description"`
	SmartCode         string                 `json:"smart_code"`
	SmartCodeStatus   string                 `json:"smart_code_status"`
	Status            string                 `json:"status"`
	ParentEntityID    *uuid.UUID             `json:"parent_entity_id"`
	Metadata          map[string]interface{} `json:"metadata"`
	BusinessRules     map[string]interface{} `json:"business_rules"`
	Tags              []string               `json:"tags"`
	AIConfidence      *float64               `json:"ai_confidence"`
	AIInsights        map[string]interface{} `json:"ai_insights"`
	AIClassification  string                 `json:"ai_classification"`
}

// CreateFieldRequest is a creation request for a dynamic field attached to
// an existing entity.
type CreateFieldRequest struct {
	OrganizationID  uuid.UUID              `json:"organization_id"`
	EntityID        uuid.UUID              `json:"entity_id"`
	FieldName       string                 `json:"field_name"`
	SmartCode       string                 `json:"smart_code"`
	FieldType       string                 `json:"field_type"`
	Value           interface{}            `json:"value"`
	FieldOrder      int                    `json:"field_order"`
	IsRequired      bool                   `json:"is_required"`
	IsSearchable    bool                   `json:"is_searchable"`
	IsSystemField   bool                   `json:"is_system_field"`
	ValidationRules map[string]interface{} `json:"validation_rules"`
	AIConfidence    *float64               `json:"ai_confidence"`
	AIInsights      map[string]interface{} `json:"ai_insights"`
}

// BuildEntity assembles a complete, storable entity record from a creation
// request: generated id, version 1, timestamps, and lifecycle defaults.
// Every missing required field is reported together in one error.
func BuildEntity(req CreateEntityRequest, actor *uuid.UUID, now time.Time) (*models.Entity, error) {
	var missing []string
	if req.OrganizationID == uuid.Nil {
		missing = append(missing, "organization_id")
	}
	if req.EntityType == "" {
		missing = append(missing, "entity_type")
	}
	if req.EntityName == "" {
		missing = append(missing, "entity_name")
	}
	if req.SmartCode == "" {
		missing = append(missing, "smart_code")
	}
	if len(missing) > 0 {
		return nil, apperr.NewMissingFieldsError(missing...)
	}

	entity := &models.Entity{
		ID:                uuid.New(),
		OrganizationID:    req.OrganizationID,
		EntityType:        req.EntityType,
		EntityName:        req.EntityName,
		EntityCode:        req.EntityCode,
		EntityDescription: req.EntityDescription,
		ParentEntityID:    req.ParentEntityID,
		Status:            defaultString(req.Status, models.StatusActive),
		SmartCode:         req.SmartCode,
		SmartCodeStatus:   defaultString(req.SmartCodeStatus, models.SmartCodeStatusDraft),
		Metadata:          datatypes.JSONMap(req.Metadata),
		BusinessRules:     datatypes.JSONMap(req.BusinessRules),
		Tags:              datatypes.JSONSlice[string](req.Tags),
		AIConfidence:      req.AIConfidence,
		AIInsights:        datatypes.JSONMap(req.AIInsights),
		AIClassification:  req.AIClassification,
		CreatedAt:         now,
		UpdatedAt:         now,
		CreatedBy:         actor,
		UpdatedBy:         actor,
		Version:           1,
	}
	return entity, nil
}

// BuildField assembles a complete dynamic field record. The supplied value
// is pushed through the value codec so exactly one typed column is set.
func BuildField(req CreateFieldRequest, actor *uuid.UUID, now time.Time) (*models.DynamicField, error) {
	var missing []string
	if req.OrganizationID == uuid.Nil {
		missing = append(missing, "organization_id")
	}
	if req.EntityID == uuid.Nil {
		missing = append(missing, "entity_id")
	}
	if req.FieldName == "" {
		missing = append(missing, "field_name")
	}
	if req.SmartCode == "" {
		missing = append(missing, "smart_code")
	}
	if req.FieldType == "" {
		missing = append(missing, "field_type")
	}
	if len(missing) > 0 {
		return nil, apperr.NewMissingFieldsError(missing...)
	}

	encoded, err := EncodeValue(req.FieldType, req.Value)
	if err != nil {
		return nil, err
	}

	field := &models.DynamicField{
		ID:               uuid.New(),
		OrganizationID:   req.OrganizationID,
		EntityID:         req.EntityID,
		FieldName:        req.FieldName,
		SmartCode:        req.SmartCode,
		FieldType:        req.FieldType,
		FieldOrder:       req.FieldOrder,
		IsRequired:       req.IsRequired,
		IsSearchable:     req.IsSearchable,
		IsSystemField:    req.IsSystemField,
		ValidationRules:  datatypes.JSONMap(req.ValidationRules),
		ValidationStatus: models.ValidationStatusPending,
		AIConfidence:     req.AIConfidence,
		AIInsights:       datatypes.JSONMap(req.AIInsights),
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        actor,
		UpdatedBy:        actor,
		Version:          1,
	}
	encoded.Apply(field)
	return field, nil
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
