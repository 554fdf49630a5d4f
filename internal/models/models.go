// Package models contains the universal data structures
// Every business object, attribute, relationship and transaction is mapped
// onto this fixed six-table schema, scoped to one organization.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Record statuses shared by all universal tables.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// Smart code lifecycle stages.
const (
	SmartCodeStatusDraft      = "draft"
	SmartCodeStatusActive     = "active"
	SmartCodeStatusProduction = "production"
)

// =============================================================================
// ORGANIZATION
// =============================================================================

// Organization is the tenant boundary. Every other record carries its id.
type Organization struct {
	ID               uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationCode string            `json:"organization_code" gorm:"uniqueIndex;not null;size:50"`
	OrganizationName string            `json:"organization_name" gorm:"not null;size:255"`
	OrganizationType string            `json:"organization_type" gorm:"size:50"`
	Status           string            `json:"status" gorm:"size:30;default:'active'"`
	Settings         datatypes.JSONMap `json:"settings"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CreatedBy        *uuid.UUID        `json:"created_by" gorm:"type:uuid"`
	UpdatedBy        *uuid.UUID        `json:"updated_by" gorm:"type:uuid"`
	Version          int               `json:"version" gorm:"not null;default:1"`
}

// TableName returns the table name for Organization
func (Organization) TableName() string {
	return "core_organizations"
}

// =============================================================================
// ENTITY
// =============================================================================

// Entity represents one business object (customer, product, supplier, ...)
// scoped to one organization. Attributes beyond this column set live in
// DynamicField records attached to the entity.
type Entity struct {
	ID                uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID    uuid.UUID                   `json:"organization_id" gorm:"type:uuid;not null;index"`
	EntityType        string                      `json:"entity_type" gorm:"not null;size:100;index"`
	EntityName        string                      `json:"entity_name" gorm:"not null;size:255"`
	EntityCode        string                      `json:"entity_code" gorm:"size:100;index"`
	EntityDescription string                      `json:"entity_description"`
	ParentEntityID    *uuid.UUID                  `json:"parent_entity_id" gorm:"type:uuid;index"`
	Status            string                      `json:"status" gorm:"size:30;default:'active';index"`
	SmartCode         string                      `json:"smart_code" gorm:"not null;size:100;index"`
	SmartCodeStatus   string                      `json:"smart_code_status" gorm:"size:20;default:'draft'"`
	Metadata          datatypes.JSONMap           `json:"metadata"`
	BusinessRules     datatypes.JSONMap           `json:"business_rules"`
	Tags              datatypes.JSONSlice[string] `json:"tags"`
	AIConfidence      *float64                    `json:"ai_confidence"`
	AIInsights        datatypes.JSONMap           `json:"ai_insights"`
	AIClassification  string                      `json:"ai_classification" gorm:"size:100"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
	CreatedBy         *uuid.UUID                  `json:"created_by" gorm:"type:uuid"`
	UpdatedBy         *uuid.UUID                  `json:"updated_by" gorm:"type:uuid"`
	Version           int                         `json:"version" gorm:"not null;default:1"`

	// Relations
	Fields []DynamicField `json:"fields,omitempty" gorm:"foreignKey:EntityID"`
}

// TableName returns the table name for Entity
func (Entity) TableName() string {
	return "core_entities"
}

// =============================================================================
// DYNAMIC FIELD
// =============================================================================

// Field types accepted by the value codec.
const (
	FieldTypeText    = "text"
	FieldTypeNumber  = "number"
	FieldTypeBoolean = "boolean"
	FieldTypeDate    = "date"
	FieldTypeJSON    = "json"
	FieldTypeFileURL = "file_url"
)

// Value columns of core_dynamic_data. Exactly one is non-null on any
// persisted row, and it is the one matching FieldType.
const (
	ColumnValueText    = "field_value_text"
	ColumnValueNumber  = "field_value_number"
	ColumnValueBoolean = "field_value_boolean"
	ColumnValueDate    = "field_value_date"
	ColumnValueJSON    = "field_value_json"
	ColumnValueFileURL = "field_value_file_url"
)

// Validation statuses for dynamic field values.
const (
	ValidationStatusValid   = "valid"
	ValidationStatusInvalid = "invalid"
	ValidationStatusPending = "pending"
)

// DynamicField represents one named, typed attribute attached to an entity.
// The value is stored polymorphically: the declared FieldType selects which
// of the six typed columns holds the value.
type DynamicField struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID uuid.UUID `json:"organization_id" gorm:"type:uuid;not null;index"`
	EntityID       uuid.UUID `json:"entity_id" gorm:"type:uuid;not null;uniqueIndex:ux_dynamic_entity_field,priority:1"`
	FieldName      string    `json:"field_name" gorm:"not null;size:100;uniqueIndex:ux_dynamic_entity_field,priority:2"`
	SmartCode      string    `json:"smart_code" gorm:"not null;size:100"`
	FieldType      string    `json:"field_type" gorm:"not null;size:20"`

	FieldValueText    *string        `json:"field_value_text"`
	FieldValueNumber  *float64       `json:"field_value_number"`
	FieldValueBoolean *bool          `json:"field_value_boolean"`
	FieldValueDate    *time.Time     `json:"field_value_date"`
	FieldValueJSON    datatypes.JSON `json:"field_value_json"`
	FieldValueFileURL *string        `json:"field_value_file_url" gorm:"size:500"`

	FieldOrder    int  `json:"field_order" gorm:"default:0"`
	IsRequired    bool `json:"is_required" gorm:"default:false"`
	IsSearchable  bool `json:"is_searchable" gorm:"default:false"`
	IsSystemField bool `json:"is_system_field" gorm:"default:false"`

	ValidationRules  datatypes.JSONMap           `json:"validation_rules"`
	ValidationStatus string                      `json:"validation_status" gorm:"size:20;default:'pending'"`
	ValidationErrors datatypes.JSONSlice[string] `json:"validation_errors,omitempty"`

	AIConfidence *float64          `json:"ai_confidence"`
	AIInsights   datatypes.JSONMap `json:"ai_insights"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedBy *uuid.UUID `json:"created_by" gorm:"type:uuid"`
	UpdatedBy *uuid.UUID `json:"updated_by" gorm:"type:uuid"`
	Version   int        `json:"version" gorm:"not null;default:1"`

	// Relations
	Entity *Entity `json:"entity,omitempty" gorm:"foreignKey:EntityID"`
}

// TableName returns the table name for DynamicField
func (DynamicField) TableName() string {
	return "core_dynamic_data"
}

// PopulatedValueColumns reports which of the six value columns are non-null.
// A well-formed row reports exactly one.
func (f *DynamicField) PopulatedValueColumns() []string {
	var cols []string
	if f.FieldValueText != nil {
		cols = append(cols, ColumnValueText)
	}
	if f.FieldValueNumber != nil {
		cols = append(cols, ColumnValueNumber)
	}
	if f.FieldValueBoolean != nil {
		cols = append(cols, ColumnValueBoolean)
	}
	if f.FieldValueDate != nil {
		cols = append(cols, ColumnValueDate)
	}
	if f.FieldValueJSON != nil {
		cols = append(cols, ColumnValueJSON)
	}
	if f.FieldValueFileURL != nil {
		cols = append(cols, ColumnValueFileURL)
	}
	return cols
}

// ClearValues nulls out all six value columns.
func (f *DynamicField) ClearValues() {
	f.FieldValueText = nil
	f.FieldValueNumber = nil
	f.FieldValueBoolean = nil
	f.FieldValueDate = nil
	f.FieldValueJSON = nil
	f.FieldValueFileURL = nil
}

// =============================================================================
// RELATIONSHIP
// =============================================================================

// Relationship is a typed, organization-scoped edge between two entities.
type Relationship struct {
	ID               uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID   uuid.UUID         `json:"organization_id" gorm:"type:uuid;not null;index"`
	SourceEntityID   uuid.UUID         `json:"source_entity_id" gorm:"type:uuid;not null;index"`
	TargetEntityID   uuid.UUID         `json:"target_entity_id" gorm:"type:uuid;not null;index"`
	RelationshipType string            `json:"relationship_type" gorm:"not null;size:100;index"`
	SmartCode        string            `json:"smart_code" gorm:"not null;size:100"`
	RelationshipData datatypes.JSONMap `json:"relationship_data"`
	IsActive         bool              `json:"is_active" gorm:"default:true"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CreatedBy        *uuid.UUID        `json:"created_by" gorm:"type:uuid"`
	UpdatedBy        *uuid.UUID        `json:"updated_by" gorm:"type:uuid"`
	Version          int               `json:"version" gorm:"not null;default:1"`

	// Relations
	SourceEntity *Entity `json:"source_entity,omitempty" gorm:"foreignKey:SourceEntityID"`
	TargetEntity *Entity `json:"target_entity,omitempty" gorm:"foreignKey:TargetEntityID"`
}

// TableName returns the table name for Relationship
func (Relationship) TableName() string {
	return "core_relationships"
}

// =============================================================================
// TRANSACTION
// =============================================================================

// Transaction is an organization-scoped business transaction header
// (sale, purchase, payment, adjustment, ...). Line detail lives in
// TransactionLine rows owned by the header.
type Transaction struct {
	ID              uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID  uuid.UUID         `json:"organization_id" gorm:"type:uuid;not null;index"`
	TransactionType string            `json:"transaction_type" gorm:"not null;size:100;index"`
	TransactionCode string            `json:"transaction_code" gorm:"size:100;index"`
	TransactionDate time.Time         `json:"transaction_date" gorm:"not null;index"`
	SmartCode       string            `json:"smart_code" gorm:"not null;size:100"`
	SourceEntityID  *uuid.UUID        `json:"source_entity_id" gorm:"type:uuid;index"`
	TargetEntityID  *uuid.UUID        `json:"target_entity_id" gorm:"type:uuid;index"`
	TotalAmount     float64           `json:"total_amount"`
	Currency        string            `json:"currency" gorm:"size:10"`
	Status          string            `json:"status" gorm:"size:30;default:'active'"`
	Metadata        datatypes.JSONMap `json:"metadata"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	CreatedBy       *uuid.UUID        `json:"created_by" gorm:"type:uuid"`
	UpdatedBy       *uuid.UUID        `json:"updated_by" gorm:"type:uuid"`
	Version         int               `json:"version" gorm:"not null;default:1"`

	// Relations
	Lines []TransactionLine `json:"lines,omitempty" gorm:"foreignKey:TransactionID"`
}

// TableName returns the table name for Transaction
func (Transaction) TableName() string {
	return "universal_transactions"
}

// TransactionLine is one line of a transaction. Lines live and die with
// their header.
type TransactionLine struct {
	ID            uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID         `json:"transaction_id" gorm:"type:uuid;not null;index"`
	LineNumber    int               `json:"line_number" gorm:"not null"`
	LineEntityID  *uuid.UUID        `json:"line_entity_id" gorm:"type:uuid;index"`
	Quantity      float64           `json:"quantity"`
	UnitPrice     float64           `json:"unit_price"`
	LineAmount    float64           `json:"line_amount"`
	SmartCode     string            `json:"smart_code" gorm:"size:100"`
	Metadata      datatypes.JSONMap `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// TableName returns the table name for TransactionLine
func (TransactionLine) TableName() string {
	return "universal_transaction_lines"
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditLog records one mutation against any universal table.
type AuditLog struct {
	ID             uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID uuid.UUID                   `json:"organization_id" gorm:"type:uuid;not null;index"`
	ActorID        *uuid.UUID                  `json:"actor_id" gorm:"type:uuid"`
	Table          string                      `json:"table_name" gorm:"column:table_name;size:100;index"`
	RecordID       uuid.UUID                   `json:"record_id" gorm:"type:uuid;index"`
	Action         string                      `json:"action" gorm:"not null;size:30"`
	OldValues      datatypes.JSONMap           `json:"old_values"`
	NewValues      datatypes.JSONMap           `json:"new_values"`
	ChangedFields  datatypes.JSONSlice[string] `json:"changed_fields"`
	CreatedAt      time.Time                   `json:"created_at" gorm:"index"`
}

// TableName returns the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
