package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/models"
	"github.com/aethra/hera/internal/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Range constrains a numeric column to [Min, Max]. Either bound may be nil.
type Range struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// TimeRange constrains a timestamp column to [From, To]. Either bound may be nil.
type TimeRange struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

// TagFilter matches records whose tag set contains every listed tag.
type TagFilter struct {
	Contains []string `json:"contains"`
}

// PathMatch matches a value at a key path inside a nested JSON document
// column (metadata, business_rules, ai_insights). Path segments are
// restricted to the identifier charset because they are interpolated into
// the query text.
type PathMatch struct {
	Path  []string    `json:"path"`
	Value interface{} `json:"value"`
}

// EntityFilter is the structured filter for entity queries. Absent members
// impose no constraint. Predicates combine with implicit AND; the
// organization scope is conjoined by the translator and cannot be bypassed.
type EntityFilter struct {
	EntityType       *string     `json:"entity_type"`
	EntityCode       *string     `json:"entity_code"`
	SmartCode        *string     `json:"smart_code"`
	Status           []string    `json:"status"`
	ParentEntityID   *uuid.UUID  `json:"parent_entity_id"`
	NameContains     *string     `json:"name_contains"`
	AIClassification *string     `json:"ai_classification"`
	AIConfidence     *Range      `json:"ai_confidence"`
	CreatedAt        *TimeRange  `json:"created_at"`
	Tags             *TagFilter  `json:"tags"`
	Metadata         []PathMatch `json:"metadata"`
	BusinessRules    []PathMatch `json:"business_rules"`
	AIInsights       []PathMatch `json:"ai_insights"`
	FullText         *string     `json:"full_text"`
}

// FieldFilter is the structured filter for dynamic field queries.
type FieldFilter struct {
	EntityID         *uuid.UUID `json:"entity_id"`
	FieldName        *string    `json:"field_name"`
	FieldType        *string    `json:"field_type"`
	IsRequired       *bool      `json:"is_required"`
	IsSearchable     *bool      `json:"is_searchable"`
	IsSystemField    *bool      `json:"is_system_field"`
	ValidationStatus []string   `json:"validation_status"`
	NumberValue      *Range     `json:"number_value"`
	TextContains     *string    `json:"text_contains"`
	FullText         *string    `json:"full_text"`
}

// RelationshipFilter is the structured filter for relationship queries.
type RelationshipFilter struct {
	SourceEntityID   *uuid.UUID `json:"source_entity_id"`
	TargetEntityID   *uuid.UUID `json:"target_entity_id"`
	RelationshipType *string    `json:"relationship_type"`
	IsActive         *bool      `json:"is_active"`
}

// TransactionFilter is the structured filter for transaction queries.
type TransactionFilter struct {
	TransactionType *string     `json:"transaction_type"`
	TransactionCode *string     `json:"transaction_code"`
	Status          []string    `json:"status"`
	SourceEntityID  *uuid.UUID  `json:"source_entity_id"`
	TargetEntityID  *uuid.UUID  `json:"target_entity_id"`
	TransactionDate *TimeRange  `json:"transaction_date"`
	TotalAmount     *Range      `json:"total_amount"`
	Metadata        []PathMatch `json:"metadata"`
	FullText        *string     `json:"full_text"`
}

// translateEntityFilter builds the tenant-scoped entity query. Every
// predicate is validated before it is applied; a malformed predicate aborts
// with InvalidFilter and no query is issued.
func translateEntityFilter(db *gorm.DB, orgID uuid.UUID, f EntityFilter) (*gorm.DB, error) {
	tx := db.Model(&models.Entity{}).Where("organization_id = ?", orgID)
	dialect := db.Dialector.Name()

	if f.EntityType != nil {
		tx = tx.Where("entity_type = ?", *f.EntityType)
	}
	if f.EntityCode != nil {
		tx = tx.Where("entity_code = ?", *f.EntityCode)
	}
	if f.SmartCode != nil {
		tx = tx.Where("smart_code = ?", *f.SmartCode)
	}
	if len(f.Status) > 0 {
		tx = tx.Where("status IN ?", f.Status)
	}
	if f.ParentEntityID != nil {
		tx = tx.Where("parent_entity_id = ?", *f.ParentEntityID)
	}
	if f.AIClassification != nil {
		tx = tx.Where("ai_classification = ?", *f.AIClassification)
	}

	var err error
	if tx, err = applyRange(tx, "ai_confidence", f.AIConfidence); err != nil {
		return nil, err
	}
	if tx, err = applyTimeRange(tx, "created_at", f.CreatedAt); err != nil {
		return nil, err
	}
	if f.NameContains != nil {
		tx = tx.Where(`LOWER(entity_name) LIKE ? ESCAPE '\'`, containsPattern(*f.NameContains))
	}
	if tx, err = applyTagFilter(tx, dialect, "tags", f.Tags); err != nil {
		return nil, err
	}
	if tx, err = applyPathMatches(tx, dialect, "metadata", f.Metadata); err != nil {
		return nil, err
	}
	if tx, err = applyPathMatches(tx, dialect, "business_rules", f.BusinessRules); err != nil {
		return nil, err
	}
	if tx, err = applyPathMatches(tx, dialect, "ai_insights", f.AIInsights); err != nil {
		return nil, err
	}
	if f.FullText != nil {
		pattern := containsPattern(*f.FullText)
		tx = tx.Where(
			`(LOWER(entity_name) LIKE ? ESCAPE '\' OR LOWER(entity_description) LIKE ? ESCAPE '\' OR LOWER(entity_code) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern,
		)
	}

	return tx.Order("created_at DESC"), nil
}

// translateFieldFilter builds the tenant-scoped dynamic field query.
func translateFieldFilter(db *gorm.DB, orgID uuid.UUID, f FieldFilter) (*gorm.DB, error) {
	tx := db.Model(&models.DynamicField{}).Where("organization_id = ?", orgID)

	if f.EntityID != nil {
		tx = tx.Where("entity_id = ?", *f.EntityID)
	}
	if f.FieldName != nil {
		tx = tx.Where("field_name = ?", *f.FieldName)
	}
	if f.FieldType != nil {
		if !KnownFieldType(*f.FieldType) {
			return nil, apperr.NewInvalidFilterError(fmt.Sprintf("unknown field type %q", *f.FieldType))
		}
		tx = tx.Where("field_type = ?", *f.FieldType)
	}
	if f.IsRequired != nil {
		tx = tx.Where("is_required = ?", *f.IsRequired)
	}
	if f.IsSearchable != nil {
		tx = tx.Where("is_searchable = ?", *f.IsSearchable)
	}
	if f.IsSystemField != nil {
		tx = tx.Where("is_system_field = ?", *f.IsSystemField)
	}
	if len(f.ValidationStatus) > 0 {
		tx = tx.Where("validation_status IN ?", f.ValidationStatus)
	}

	var err error
	if tx, err = applyRange(tx, "field_value_number", f.NumberValue); err != nil {
		return nil, err
	}
	if f.TextContains != nil {
		tx = tx.Where(`LOWER(field_value_text) LIKE ? ESCAPE '\'`, containsPattern(*f.TextContains))
	}
	if f.FullText != nil {
		pattern := containsPattern(*f.FullText)
		tx = tx.Where(
			`(LOWER(field_name) LIKE ? ESCAPE '\' OR LOWER(field_value_text) LIKE ? ESCAPE '\')`,
			pattern, pattern,
		)
	}

	return tx.Order("field_order ASC, created_at ASC"), nil
}

// translateRelationshipFilter builds the tenant-scoped relationship query.
func translateRelationshipFilter(db *gorm.DB, orgID uuid.UUID, f RelationshipFilter) (*gorm.DB, error) {
	tx := db.Model(&models.Relationship{}).Where("organization_id = ?", orgID)

	if f.SourceEntityID != nil {
		tx = tx.Where("source_entity_id = ?", *f.SourceEntityID)
	}
	if f.TargetEntityID != nil {
		tx = tx.Where("target_entity_id = ?", *f.TargetEntityID)
	}
	if f.RelationshipType != nil {
		tx = tx.Where("relationship_type = ?", *f.RelationshipType)
	}
	if f.IsActive != nil {
		tx = tx.Where("is_active = ?", *f.IsActive)
	}

	return tx.Order("created_at DESC"), nil
}

// translateTransactionFilter builds the tenant-scoped transaction query.
func translateTransactionFilter(db *gorm.DB, orgID uuid.UUID, f TransactionFilter) (*gorm.DB, error) {
	tx := db.Model(&models.Transaction{}).Where("organization_id = ?", orgID)
	dialect := db.Dialector.Name()

	if f.TransactionType != nil {
		tx = tx.Where("transaction_type = ?", *f.TransactionType)
	}
	if f.TransactionCode != nil {
		tx = tx.Where("transaction_code = ?", *f.TransactionCode)
	}
	if len(f.Status) > 0 {
		tx = tx.Where("status IN ?", f.Status)
	}
	if f.SourceEntityID != nil {
		tx = tx.Where("source_entity_id = ?", *f.SourceEntityID)
	}
	if f.TargetEntityID != nil {
		tx = tx.Where("target_entity_id = ?", *f.TargetEntityID)
	}

	var err error
	if tx, err = applyTimeRange(tx, "transaction_date", f.TransactionDate); err != nil {
		return nil, err
	}
	if tx, err = applyRange(tx, "total_amount", f.TotalAmount); err != nil {
		return nil, err
	}
	if tx, err = applyPathMatches(tx, dialect, "metadata", f.Metadata); err != nil {
		return nil, err
	}
	if f.FullText != nil {
		pattern := containsPattern(*f.FullText)
		tx = tx.Where(
			`(LOWER(transaction_code) LIKE ? ESCAPE '\' OR LOWER(transaction_type) LIKE ? ESCAPE '\')`,
			pattern, pattern,
		)
	}

	return tx.Order("transaction_date DESC"), nil
}

// =============================================================================
// PREDICATE HELPERS
// =============================================================================

func applyRange(tx *gorm.DB, column string, r *Range) (*gorm.DB, error) {
	if r == nil {
		return tx, nil
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return nil, apperr.NewInvalidFilterError(fmt.Sprintf("%s range: min %v > max %v", column, *r.Min, *r.Max))
	}
	if r.Min != nil {
		tx = tx.Where(column+" >= ?", *r.Min)
	}
	if r.Max != nil {
		tx = tx.Where(column+" <= ?", *r.Max)
	}
	return tx, nil
}

func applyTimeRange(tx *gorm.DB, column string, r *TimeRange) (*gorm.DB, error) {
	if r == nil {
		return tx, nil
	}
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return nil, apperr.NewInvalidFilterError(fmt.Sprintf("%s range: from is after to", column))
	}
	if r.From != nil {
		tx = tx.Where(column+" >= ?", *r.From)
	}
	if r.To != nil {
		tx = tx.Where(column+" <= ?", *r.To)
	}
	return tx, nil
}

// applyTagFilter translates array containment. Postgres uses jsonb
// containment on the tag column; sqlite (the test dialect) walks the array
// with json_each.
func applyTagFilter(tx *gorm.DB, dialect, column string, f *TagFilter) (*gorm.DB, error) {
	if f == nil || len(f.Contains) == 0 {
		return tx, nil
	}
	if dialect == "postgres" {
		doc, err := json.Marshal(f.Contains)
		if err != nil {
			return nil, apperr.NewInvalidFilterError("tags: cannot encode tag list")
		}
		return tx.Where(column+" @> ?", string(doc)), nil
	}
	for _, tag := range f.Contains {
		tx = tx.Where(
			fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value = ?)", column),
			tag,
		)
	}
	return tx, nil
}

// applyPathMatches translates nested-document predicates. The key path is
// interpolated into the query text, so every segment is validated against
// the identifier charset first.
func applyPathMatches(tx *gorm.DB, dialect, column string, matches []PathMatch) (*gorm.DB, error) {
	for _, m := range matches {
		if len(m.Path) == 0 {
			return nil, apperr.NewInvalidFilterError(column + ": empty path")
		}
		for _, segment := range m.Path {
			if err := security.ValidatePathSegment(segment); err != nil {
				return nil, apperr.NewInvalidFilterError(fmt.Sprintf("%s: %v", column, err))
			}
		}
		if dialect == "postgres" {
			pathLiteral := "{" + strings.Join(m.Path, ",") + "}"
			tx = tx.Where(fmt.Sprintf("%s #>> '%s' = ?", column, pathLiteral), jsonTextValue(m.Value))
		} else {
			pathLiteral := "$." + strings.Join(m.Path, ".")
			tx = tx.Where(fmt.Sprintf("json_extract(%s, '%s') = ?", column, pathLiteral), m.Value)
		}
	}
	return tx, nil
}

// containsPattern builds a case-insensitive LIKE pattern with wildcards
// escaped, matching the stored text anywhere.
func containsPattern(term string) string {
	return "%" + security.EscapeLikePattern(strings.ToLower(term)) + "%"
}

// jsonTextValue renders a value the way postgres #>> renders jsonb leaves:
// strings unquoted, everything else in canonical JSON text.
func jsonTextValue(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	doc, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(doc)
}
