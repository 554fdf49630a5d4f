package engine

import (
	"context"
	"testing"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/logger"
	"github.com/aethra/hera/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldCreateStoresSingleColumn(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	field, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID: org.ID,
		EntityID:       entity.ID,
		FieldName:      "credit_limit",
		SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:      models.FieldTypeNumber,
		Value:          50000,
	}, nil)
	require.NoError(t, err)

	var stored models.DynamicField
	require.NoError(t, db.Where("id = ?", field.ID).First(&stored).Error)
	assert.Equal(t, []string{models.ColumnValueNumber}, stored.PopulatedValueColumns())
	assert.Equal(t, 50000.0, *stored.FieldValueNumber)
	assert.Equal(t, models.ValidationStatusValid, stored.ValidationStatus)
}

func TestFieldCreateDuplicateNameConflicts(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	req := CreateFieldRequest{
		OrganizationID: org.ID,
		EntityID:       entity.ID,
		FieldName:      "tier",
		SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:      models.FieldTypeText,
		Value:          "gold",
	}
	_, err := fields.Create(ctx, req, nil)
	require.NoError(t, err)

	_, err = fields.Create(ctx, req, nil)
	var conflict *apperr.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestFieldCreateUnknownEntity(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	other := seedOrg(t, db, "other")
	entity := seedEntity(t, db, other.ID, "customer", "Elsewhere Co")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())

	// Entity exists, but in another organization.
	_, err := fields.Create(context.Background(), CreateFieldRequest{
		OrganizationID: org.ID,
		EntityID:       entity.ID,
		FieldName:      "tier",
		SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:      models.FieldTypeText,
		Value:          "gold",
	}, nil)
	var notFound *apperr.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestFieldCreatePersistsInvalidRecord(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())

	// Rule failure is data, not an error: the record lands with an
	// invalid status and the failure messages.
	field, err := fields.Create(context.Background(), CreateFieldRequest{
		OrganizationID:  org.ID,
		EntityID:        entity.ID,
		FieldName:       "discount",
		SmartCode:       "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:       models.FieldTypeNumber,
		Value:           150,
		ValidationRules: map[string]interface{}{"max_value": 100.0},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationStatusInvalid, field.ValidationStatus)
	assert.NotEmpty(t, field.ValidationErrors)
}

func TestFieldSetValueReencodesAndRevalidates(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	field, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID:  org.ID,
		EntityID:        entity.ID,
		FieldName:       "credit_limit",
		SmartCode:       "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:       models.FieldTypeNumber,
		Value:           50,
		ValidationRules: map[string]interface{}{"max_value": 100.0},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, models.ValidationStatusValid, field.ValidationStatus)

	// The string "250" is coerced to the declared number type and then
	// fails the stored max_value rule.
	updated, err := fields.SetValue(ctx, org.ID, field.ID, field.Version, SetValueRequest{
		Value: "250",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 250.0, *updated.FieldValueNumber)
	assert.Equal(t, []string{models.ColumnValueNumber}, updated.PopulatedValueColumns())
	assert.Equal(t, models.ValidationStatusInvalid, updated.ValidationStatus)
	assert.Equal(t, 2, updated.Version)
}

func TestFieldSetValueTypeMismatchLeavesRecordUntouched(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	field, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID: org.ID,
		EntityID:       entity.ID,
		FieldName:      "credit_limit",
		SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:      models.FieldTypeNumber,
		Value:          50,
	}, nil)
	require.NoError(t, err)

	_, err = fields.SetValue(ctx, org.ID, field.ID, field.Version, SetValueRequest{
		Value: "not a number",
	}, nil)
	var mismatch *apperr.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)

	var stored models.DynamicField
	require.NoError(t, db.Where("id = ?", field.ID).First(&stored).Error)
	assert.Equal(t, 50.0, *stored.FieldValueNumber)
	assert.Equal(t, 1, stored.Version)
}

func TestFieldSetValueStaleVersionConflicts(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	field, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID: org.ID,
		EntityID:       entity.ID,
		FieldName:      "tier",
		SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:      models.FieldTypeText,
		Value:          "silver",
	}, nil)
	require.NoError(t, err)

	_, err = fields.SetValue(ctx, org.ID, field.ID, 1, SetValueRequest{Value: "gold"}, nil)
	require.NoError(t, err)

	_, err = fields.SetValue(ctx, org.ID, field.ID, 1, SetValueRequest{Value: "platinum"}, nil)
	var conflict *apperr.VersionConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestFieldReorderKeepsStoredValue(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	field, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID: org.ID,
		EntityID:       entity.ID,
		FieldName:      "credit_limit",
		SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:      models.FieldTypeNumber,
		Value:          50,
		FieldOrder:     1,
	}, nil)
	require.NoError(t, err)

	// A nil value leaves the stored value in place.
	updated, err := fields.SetValue(ctx, org.ID, field.ID, 1, SetValueRequest{
		FieldOrder: intPtr(5),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.FieldOrder)
	assert.Equal(t, 50.0, *updated.FieldValueNumber)
	assert.Equal(t, []string{models.ColumnValueNumber}, updated.PopulatedValueColumns())
	assert.Equal(t, 2, updated.Version)
}

func TestFieldPromoteToSystemField(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	field, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID: org.ID,
		EntityID:       entity.ID,
		FieldName:      "tier",
		SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:      models.FieldTypeText,
		Value:          "gold",
	}, nil)
	require.NoError(t, err)
	require.False(t, field.IsSystemField)

	updated, err := fields.SetValue(ctx, org.ID, field.ID, 1, SetValueRequest{
		IsSystemField: boolPtr(true),
	}, nil)
	require.NoError(t, err)
	assert.True(t, updated.IsSystemField)
	assert.Equal(t, "gold", *updated.FieldValueText)
	assert.Equal(t, 2, updated.Version)
}

func TestFieldSetValueAuditsFirstTimeValidationErrors(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	field, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID:  org.ID,
		EntityID:        entity.ID,
		FieldName:       "discount",
		SmartCode:       "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:       models.FieldTypeNumber,
		Value:           50,
		ValidationRules: map[string]interface{}{"max_value": 100.0},
	}, nil)
	require.NoError(t, err)
	require.Empty(t, field.ValidationErrors)

	_, err = fields.SetValue(ctx, org.ID, field.ID, 1, SetValueRequest{Value: 150}, nil)
	require.NoError(t, err)

	// The error list did not exist before this write; a first-time set
	// still lands in the diff.
	var logs []models.AuditLog
	require.NoError(t, db.
		Where("record_id = ? AND action = ?", field.ID, "update").
		Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].ChangedFields, "validation_errors")
	assert.Contains(t, logs[0].ChangedFields, "validation_status")
}

func TestFieldRevalidateAfterRegisteringPredicate(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	validator := NewValidator()
	fields := NewFieldEngine(db, validator, logger.NewNop())
	ctx := context.Background()

	field, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID:  org.ID,
		EntityID:        entity.ID,
		FieldName:       "vat",
		SmartCode:       "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:       models.FieldTypeText,
		Value:           "DE123456789",
		ValidationRules: map[string]interface{}{"custom": "vat_number"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, models.ValidationStatusPending, field.ValidationStatus)

	validator.Register("vat_number", func(value interface{}) (bool, string) {
		s, _ := value.(string)
		return len(s) == 11, "vat number must be 11 characters"
	})

	revalidated, err := fields.Revalidate(ctx, org.ID, field.ID, field.Version, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationStatusValid, revalidated.ValidationStatus)
	assert.Equal(t, 2, revalidated.Version)
}

func TestFieldRevalidateIsVersionedAndAudited(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	field, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID:  org.ID,
		EntityID:        entity.ID,
		FieldName:       "vat",
		SmartCode:       "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:       models.FieldTypeText,
		Value:           "DE123456789",
		ValidationRules: map[string]interface{}{"custom": "vat_number"},
	}, nil)
	require.NoError(t, err)

	revalidated, err := fields.Revalidate(ctx, org.ID, field.ID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, revalidated.Version)

	// Replaying with the stale version conflicts without mutating.
	_, err = fields.Revalidate(ctx, org.ID, field.ID, 1, nil)
	var conflict *apperr.VersionConflictError
	require.ErrorAs(t, err, &conflict)

	var stored models.DynamicField
	require.NoError(t, db.Where("id = ?", field.ID).First(&stored).Error)
	assert.Equal(t, 2, stored.Version)

	var logs []models.AuditLog
	require.NoError(t, db.
		Where("record_id = ? AND action = ?", field.ID, "update").
		Find(&logs).Error)
	assert.Len(t, logs, 1)
}

func TestFieldRequiredIfSeesSiblingFields(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	_, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID: org.ID,
		EntityID:       entity.ID,
		FieldName:      "country",
		SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:      models.FieldTypeText,
		Value:          "US",
	}, nil)
	require.NoError(t, err)

	field, err := fields.Create(ctx, CreateFieldRequest{
		OrganizationID:  org.ID,
		EntityID:        entity.ID,
		FieldName:       "zip_code",
		SmartCode:       "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:       models.FieldTypeText,
		Value:           "",
		ValidationRules: map[string]interface{}{"required_if": map[string]interface{}{"country": "US"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationStatusInvalid, field.ValidationStatus)
}

func TestFieldQueryOrdersByFieldOrder(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "ACME Corp")
	fields := NewFieldEngine(db, NewValidator(), logger.NewNop())
	ctx := context.Background()

	for _, f := range []struct {
		name  string
		order int
	}{{"third", 3}, {"first", 1}, {"second", 2}} {
		_, err := fields.Create(ctx, CreateFieldRequest{
			OrganizationID: org.ID,
			EntityID:       entity.ID,
			FieldName:      f.name,
			SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
			FieldType:      models.FieldTypeText,
			Value:          "x",
			FieldOrder:     f.order,
		}, nil)
		require.NoError(t, err)
	}

	got, err := fields.Query(ctx, org.ID, FieldFilter{EntityID: &entity.ID})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].FieldName)
	assert.Equal(t, "second", got[1].FieldName)
	assert.Equal(t, "third", got[2].FieldName)
}
