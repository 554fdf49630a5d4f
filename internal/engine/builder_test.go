package engine

import (
	"testing"
	"time"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEntityAggregatesMissingFields(t *testing.T) {
	_, err := BuildEntity(CreateEntityRequest{
		EntityName: "ACME Corp",
	}, nil, time.Now())

	var missing *apperr.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "MISSING_REQUIRED_FIELD", missing.Code())
	assert.ElementsMatch(t, []string{"organization_id", "entity_type", "smart_code"}, missing.Fields)
}

func TestBuildEntityDefaults(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	actor := uuid.New()

	entity, err := BuildEntity(CreateEntityRequest{
		OrganizationID: uuid.New(),
		EntityType:     "customer",
		EntityName:     "ACME Corp",
		SmartCode:      "HERA.CRM.CUSTOMER.v1",
	}, &actor, now)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, entity.ID)
	assert.Equal(t, 1, entity.Version)
	assert.Equal(t, models.StatusActive, entity.Status)
	assert.Equal(t, models.SmartCodeStatusDraft, entity.SmartCodeStatus)
	assert.Equal(t, now, entity.CreatedAt)
	assert.Equal(t, now, entity.UpdatedAt)
	require.NotNil(t, entity.CreatedBy)
	assert.Equal(t, actor, *entity.CreatedBy)
}

func TestBuildEntityKeepsExplicitStatus(t *testing.T) {
	entity, err := BuildEntity(CreateEntityRequest{
		OrganizationID: uuid.New(),
		EntityType:     "customer",
		EntityName:     "Dormant Co",
		SmartCode:      "HERA.CRM.CUSTOMER.v1",
		Status:         models.StatusInactive,
	}, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, entity.Status)
}

func TestBuildFieldEncodesNumberValue(t *testing.T) {
	field, err := BuildField(CreateFieldRequest{
		OrganizationID: uuid.New(),
		EntityID:       uuid.New(),
		FieldName:      "credit_limit",
		SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:      models.FieldTypeNumber,
		Value:          50000,
	}, nil, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{models.ColumnValueNumber}, field.PopulatedValueColumns())
	assert.Equal(t, 50000.0, *field.FieldValueNumber)
	assert.Equal(t, models.ValidationStatusPending, field.ValidationStatus)
	assert.Equal(t, 1, field.Version)
}

func TestBuildFieldAggregatesMissingFields(t *testing.T) {
	_, err := BuildField(CreateFieldRequest{Value: "x"}, nil, time.Now())

	var missing *apperr.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t,
		[]string{"organization_id", "entity_id", "field_name", "smart_code", "field_type"},
		missing.Fields)
}

func TestBuildFieldRejectsMismatchedValue(t *testing.T) {
	_, err := BuildField(CreateFieldRequest{
		OrganizationID: uuid.New(),
		EntityID:       uuid.New(),
		FieldName:      "credit_limit",
		SmartCode:      "HERA.CRM.CUSTOMER.FIELD.v1",
		FieldType:      models.FieldTypeNumber,
		Value:          "not a number",
	}, nil, time.Now())

	var mismatch *apperr.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
}
