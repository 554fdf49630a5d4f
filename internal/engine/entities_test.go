package engine

import (
	"context"
	"testing"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/logger"
	"github.com/aethra/hera/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityCreateRequiresOrganization(t *testing.T) {
	db := openTestDB(t)
	entities := NewEntityEngine(db, logger.NewNop())

	_, err := entities.Create(context.Background(), CreateEntityRequest{
		EntityType: "customer",
		EntityName: "No Org Co",
		SmartCode:  "HERA.TEST.CUSTOMER.v1",
	}, nil)

	var missing *apperr.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Fields, "organization_id")
}

func TestEntityCreateUnknownOrganization(t *testing.T) {
	db := openTestDB(t)
	entities := NewEntityEngine(db, logger.NewNop())

	_, err := entities.Create(context.Background(), CreateEntityRequest{
		OrganizationID: uuid.New(),
		EntityType:     "customer",
		EntityName:     "Ghost Org Co",
		SmartCode:      "HERA.TEST.CUSTOMER.v1",
	}, nil)

	var notFound *apperr.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestEntityCreateParentMustBeInSameOrg(t *testing.T) {
	db := openTestDB(t)
	orgA := seedOrg(t, db, "org-a")
	orgB := seedOrg(t, db, "org-b")
	parent := seedEntity(t, db, orgA.ID, "customer", "Parent Co")
	entities := NewEntityEngine(db, logger.NewNop())
	ctx := context.Background()

	// Same org: allowed.
	child, err := entities.Create(ctx, CreateEntityRequest{
		OrganizationID: orgA.ID,
		EntityType:     "customer",
		EntityName:     "Child Co",
		SmartCode:      "HERA.TEST.CUSTOMER.v1",
		ParentEntityID: &parent.ID,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, *child.ParentEntityID)

	// Cross-org parent reference: rejected.
	_, err = entities.Create(ctx, CreateEntityRequest{
		OrganizationID: orgB.ID,
		EntityType:     "customer",
		EntityName:     "Stray Child",
		SmartCode:      "HERA.TEST.CUSTOMER.v1",
		ParentEntityID: &parent.ID,
	}, nil)
	var notFound *apperr.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestEntityCreateWritesAuditTrail(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "Audited Co")

	var logs []models.AuditLog
	require.NoError(t, db.Where("record_id = ?", entity.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "create", logs[0].Action)
	assert.Equal(t, entity.TableName(), logs[0].Table)
	assert.Equal(t, org.ID, logs[0].OrganizationID)
}

func TestEntityGetScopedToOrganization(t *testing.T) {
	db := openTestDB(t)
	orgA := seedOrg(t, db, "org-a")
	orgB := seedOrg(t, db, "org-b")
	entity := seedEntity(t, db, orgA.ID, "customer", "Private Co")
	entities := NewEntityEngine(db, logger.NewNop())
	ctx := context.Background()

	got, err := entities.Get(ctx, orgA.ID, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ID, got.ID)

	_, err = entities.Get(ctx, orgB.ID, entity.ID)
	var notFound *apperr.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestEntityUpdateEmptyPatchRejected(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "Unchanged Co")
	entities := NewEntityEngine(db, logger.NewNop())

	_, err := entities.Update(context.Background(), org.ID, entity.ID, entity.Version, EntityPatch{}, nil)
	var bad *apperr.BadRequestError
	require.ErrorAs(t, err, &bad)
}

func TestEntityBulkCreateReportsPerItemOutcomes(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entities := NewEntityEngine(db, logger.NewNop())

	results := entities.BulkCreate(context.Background(), org.ID, []CreateEntityRequest{
		{EntityType: "customer", EntityName: "Good One", SmartCode: "HERA.TEST.CUSTOMER.v1"},
		{EntityType: "", EntityName: "Bad One", SmartCode: "HERA.TEST.CUSTOMER.v1"},
		{EntityType: "customer", EntityName: "Good Two", SmartCode: "HERA.TEST.CUSTOMER.v1"},
	}, nil)

	require.Len(t, results, 3)
	assert.NotNil(t, results[0].Entity)
	assert.Empty(t, results[0].Error)

	assert.Nil(t, results[1].Entity)
	assert.Equal(t, "MISSING_REQUIRED_FIELD", results[1].Code)

	// A failure in the middle does not stop the rest of the batch.
	assert.NotNil(t, results[2].Entity)

	var count int64
	require.NoError(t, db.Model(&models.Entity{}).Where("organization_id = ?", org.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
