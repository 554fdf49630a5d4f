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

func TestUpdateIncrementsVersionByOne(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "Versioned Co")
	entities := NewEntityEngine(db, logger.NewNop())
	ctx := context.Background()

	require.Equal(t, 1, entity.Version)

	current := entity
	for expected := 2; expected <= 4; expected++ {
		updated, err := entities.Update(ctx, org.ID, entity.ID, current.Version,
			EntityPatch{EntityDescription: strPtr("revision")}, nil)
		require.NoError(t, err)
		assert.Equal(t, expected, updated.Version)
		current = updated
	}
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "Contended Co")
	entities := NewEntityEngine(db, logger.NewNop())
	ctx := context.Background()

	// First writer wins.
	_, err := entities.Update(ctx, org.ID, entity.ID, 1,
		EntityPatch{EntityName: strPtr("Renamed Co")}, nil)
	require.NoError(t, err)

	// Second writer still holds version 1 and must fail without mutating.
	_, err = entities.Update(ctx, org.ID, entity.ID, 1,
		EntityPatch{EntityName: strPtr("Lost Update Co")}, nil)

	var conflict *apperr.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "VERSION_CONFLICT", conflict.Code())
	assert.Equal(t, 1, conflict.Expected)
	assert.Equal(t, 2, conflict.Actual)

	var stored models.Entity
	require.NoError(t, db.Where("id = ?", entity.ID).First(&stored).Error)
	assert.Equal(t, "Renamed Co", stored.EntityName)
	assert.Equal(t, 2, stored.Version)
}

func TestUpdateNonPositiveVersionRejected(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "Zero Co")
	entities := NewEntityEngine(db, logger.NewNop())

	_, err := entities.Update(context.Background(), org.ID, entity.ID, 0,
		EntityPatch{EntityDescription: strPtr("x")}, nil)
	var bad *apperr.BadRequestError
	require.ErrorAs(t, err, &bad)
}

func TestUpdateWritesAuditWithChangedFields(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "Before Co")
	entities := NewEntityEngine(db, logger.NewNop())

	_, err := entities.Update(context.Background(), org.ID, entity.ID, 1,
		EntityPatch{EntityName: strPtr("After Co")}, nil)
	require.NoError(t, err)

	var logs []models.AuditLog
	require.NoError(t, db.
		Where("record_id = ? AND action = ?", entity.ID, "update").
		Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].ChangedFields, "entity_name")
	assert.Contains(t, logs[0].ChangedFields, "version")
	assert.Equal(t, "Before Co", logs[0].OldValues["entity_name"])
	assert.Equal(t, "After Co", logs[0].NewValues["entity_name"])
}

func TestOrganizationUpdateIsVersionGuarded(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	orgs := NewOrganizationEngine(db, logger.NewNop())
	ctx := context.Background()

	updated, err := orgs.Update(ctx, org.ID, 1, OrganizationPatch{
		OrganizationName: strPtr("Acme Rebranded"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	_, err = orgs.Update(ctx, org.ID, 1, OrganizationPatch{
		OrganizationName: strPtr("Stale Write"),
	}, nil)
	var conflict *apperr.VersionConflictError
	require.ErrorAs(t, err, &conflict)
}
