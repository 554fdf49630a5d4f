package engine

import (
	"context"
	"testing"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationshipCreateAndQuery(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	parent := seedEntity(t, db, org.ID, "customer", "Holding Co")
	child := seedEntity(t, db, org.ID, "customer", "Subsidiary Co")
	rels := NewRelationshipEngine(db, logger.NewNop())
	ctx := context.Background()

	rel, err := rels.Create(ctx, CreateRelationshipRequest{
		OrganizationID:   org.ID,
		SourceEntityID:   parent.ID,
		TargetEntityID:   child.ID,
		RelationshipType: "owns",
		SmartCode:        "HERA.CRM.REL.OWNS.v1",
		RelationshipData: map[string]interface{}{"share": 100.0},
	}, nil)
	require.NoError(t, err)
	assert.True(t, rel.IsActive)
	assert.Equal(t, 1, rel.Version)

	got, err := rels.Query(ctx, org.ID, RelationshipFilter{SourceEntityID: &parent.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "owns", got[0].RelationshipType)
}

func TestRelationshipRejectsSelfEdge(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	entity := seedEntity(t, db, org.ID, "customer", "Loner Co")
	rels := NewRelationshipEngine(db, logger.NewNop())

	_, err := rels.Create(context.Background(), CreateRelationshipRequest{
		OrganizationID:   org.ID,
		SourceEntityID:   entity.ID,
		TargetEntityID:   entity.ID,
		RelationshipType: "owns",
		SmartCode:        "HERA.CRM.REL.OWNS.v1",
	}, nil)
	var bad *apperr.BadRequestError
	require.ErrorAs(t, err, &bad)
}

func TestRelationshipEndpointsMustShareOrganization(t *testing.T) {
	db := openTestDB(t)
	orgA := seedOrg(t, db, "org-a")
	orgB := seedOrg(t, db, "org-b")
	source := seedEntity(t, db, orgA.ID, "customer", "A Co")
	target := seedEntity(t, db, orgB.ID, "customer", "B Co")
	rels := NewRelationshipEngine(db, logger.NewNop())

	_, err := rels.Create(context.Background(), CreateRelationshipRequest{
		OrganizationID:   orgA.ID,
		SourceEntityID:   source.ID,
		TargetEntityID:   target.ID,
		RelationshipType: "supplies",
		SmartCode:        "HERA.SCM.REL.SUPPLIES.v1",
	}, nil)
	var notFound *apperr.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRelationshipDeactivateIsVersioned(t *testing.T) {
	db := openTestDB(t)
	org := seedOrg(t, db, "acme")
	source := seedEntity(t, db, org.ID, "customer", "One Co")
	target := seedEntity(t, db, org.ID, "customer", "Two Co")
	rels := NewRelationshipEngine(db, logger.NewNop())
	ctx := context.Background()

	rel, err := rels.Create(ctx, CreateRelationshipRequest{
		OrganizationID:   org.ID,
		SourceEntityID:   source.ID,
		TargetEntityID:   target.ID,
		RelationshipType: "owns",
		SmartCode:        "HERA.CRM.REL.OWNS.v1",
	}, nil)
	require.NoError(t, err)

	updated, err := rels.Update(ctx, org.ID, rel.ID, 1, RelationshipPatch{IsActive: boolPtr(false)}, nil)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 2, updated.Version)

	_, err = rels.Update(ctx, org.ID, rel.ID, 1, RelationshipPatch{IsActive: boolPtr(true)}, nil)
	var conflict *apperr.VersionConflictError
	require.ErrorAs(t, err, &conflict)
}
