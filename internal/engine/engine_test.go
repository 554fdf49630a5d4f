package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aethra/hera/internal/database"
	"github.com/aethra/hera/internal/logger"
	"github.com/aethra/hera/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openTestDB opens an isolated in-memory database with the full schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db, logger.NewNop()))
	return db
}

func seedOrg(t *testing.T, db *gorm.DB, code string) *models.Organization {
	t.Helper()
	orgs := NewOrganizationEngine(db, logger.NewNop())
	org, err := orgs.Create(context.Background(), CreateOrganizationRequest{
		OrganizationCode: code,
		OrganizationName: strings.ToUpper(code) + " Test Org",
	}, nil)
	require.NoError(t, err)
	return org
}

func seedEntity(t *testing.T, db *gorm.DB, orgID uuid.UUID, entityType, name string) *models.Entity {
	t.Helper()
	entities := NewEntityEngine(db, logger.NewNop())
	entity, err := entities.Create(context.Background(), CreateEntityRequest{
		OrganizationID: orgID,
		EntityType:     entityType,
		EntityName:     name,
		SmartCode:      "HERA.TEST." + strings.ToUpper(entityType) + ".v1",
	}, nil)
	require.NoError(t, err)
	return entity
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }
func intPtr(i int) *int           { return &i }
