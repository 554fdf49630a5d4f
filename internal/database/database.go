// Package database provides the database connection and schema migration.
package database

import (
	"fmt"
	"time"

	"github.com/aethra/hera/internal/config"
	"github.com/aethra/hera/internal/logger"
	"github.com/aethra/hera/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the postgres connection pool.
func Connect(cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("database connected", "host", cfg.Host, "name", cfg.Name)
	return db, nil
}

// Migrate creates or updates the universal schema.
func Migrate(db *gorm.DB, log *logger.Logger) error {
	tables := []interface{}{
		&models.Organization{},
		&models.Entity{},
		&models.DynamicField{},
		&models.Relationship{},
		&models.Transaction{},
		&models.TransactionLine{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Cross-table constraints that AutoMigrate does not express. Postgres
	// only; the sqlite test dialect skips them.
	if db.Dialector.Name() == "postgres" {
		constraints := []string{
			`ALTER TABLE core_entities
				ADD CONSTRAINT fk_entities_organization
				FOREIGN KEY (organization_id) REFERENCES core_organizations(id)
				ON DELETE CASCADE`,
			`ALTER TABLE core_dynamic_data
				ADD CONSTRAINT fk_dynamic_data_entity
				FOREIGN KEY (entity_id) REFERENCES core_entities(id)
				ON DELETE CASCADE`,
			`ALTER TABLE core_relationships
				ADD CONSTRAINT fk_relationships_source
				FOREIGN KEY (source_entity_id) REFERENCES core_entities(id)
				ON DELETE CASCADE`,
			`ALTER TABLE core_relationships
				ADD CONSTRAINT fk_relationships_target
				FOREIGN KEY (target_entity_id) REFERENCES core_entities(id)
				ON DELETE CASCADE`,
			`ALTER TABLE universal_transaction_lines
				ADD CONSTRAINT fk_transaction_lines_header
				FOREIGN KEY (transaction_id) REFERENCES universal_transactions(id)
				ON DELETE CASCADE`,
		}
		for _, stmt := range constraints {
			if err := db.Exec(stmt).Error; err != nil {
				// Re-running migrations hits existing constraints.
				log.Debug("constraint already present or rejected", "error", err)
			}
		}
	}

	log.Info("schema migrated", "tables", len(tables))
	return nil
}
