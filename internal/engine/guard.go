package engine

import (
	"encoding/json"
	"fmt"
	"time"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// applyVersionedUpdate performs the optimistic-concurrency write shared by
// every mutable tenant-scoped record. The update is conditioned on the
// caller's expected version; a mismatched version mutates nothing and
// surfaces as VersionConflict. On success the stored version advances by
// exactly one and the audit columns are stamped.
func applyVersionedUpdate(tx *gorm.DB, model interface{}, resource string, orgID, id uuid.UUID, expectedVersion int, updates map[string]interface{}, actor *uuid.UUID, now time.Time) error {
	scope := func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND organization_id = ?", id, orgID)
	}
	return versionedWrite(tx, model, resource, scope, expectedVersion, updates, actor, now)
}

// applyRootVersionedUpdate is the same write for the organization table,
// which is not scoped to another organization.
func applyRootVersionedUpdate(tx *gorm.DB, model interface{}, resource string, id uuid.UUID, expectedVersion int, updates map[string]interface{}, actor *uuid.UUID, now time.Time) error {
	scope := func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ?", id)
	}
	return versionedWrite(tx, model, resource, scope, expectedVersion, updates, actor, now)
}

func versionedWrite(tx *gorm.DB, model interface{}, resource string, scope func(*gorm.DB) *gorm.DB, expectedVersion int, updates map[string]interface{}, actor *uuid.UUID, now time.Time) error {
	if expectedVersion < 1 {
		return apperr.NewBadRequestError(fmt.Sprintf("expected version must be positive, got %d", expectedVersion))
	}

	updates["version"] = expectedVersion + 1
	updates["updated_at"] = now
	updates["updated_by"] = actor

	res := scope(tx.Model(model)).
		Where("version = ?", expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update %s: %w", resource, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Nothing matched: distinguish a stale version from a missing record.
	var stored struct{ Version int }
	err := scope(tx.Model(model)).
		Select("version").
		Take(&stored).Error
	if err == gorm.ErrRecordNotFound {
		return apperr.NewNotFoundError(resource)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s version: %w", resource, err)
	}
	return apperr.NewVersionConflictError(expectedVersion, stored.Version)
}

// writeAudit appends an audit trail row for a mutation. Audit writes never
// fail the caller's operation; a failure is carried back for logging only.
func writeAudit(tx *gorm.DB, orgID uuid.UUID, actor *uuid.UUID, table string, recordID uuid.UUID, action string, oldValues, newValues datatypes.JSONMap, now time.Time) error {
	var changed []string
	if oldValues != nil && newValues != nil {
		for key, newVal := range newValues {
			oldVal, exists := oldValues[key]
			// A key absent from the old snapshot is a first-time set.
			if !exists || fmt.Sprintf("%v", oldVal) != fmt.Sprintf("%v", newVal) {
				changed = append(changed, key)
			}
		}
	}

	entry := models.AuditLog{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ActorID:        actor,
		Table:          table,
		RecordID:       recordID,
		Action:         action,
		OldValues:      oldValues,
		NewValues:      newValues,
		ChangedFields:  datatypes.JSONSlice[string](changed),
		CreatedAt:      now,
	}
	return tx.Create(&entry).Error
}

// recordSnapshot flattens a record into the audit log's document form.
func recordSnapshot(record interface{}) datatypes.JSONMap {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	delete(doc, "fields")
	delete(doc, "lines")
	return datatypes.JSONMap(doc)
}
