package engine

import (
	"context"
	"fmt"
	"time"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/logger"
	"github.com/aethra/hera/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrganizationEngine manages the tenant records themselves. Organizations
// are the only records not scoped to another organization.
type OrganizationEngine struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewOrganizationEngine creates a new organization engine
func NewOrganizationEngine(db *gorm.DB, log *logger.Logger) *OrganizationEngine {
	return &OrganizationEngine{db: db, log: log.With("engine", "organization")}
}

// CreateOrganizationRequest is a creation request for a tenant.
type CreateOrganizationRequest struct {
	OrganizationCode string                 `json:"organization_code"`
	OrganizationName string                 `json:"organization_name"`
	OrganizationType string                 `json:"organization_type"`
	Settings         map[string]interface{} `json:"settings"`
}

// OrganizationPatch carries the mutable members of an organization update.
type OrganizationPatch struct {
	OrganizationName *string                `json:"organization_name"`
	OrganizationType *string                `json:"organization_type"`
	Status           *string                `json:"status"`
	Settings         map[string]interface{} `json:"settings"`
}

func (p OrganizationPatch) updates() (map[string]interface{}, error) {
	updates := make(map[string]interface{})
	if p.OrganizationName != nil {
		if *p.OrganizationName == "" {
			return nil, apperr.NewBadRequestError("organization_name cannot be cleared")
		}
		updates["organization_name"] = *p.OrganizationName
	}
	if p.OrganizationType != nil {
		updates["organization_type"] = *p.OrganizationType
	}
	if p.Status != nil {
		switch *p.Status {
		case models.StatusActive, models.StatusInactive, models.StatusArchived, models.StatusDeleted:
			updates["status"] = *p.Status
		default:
			return nil, apperr.NewBadRequestError(fmt.Sprintf("unknown status %q", *p.Status))
		}
	}
	if p.Settings != nil {
		updates["settings"] = datatypes.JSONMap(p.Settings)
	}
	if len(updates) == 0 {
		return nil, apperr.NewBadRequestError("no fields to update")
	}
	return updates, nil
}

// Create registers a new tenant. Organization codes are globally unique.
func (e *OrganizationEngine) Create(ctx context.Context, req CreateOrganizationRequest, actor *uuid.UUID) (*models.Organization, error) {
	var missing []string
	if req.OrganizationCode == "" {
		missing = append(missing, "organization_code")
	}
	if req.OrganizationName == "" {
		missing = append(missing, "organization_name")
	}
	if len(missing) > 0 {
		return nil, apperr.NewMissingFieldsError(missing...)
	}

	db := e.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Organization{}).
		Where("organization_code = ?", req.OrganizationCode).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check organization code: %w", err)
	}
	if count > 0 {
		return nil, apperr.NewConflictError(fmt.Sprintf("organization code %q already exists", req.OrganizationCode))
	}

	now := time.Now().UTC()
	org := &models.Organization{
		ID:               uuid.New(),
		OrganizationCode: req.OrganizationCode,
		OrganizationName: req.OrganizationName,
		OrganizationType: req.OrganizationType,
		Status:           models.StatusActive,
		Settings:         datatypes.JSONMap(req.Settings),
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        actor,
		UpdatedBy:        actor,
		Version:          1,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}
		if err := writeAudit(tx, org.ID, actor, org.TableName(), org.ID, "create", nil, recordSnapshot(org), now); err != nil {
			e.log.Warn("audit write failed", "record_id", org.ID, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("organization created", "organization_id", org.ID, "organization_code", org.OrganizationCode)
	return org, nil
}

// Get returns one organization by id.
func (e *OrganizationEngine) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := e.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFoundError("organization")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// GetByCode returns one organization by its unique code.
func (e *OrganizationEngine) GetByCode(ctx context.Context, code string) (*models.Organization, error) {
	var org models.Organization
	err := e.db.WithContext(ctx).Where("organization_code = ?", code).First(&org).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFoundError("organization")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// List returns every organization, oldest first.
func (e *OrganizationEngine) List(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	err := e.db.WithContext(ctx).Order("created_at ASC").Find(&orgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// Update applies a patch under the optimistic-concurrency rule.
func (e *OrganizationEngine) Update(ctx context.Context, id uuid.UUID, expectedVersion int, patch OrganizationPatch, actor *uuid.UUID) (*models.Organization, error) {
	updates, err := patch.updates()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	var updated models.Organization
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before models.Organization
		if err := tx.Where("id = ?", id).First(&before).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NewNotFoundError("organization")
			}
			return fmt.Errorf("failed to read organization: %w", err)
		}

		if err := applyRootVersionedUpdate(tx, &models.Organization{}, "organization", id, expectedVersion, updates, actor, now); err != nil {
			return err
		}

		if err := tx.Where("id = ?", id).First(&updated).Error; err != nil {
			return fmt.Errorf("failed to reload organization: %w", err)
		}
		if err := writeAudit(tx, id, actor, updated.TableName(), id, "update", recordSnapshot(&before), recordSnapshot(&updated), now); err != nil {
			e.log.Warn("audit write failed", "record_id", id, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
