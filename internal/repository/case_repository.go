package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"fraudcase/internal/database"
	"fraudcase/internal/models"
)

type caseRepository struct {
	conn
}

// Create inserts a new case
func (r *caseRepository) Create(ctx context.Context, c *models.Case) error {
	db, cancel := r.session(ctx)
	defer cancel()

	err := db.Create(c).Error
	return translate(err, "failed to create case")
}

// GetByID retrieves a case by ID
func (r *caseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var c models.Case
	err := db.Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, translate(err, "failed to get case")
	}
	return &c, nil
}

// GetByCode retrieves a case by its external case code
func (r *caseRepository) GetByCode(ctx context.Context, code string) (*models.Case, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var c models.Case
	err := db.Where("case_code = ?", code).First(&c).Error
	if err != nil {
		return nil, translate(err, "failed to get case by code")
	}
	return &c, nil
}

// CodeExists reports whether a case code is already taken
func (r *caseRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var count int64
	err := db.Model(&models.Case{}).Where("case_code = ?", code).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check case code")
	}
	return count > 0, nil
}

// Update writes every column of an existing case
func (r *caseRepository) Update(ctx context.Context, c *models.Case) error {
	db, cancel := r.session(ctx)
	defer cancel()

	result := db.Model(&models.Case{}).
		Where("id = ?", c.ID).
		Select("*").
		Updates(c)
	if result.Error != nil {
		return translate(result.Error, "failed to update case")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns cases matching filter, newest first
func (r *caseRepository) List(ctx context.Context, filter *models.CaseFilter, paginate *database.Paginate) ([]models.Case, int64, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	query := db.Model(&models.Case{})

	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.CaseType != nil {
			query = query.Where("case_type = ?", *filter.CaseType)
		}
		if filter.Priority != nil {
			query = query.Where("priority = ?", *filter.Priority)
		}
		if filter.ReporterID != nil {
			query = query.Where("reporter_id = ?", *filter.ReporterID)
		}
		if filter.AssignedOfficerID != nil {
			query = query.Where("assigned_officer_id = ?", *filter.AssignedOfficerID)
		}
		if filter.ScammerID != nil {
			query = query.Where("scammer_id = ?", *filter.ScammerID)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to get cases count")
	}

	var cases []models.Case
	err := query.Order("created_at DESC").
		Limit(paginate.Limit).
		Offset(paginate.Offset).
		Find(&cases).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to get cases")
	}

	return cases, total, nil
}
