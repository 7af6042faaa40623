package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"fraudcase/internal/models"
)

type documentRepository struct {
	conn
}

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	db, cancel := r.session(ctx)
	defer cancel()

	err := db.Create(doc).Error
	return translate(err, "failed to create document")
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var doc models.Document
	err := db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, translate(err, "failed to get document")
	}
	return &doc, nil
}

type notificationRepository struct {
	conn
}

func (r *notificationRepository) CreateAttempts(ctx context.Context, attempts []models.NotificationAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	db, cancel := r.session(ctx)
	defer cancel()

	err := db.Create(&attempts).Error
	return translate(err, "failed to create notification attempts")
}

func (r *notificationRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]models.NotificationAttempt, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var attempts []models.NotificationAttempt
	err := db.
		Where("case_id = ?", caseID).
		Order("attempted_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get notification attempts")
	}
	return attempts, nil
}
