package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"fraudcase/internal/models"
)

type scammerRepository struct {
	conn
}

// Create inserts a new scammer profile
func (r *scammerRepository) Create(ctx context.Context, profile *models.ScammerProfile) error {
	db, cancel := r.session(ctx)
	defer cancel()

	err := db.Create(profile).Error
	return translate(err, "failed to create scammer profile")
}

// GetByID retrieves a scammer profile by ID
func (r *scammerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ScammerProfile, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var profile models.ScammerProfile
	err := db.Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, translate(err, "failed to get scammer profile")
	}
	return &profile, nil
}

// FindByIdentifiers returns profiles sharing any identifier, oldest first
func (r *scammerRepository) FindByIdentifiers(ctx context.Context, ids models.ScammerIdentifiers) ([]models.ScammerProfile, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var (
		conditions []string
		args       []interface{}
	)

	add := func(column, value string) {
		if value == "" {
			return
		}
		conditions = append(conditions, "LOWER("+column+") = LOWER(?)")
		args = append(args, value)
	}

	add("phone", ids.Phone)
	add("email", ids.Email)
	add("payment_handle", ids.PaymentHandle)
	add("bank_account", ids.BankAccount)
	add("routing_code", ids.RoutingCode)

	if len(conditions) == 0 {
		return nil, nil
	}

	var profiles []models.ScammerProfile
	err := db.
		Where(strings.Join(conditions, " OR "), args...).
		Order("created_at ASC, id ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find scammer profiles")
	}
	return profiles, nil
}

// LinkCase appends caseID to the profile in a single statement so that
// concurrent or repeated links count the case once. Every call refreshes
// last_seen.
func (r *scammerRepository) LinkCase(ctx context.Context, id, caseID uuid.UUID, seenAt time.Time) (*models.ScammerProfile, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	err := db.Exec(`
		UPDATE scammer_profiles
		SET case_ids = CASE WHEN COALESCE(case_ids, '[]'::jsonb) @> jsonb_build_array(@case_id::text)
		                    THEN case_ids
		                    ELSE COALESCE(case_ids, '[]'::jsonb) || jsonb_build_array(@case_id::text) END,
		    case_count = case_count +
		                 CASE WHEN COALESCE(case_ids, '[]'::jsonb) @> jsonb_build_array(@case_id::text)
		                      THEN 0 ELSE 1 END,
		    last_seen = GREATEST(last_seen, @seen),
		    updated_at = @seen
		WHERE id = @id`,
		sql.Named("case_id", caseID.String()), sql.Named("seen", seenAt), sql.Named("id", id)).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to link case to scammer profile")
	}

	return r.GetByID(ctx, id)
}

// FillIdentifiers sets identifier columns that are still empty
func (r *scammerRepository) FillIdentifiers(ctx context.Context, id uuid.UUID, ids models.ScammerIdentifiers) error {
	db, cancel := r.session(ctx)
	defer cancel()

	err := db.Exec(`
		UPDATE scammer_profiles
		SET name = CASE WHEN name = '' THEN ? ELSE name END,
		    phone = CASE WHEN phone = '' THEN ? ELSE phone END,
		    email = CASE WHEN email = '' THEN ? ELSE email END,
		    payment_handle = CASE WHEN payment_handle = '' THEN ? ELSE payment_handle END,
		    bank_account = CASE WHEN bank_account = '' THEN ? ELSE bank_account END,
		    routing_code = CASE WHEN routing_code = '' THEN ? ELSE routing_code END,
		    address = CASE WHEN address = '' THEN ? ELSE address END
		WHERE id = ?`,
		ids.Name, ids.Phone, ids.Email, ids.PaymentHandle, ids.BankAccount, ids.RoutingCode, ids.Address, id).Error
	if err != nil {
		return errors.Wrap(err, "failed to fill scammer identifiers")
	}
	return nil
}

// UpdateStatus changes the profile status
func (r *scammerRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ScammerStatus) error {
	db, cancel := r.session(ctx)
	defer cancel()

	result := db.Model(&models.ScammerProfile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update scammer status")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
