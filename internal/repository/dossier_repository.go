package repository

import (
	"context"
	"database/sql"
	"fmt"

	"leadcourier/internal/models"
)

type dossierRepository struct {
	db *sql.DB
}

// NewDossierRepository creates a new dossier repository
func NewDossierRepository(db *sql.DB) DossierRepository {
	return &dossierRepository{db: db}
}

const dossierColumns = `id, org_id, lead_phone, lead_name, lead_source, status, created_at, updated_at`

func scanDossier(row interface{ Scan(...interface{}) error }, d *models.Dossier) error {
	return row.Scan(
		&d.ID,
		&d.OrgID,
		&d.LeadPhone,
		&d.LeadName,
		&d.LeadSource,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
}

// FindActiveByPhone retrieves the most recent open dossier for a phone
// number, excluding won/lost pipelines.
func (r *dossierRepository) FindActiveByPhone(ctx context.Context, orgID, phone string) (*models.Dossier, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM dossiers
		WHERE org_id = $1 AND lead_phone = $2 AND status NOT IN ('won', 'lost')
		ORDER BY created_at DESC
		LIMIT 1
	`, dossierColumns)

	dossier := &models.Dossier{}
	err := scanDossier(r.db.QueryRowContext(ctx, query, orgID, phone), dossier)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find dossier by phone: %w", err)
	}

	return dossier, nil
}

// GetByID retrieves a dossier by ID, scoped to the organization
func (r *dossierRepository) GetByID(ctx context.Context, orgID string, id int) (*models.Dossier, error) {
	query := fmt.Sprintf(`SELECT %s FROM dossiers WHERE org_id = $1 AND id = $2`, dossierColumns)

	dossier := &models.Dossier{}
	err := scanDossier(r.db.QueryRowContext(ctx, query, orgID, id), dossier)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dossier: %w", err)
	}

	return dossier, nil
}

// Create creates a new dossier
func (r *dossierRepository) Create(ctx context.Context, dossier *models.Dossier) error {
	query := `
		INSERT INTO dossiers (org_id, lead_phone, lead_name, lead_source, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		dossier.OrgID,
		dossier.LeadPhone,
		dossier.LeadName,
		dossier.LeadSource,
		dossier.Status,
	).Scan(&dossier.ID, &dossier.CreatedAt, &dossier.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create dossier: %w", err)
	}

	return nil
}

// UpdateName backfills the lead name when the webhook carries a contact
// profile and the dossier has none yet.
func (r *dossierRepository) UpdateName(ctx context.Context, id int, name string) error {
	query := `
		UPDATE dossiers
		SET lead_name = $2, updated_at = NOW()
		WHERE id = $1 AND (lead_name IS NULL OR lead_name = '')
	`

	if _, err := r.db.ExecContext(ctx, query, id, name); err != nil {
		return fmt.Errorf("failed to update dossier name: %w", err)
	}
	return nil
}
