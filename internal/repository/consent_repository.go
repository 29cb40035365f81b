package repository

import (
	"context"
	"database/sql"
	"fmt"

	"leadcourier/internal/models"
)

type consentRepository struct {
	db *sql.DB
}

// NewConsentRepository creates a new consent repository
func NewConsentRepository(db *sql.DB) ConsentRepository {
	return &consentRepository{db: db}
}

// LatestByDossierAndChannel retrieves the most recent consent record
// for a (dossier, channel) pair.
func (r *consentRepository) LatestByDossierAndChannel(ctx context.Context, orgID string, dossierID int, channel models.Channel) (*models.Consent, error) {
	query := `
		SELECT id, org_id, dossier_id, channel, status, updated_at
		FROM consents
		WHERE org_id = $1 AND dossier_id = $2 AND channel = $3
		ORDER BY updated_at DESC
		LIMIT 1
	`

	consent := &models.Consent{}
	err := r.db.QueryRowContext(ctx, query, orgID, dossierID, channel).Scan(
		&consent.ID,
		&consent.OrgID,
		&consent.DossierID,
		&consent.Channel,
		&consent.Status,
		&consent.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}

	return consent, nil
}
