package service

import (
	"context"
	"database/sql"
	"fmt"

	"leadcourier/internal/models"
	"leadcourier/internal/repository"
)

// Consent block reasons surfaced in the rejection
const (
	ConsentReasonMissing = "no consent on record"
	ConsentReasonDenied  = "consent denied"
	ConsentReasonRevoked = "consent revoked"
)

// ConsentGate decides whether an outbound message to a dossier is
// allowed on a channel. Any error blocks creation.
type ConsentGate interface {
	Check(ctx context.Context, orgID string, dossierID int, channel models.Channel) error
}

// RepositoryConsentGate checks the consent registry table
type RepositoryConsentGate struct {
	consentRepo repository.ConsentRepository
}

// NewRepositoryConsentGate creates a consent gate backed by the
// consent registry.
func NewRepositoryConsentGate(consentRepo repository.ConsentRepository) *RepositoryConsentGate {
	return &RepositoryConsentGate{consentRepo: consentRepo}
}

// Check passes only when the latest consent for the (dossier, channel)
// pair is granted. The rejection reason distinguishes a missing record
// from denied and revoked consent.
func (g *RepositoryConsentGate) Check(ctx context.Context, orgID string, dossierID int, channel models.Channel) error {
	consent, err := g.consentRepo.LatestByDossierAndChannel(ctx, orgID, dossierID, channel)
	if err == sql.ErrNoRows {
		return &PolicyError{Channel: string(channel), Reason: ConsentReasonMissing}
	}
	if err != nil {
		return fmt.Errorf("failed to check consent: %w", err)
	}

	switch consent.Status {
	case models.ConsentStatusGranted:
		return nil
	case models.ConsentStatusDenied:
		return &PolicyError{Channel: string(channel), Reason: ConsentReasonDenied}
	case models.ConsentStatusRevoked:
		return &PolicyError{Channel: string(channel), Reason: ConsentReasonRevoked}
	default:
		return &PolicyError{Channel: string(channel), Reason: fmt.Sprintf("consent status is %s", consent.Status)}
	}
}
