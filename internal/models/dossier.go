package models

import "time"

// DossierStatus represents valid dossier statuses
type DossierStatus string

const (
	DossierStatusNew       DossierStatus = "new"
	DossierStatusQualified DossierStatus = "qualified"
	DossierStatusVisit     DossierStatus = "visit"
	DossierStatusOffer     DossierStatus = "offer"
	DossierStatusWon       DossierStatus = "won"
	DossierStatusLost      DossierStatus = "lost"
)

// Dossier is a lead record, the business entity inbound messages and
// consent records attach to.
type Dossier struct {
	ID         int           `json:"id" db:"id"`
	OrgID      string        `json:"org_id" db:"org_id"`
	LeadPhone  string        `json:"lead_phone" db:"lead_phone"`
	LeadName   *string       `json:"lead_name,omitempty" db:"lead_name"`
	LeadSource string        `json:"lead_source" db:"lead_source"`
	Status     DossierStatus `json:"status" db:"status"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

// IsClosed reports whether the dossier is in a terminal pipeline stage
func (d *Dossier) IsClosed() bool {
	return d.Status == DossierStatusWon || d.Status == DossierStatusLost
}

// ConsentStatus represents valid consent record states
type ConsentStatus string

const (
	ConsentStatusGranted ConsentStatus = "granted"
	ConsentStatusDenied  ConsentStatus = "denied"
	ConsentStatusRevoked ConsentStatus = "revoked"
)

// Consent is one consent record for a (dossier, channel) pair
type Consent struct {
	ID        int           `json:"id" db:"id"`
	OrgID     string        `json:"org_id" db:"org_id"`
	DossierID int           `json:"dossier_id" db:"dossier_id"`
	Channel   Channel       `json:"channel" db:"channel"`
	Status    ConsentStatus `json:"status" db:"status"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}
