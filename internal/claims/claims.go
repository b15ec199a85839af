// Package claims holds the claim-record store boundary used by the request
// handlers. All reads and writes are tenant-scoped; a claim id from another
// tenant behaves exactly like a missing claim.
package claims

import (
	"context"
	"errors"
	"time"
)

// Claim lifecycle statuses.
const (
	StatusUploaded     = "UPLOADED"
	StatusProcessing   = "PROCESSING"
	StatusDenied       = "DENIED"
	StatusManualReview = "MANUAL_REVIEW_REQUIRED"
)

// ErrNotFound is returned when no claim matches the id within the tenant.
var ErrNotFound = errors.New("claims: not found")

// Claim is a persisted claim record.
type Claim struct {
	ID           string    `json:"claimId"`
	TenantID     string    `json:"tenantId"`
	HospitalID   string    `json:"hospitalId"`
	Filename     string    `json:"originalFilename,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store is the claim persistence boundary.
type Store interface {
	// Find returns the claim by id within the tenant, or ErrNotFound.
	Find(ctx context.Context, tenantID, claimID string) (*Claim, error)
	// List returns the tenant's claims, newest first.
	List(ctx context.Context, tenantID string) ([]*Claim, error)
	// UpdateStatus moves the claim to the given status. ErrNotFound when
	// the claim does not exist within the tenant.
	UpdateStatus(ctx context.Context, tenantID, claimID, status string) error
	// MarkManualReview flags the claim for manual review, recording why.
	MarkManualReview(ctx context.Context, tenantID, claimID, errorMessage string) error
}
