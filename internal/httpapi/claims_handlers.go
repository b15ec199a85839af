package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"claimiq.io/internal/audit"
	"claimiq.io/internal/auth"
	"claimiq.io/internal/claims"
	"claimiq.io/internal/invoke"
	"claimiq.io/internal/retry"
)

type updateStatusRequest struct {
	Status string `json:"status"`
}

type manualReviewRequest struct {
	ErrorMessage string `json:"errorMessage"`
}

var claimStatuses = map[string]bool{
	claims.StatusUploaded:     true,
	claims.StatusProcessing:   true,
	claims.StatusDenied:       true,
	claims.StatusManualReview: true,
}

func (a *API) handleClaimsCollection(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, r, http.StatusServiceUnavailable, "claims store not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listClaims(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleClaimResource(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, r, http.StatusServiceUnavailable, "claims store not configured")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/claims/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/status") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/status"), "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "claim not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.updateClaimStatus(w, r, id)
		return
	}

	if strings.HasSuffix(path, "/review") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/review"), "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "claim not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.markManualReview(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getClaim(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) listClaims(w http.ResponseWriter, r *http.Request) {
	a.runWrapped(w, r, func(ctx context.Context, _ invoke.Event) (any, error) {
		id, _ := auth.IdentityFromContext(ctx)
		return retry.Do(ctx, a.retrier, "claims.list", func(ctx context.Context) ([]*claims.Claim, error) {
			return a.store.List(ctx, id.TenantID)
		})
	})
}

func (a *API) getClaim(w http.ResponseWriter, r *http.Request, claimID string) {
	a.runWrapped(w, r, func(ctx context.Context, _ invoke.Event) (any, error) {
		id, _ := auth.IdentityFromContext(ctx)
		return retry.Do(ctx, a.retrier, "claims.find", func(ctx context.Context) (*claims.Claim, error) {
			c, err := a.store.Find(ctx, id.TenantID, claimID)
			if errors.Is(err, claims.ErrNotFound) {
				// A missing claim is an answer, not a transient failure.
				return nil, retry.Permanent(err)
			}
			return c, err
		})
	})
}

func (a *API) updateClaimStatus(w http.ResponseWriter, r *http.Request, claimID string) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status := strings.TrimSpace(req.Status)
	if !claimStatuses[status] {
		writeError(w, r, http.StatusBadRequest, "unknown status")
		return
	}

	a.runWrapped(w, r, func(ctx context.Context, _ invoke.Event) (any, error) {
		id, _ := auth.IdentityFromContext(ctx)
		if err := a.store.UpdateStatus(ctx, id.TenantID, claimID, status); err != nil {
			return nil, err
		}
		audit.Emit(ctx, a.sink, audit.Event{
			ClaimID:   claimID,
			AgentType: "CLAIMS_API",
			TenantID:  id.TenantID,
			Action:    audit.ActionStatusUpdated,
			Status:    audit.StatusSuccess,
			Details:   map[string]any{"status": status},
		})
		return map[string]any{"claimId": claimID, "status": status}, nil
	})
}

func (a *API) markManualReview(w http.ResponseWriter, r *http.Request, claimID string) {
	var req manualReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	msg := strings.TrimSpace(req.ErrorMessage)
	if msg == "" {
		writeError(w, r, http.StatusBadRequest, "errorMessage is required")
		return
	}

	a.runWrapped(w, r, func(ctx context.Context, _ invoke.Event) (any, error) {
		id, _ := auth.IdentityFromContext(ctx)
		if err := a.store.MarkManualReview(ctx, id.TenantID, claimID, msg); err != nil {
			return nil, err
		}
		audit.Emit(ctx, a.sink, audit.Event{
			ClaimID:      claimID,
			AgentType:    "CLAIMS_API",
			TenantID:     id.TenantID,
			Action:       audit.ActionManualReview,
			Status:       audit.StatusSuccess,
			ErrorMessage: msg,
		})
		return map[string]any{"claimId": claimID, "status": claims.StatusManualReview}, nil
	})
}

// runWrapped executes the handler inside the execution wrapper and maps its
// outcome onto the response envelope.
func (a *API) runWrapped(w http.ResponseWriter, r *http.Request, h invoke.Handler) {
	result, err := a.wrapper.Wrap(h)(r.Context(), invoke.FromRequest(r))
	if err != nil {
		switch {
		case errors.Is(err, invoke.ErrTenantRequired):
			writeError(w, r, http.StatusBadRequest, "tenant context required")
		case errors.Is(err, claims.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "claim not found")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeData(w, r, http.StatusOK, result)
}
