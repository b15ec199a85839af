package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"claimiq.io/internal/audit"
	"claimiq.io/internal/auth"
	"claimiq.io/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	authorizerAgent = "AUTHORIZER"
	anonymous       = "anonymous"
)

// authorizeRequest is the gateway authorizer event shape. Fields beyond the
// token and resource are accepted but not consulted for the decision.
type authorizeRequest struct {
	Type               string            `json:"type,omitempty"`
	AuthorizationToken string            `json:"authorizationToken"`
	MethodArn          string            `json:"methodArn"`
	HTTPMethod         string            `json:"httpMethod,omitempty"`
	Path               string            `json:"path,omitempty"`
	Headers            map[string]string `json:"headers,omitempty"`
}

// token returns the credential carried by the event: the authorizationToken
// field, the event's own Authorization header, or the transport header.
func (req authorizeRequest) token(r *http.Request) string {
	if strings.TrimSpace(req.AuthorizationToken) != "" {
		return req.AuthorizationToken
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, authHeader) {
			return v
		}
	}
	return r.Header.Get(authHeader)
}

// handleAuthorize evaluates one gateway authorization request. Every request
// ends in exactly one of three terminal states, each of which appends exactly
// one audit event before the decision is written:
//
//	no token          -> TOKEN_MISSING, Deny
//	validation failed -> TOKEN_INVALID, Deny
//	validated         -> AUTHORIZATION_GRANTED, Allow with tenant context
//
// The response body never says why a denial happened; reasons go to logs and
// metrics only.
func (a *API) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req authorizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	resource := strings.TrimSpace(req.MethodArn)
	if resource == "" {
		resource = "*"
	}

	token, err := extractBearerToken(req.token(r))
	if err != nil {
		audit.Emit(r.Context(), a.sink, audit.Event{
			AgentType:    authorizerAgent,
			Action:       audit.ActionTokenMissing,
			Status:       audit.StatusError,
			ErrorMessage: err.Error(),
			Details:      map[string]any{"request_id": RequestIDFromContext(r.Context())},
		})
		obs.CountDecision("deny", "token_missing")
		writeJSON(w, http.StatusOK, auth.NewDecision(anonymous, auth.EffectDeny, resource, nil))
		return
	}

	claimSet, ok := a.validator.Validate(r.Context(), token)
	if !ok {
		audit.Emit(r.Context(), a.sink, audit.Event{
			AgentType:    authorizerAgent,
			Action:       audit.ActionTokenInvalid,
			Status:       audit.StatusError,
			ErrorMessage: "token validation failed",
			Details:      map[string]any{"request_id": RequestIDFromContext(r.Context())},
		})
		obs.CountDecision("deny", "token_invalid")
		writeJSON(w, http.StatusOK, auth.NewDecision(anonymous, auth.EffectDeny, resource, nil))
		return
	}

	id := auth.IdentityFromClaims(claimSet)
	audit.Emit(r.Context(), a.sink, audit.Event{
		AgentType: authorizerAgent,
		TenantID:  id.TenantID,
		Action:    audit.ActionAuthzGranted,
		Status:    audit.StatusSuccess,
		Details: map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"user_id":    id.UserID,
		},
	})
	obs.CountDecision("allow", "granted")
	writeJSON(w, http.StatusOK, auth.NewDecision(claimSet.Subject, auth.EffectAllow, resource, &id))
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
