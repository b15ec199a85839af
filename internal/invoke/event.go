package invoke

import (
	"encoding/json"
	"net/http"
	"strings"

	"claimiq.io/internal/auth"
)

// Kind tags the known invocation shapes. The shape is resolved once at the
// entry boundary instead of structurally probing the payload downstream.
type Kind int

const (
	// KindHTTP is a gateway-shaped invocation carrying method, path and headers.
	KindHTTP Kind = iota
	// KindDirect is a direct invocation with an opaque payload.
	KindDirect
)

// Event is the tagged union over invocation shapes handed to wrapped handlers.
type Event struct {
	Kind    Kind
	HTTP    *HTTPEvent
	Payload json.RawMessage
}

// HTTPEvent is the gateway-shaped invocation.
type HTTPEvent struct {
	Method     string
	Path       string
	Headers    http.Header
	Authorizer map[string]string // context propagated by the upstream authorizer
}

// FromRequest resolves an inbound HTTP request into an event.
func FromRequest(r *http.Request) Event {
	return Event{
		Kind: KindHTTP,
		HTTP: &HTTPEvent{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header,
		},
	}
}

// Direct wraps an opaque payload as a direct invocation.
func Direct(payload json.RawMessage) Event {
	return Event{Kind: KindDirect, Payload: payload}
}

// identity resolves the tenant context the event itself carries: the upstream
// authorizer context wins, then tenant-identifying headers. Returns false when
// the event carries neither.
func (e Event) identity() (auth.Identity, bool) {
	if e.Kind != KindHTTP || e.HTTP == nil {
		return auth.Identity{}, false
	}
	if len(e.HTTP.Authorizer) > 0 {
		return auth.IdentityFromMap(e.HTTP.Authorizer), true
	}
	if e.HTTP.Headers != nil && strings.TrimSpace(e.HTTP.Headers.Get(auth.HeaderTenantID)) != "" {
		return auth.IdentityFromHeaders(e.HTTP.Headers), true
	}
	return auth.Identity{}, false
}
