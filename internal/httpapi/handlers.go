// Package httpapi is the HTTP layer: the authorizer endpoint, the
// tenant-scoped claims API and the operational endpoints, with the
// middleware chain they share.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"claimiq.io/internal/audit"
	"claimiq.io/internal/auth"
	"claimiq.io/internal/claims"
	"claimiq.io/internal/invoke"
	"claimiq.io/internal/obs"
	"claimiq.io/internal/retry"
)

// ReadyProbe reports whether downstream dependencies answer.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// TokenValidator is the token verification boundary the API depends on.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.ClaimSet, bool)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	validator TokenValidator
	sink      audit.Sink
	store     claims.Store
	retrier   *retry.Retrier
	wrapper   *invoke.Wrapper

	rateBurst  int
	ratePerSec int
	maxBody    int64
}

func New(rp ReadyProbe, version string, validator TokenValidator, sink audit.Sink, store claims.Store) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		validator:  validator,
		sink:       sink,
		store:      store,
		retrier:    retry.New(2, 50*time.Millisecond),
		rateBurst:  20,
		ratePerSec: 10,
		maxBody:    1 << 20,
	}
	a.wrapper = invoke.NewWrapper(
		invoke.WithAgentType("CLAIMS_API"),
		invoke.WithRequireTenant(),
		invoke.WithAuditSink(sink),
	)

	// health/ready
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// gateway authorizer
	a.mux.HandleFunc("/authorize", a.handleAuthorize)

	// claims API
	a.mux.HandleFunc("/v1/claims", a.handleClaimsCollection)
	a.mux.HandleFunc("/v1/claims/", a.handleClaimResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "claimiq-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeError(w, r, http.StatusServiceUnavailable, "not ready: "+err.Error())
		return
	}
	obs.SetReady(true)
	writeData(w, r, http.StatusOK, map[string]any{"status": "ready"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData wraps the payload in the success envelope.
func writeData(w http.ResponseWriter, r *http.Request, code int, v any) {
	writeJSON(w, code, map[string]any{
		"success": true,
		"data":    v,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"success": false,
		"error":   msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
