package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"claimiq.io/internal/obs"
)

const (
	defaultKeyTTL     = time.Hour
	defaultKeyMaxSize = 16
)

// KeyResolver resolves a key identifier to RSA public key material.
type KeyResolver interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// jwksDocument is the wire shape of the authority's well-known key set.
type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

type keyEntry struct {
	key       *rsa.PublicKey
	fetchedAt time.Time
}

// KeyCache fetches and caches the identity authority's public signing keys by
// key identifier. Entries expire after a TTL to tolerate key rotation, and the
// entry count is capped with oldest-inserted-first eviction. Constructed once
// per process and passed into the Validator; never a hidden singleton.
type KeyCache struct {
	url    string
	ttl    time.Duration
	max    int
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]keyEntry
	order   []string // insertion order, oldest first
}

// KeyCacheOption configures a KeyCache.
type KeyCacheOption func(*KeyCache)

// WithKeyTTL overrides the entry expiry.
func WithKeyTTL(ttl time.Duration) KeyCacheOption {
	return func(c *KeyCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyCapacity overrides the maximum entry count.
func WithKeyCapacity(n int) KeyCacheOption {
	return func(c *KeyCache) {
		if n > 0 {
			c.max = n
		}
	}
}

// WithHTTPClient overrides the client used for key-set fetches.
func WithHTTPClient(client *http.Client) KeyCacheOption {
	return func(c *KeyCache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithKeyClock overrides the time source (useful for tests).
func WithKeyClock(fn func() time.Time) KeyCacheOption {
	return func(c *KeyCache) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewKeyCache constructs a cache backed by the given JWKS endpoint.
func NewKeyCache(jwksURL string, opts ...KeyCacheOption) *KeyCache {
	c := &KeyCache{
		url:     jwksURL,
		ttl:     defaultKeyTTL,
		max:     defaultKeyMaxSize,
		client:  &http.Client{Timeout: 5 * time.Second},
		now:     time.Now,
		entries: make(map[string]keyEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the public key for kid. A cached unexpired entry is returned
// without network I/O; otherwise the key set is fetched once and the cache
// repopulated. Returns ErrKeyNotFound when the fetched set has no such kid.
func (c *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[kid]; ok {
		if c.now().Sub(e.fetchedAt) < c.ttl {
			obs.CountKeyLookup("hit")
			return e.key, nil
		}
		obs.CountKeyLookup("expired")
	} else {
		obs.CountKeyLookup("miss")
	}

	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	key, found := keys[kid]
	fetchedAt := c.now()
	for id, k := range keys {
		if id == kid {
			continue
		}
		c.insert(id, keyEntry{key: k, fetchedAt: fetchedAt})
	}
	if !found {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}
	// The requested kid goes in last: capacity eviction drops oldest entries
	// first, and must never drop the key this call is about to hand out.
	c.insert(kid, keyEntry{key: key, fetchedAt: fetchedAt})
	return key, nil
}

// insert records an entry, evicting the oldest-inserted entries at capacity.
func (c *KeyCache) insert(kid string, e keyEntry) {
	if _, exists := c.entries[kid]; !exists {
		c.order = append(c.order, kid)
	}
	c.entries[kid] = e
	for len(c.entries) > c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		obs.CountKeyEviction()
	}
}

func (c *KeyCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build key-set request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key-set endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read key-set response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseJWKRSA(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no usable RSA keys in key set")
	}
	return keys, nil
}

// parseJWKRSA builds an RSA public key from base64url modulus and exponent.
func parseJWKRSA(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, fmt.Errorf("zero exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}
