package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

func jwksJSON(t *testing.T, keys map[string]*rsa.PublicKey) []byte {
	t.Helper()
	type jwk struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	}
	doc := struct {
		Keys []jwk `json:"keys"`
	}{}
	for kid, pub := range keys {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "RSA",
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return data
}

func TestKeyCacheHitAvoidsNetwork(t *testing.T) {
	priv := testRSAKey(t)
	body := jwksJSON(t, map[string]*rsa.PublicKey{"key-1": &priv.PublicKey})

	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache := NewKeyCache(srv.URL)
	ctx := context.Background()

	first, err := cache.Key(ctx, "key-1")
	if err != nil {
		t.Fatalf("Key (miss): %v", err)
	}
	if fetches != 1 {
		t.Fatalf("expected exactly one fetch on miss, got %d", fetches)
	}

	second, err := cache.Key(ctx, "key-1")
	if err != nil {
		t.Fatalf("Key (hit): %v", err)
	}
	if fetches != 1 {
		t.Fatalf("cache hit must not touch the network, fetches=%d", fetches)
	}
	if first.N.Cmp(second.N) != 0 {
		t.Fatal("hit returned a different key")
	}
}

func TestKeyCacheExpiryForcesRefetch(t *testing.T) {
	priv := testRSAKey(t)
	body := jwksJSON(t, map[string]*rsa.PublicKey{"key-1": &priv.PublicKey})

	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	cache := NewKeyCache(srv.URL,
		WithKeyTTL(time.Minute),
		WithKeyClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	if _, err := cache.Key(ctx, "key-1"); err != nil {
		t.Fatalf("Key: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.Key(ctx, "key-1"); err != nil {
		t.Fatalf("Key after expiry: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected refetch after TTL, fetches=%d", fetches)
	}
}

func TestKeyCacheUnknownKid(t *testing.T) {
	priv := testRSAKey(t)
	body := jwksJSON(t, map[string]*rsa.PublicKey{"key-1": &priv.PublicKey})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache := NewKeyCache(srv.URL)
	_, err := cache.Key(context.Background(), "absent")
	if err == nil {
		t.Fatal("expected error for unknown kid")
	}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeyCacheEvictsOldestAtCapacity(t *testing.T) {
	keys := make(map[string]*rsa.PublicKey)
	priv := testRSAKey(t)
	for i := 0; i < 3; i++ {
		keys[fmt.Sprintf("key-%d", i)] = &priv.PublicKey
	}
	serve := keys
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		_, _ = w.Write(jwksJSON(t, serve))
	}))
	defer srv.Close()

	cache := NewKeyCache(srv.URL, WithKeyCapacity(2))
	ctx := context.Background()

	// First fetch inserts three keys into a cache of two; the oldest goes.
	if _, err := cache.Key(ctx, "key-2"); err != nil {
		t.Fatalf("Key: %v", err)
	}
	if len(cache.entries) != 2 {
		t.Fatalf("expected capacity enforcement, have %d entries", len(cache.entries))
	}
	if _, ok := cache.entries["key-2"]; !ok {
		t.Fatal("requested kid must survive the eviction its own fetch caused")
	}
	if fetches != 1 {
		t.Fatalf("unexpected fetch count %d", fetches)
	}

	// An evicted kid is a miss again and triggers exactly one more fetch.
	evicted := ""
	for kid := range keys {
		if _, ok := cache.entries[kid]; !ok {
			evicted = kid
			break
		}
	}
	if evicted == "" {
		t.Fatal("expected one evicted kid")
	}
	if _, err := cache.Key(ctx, evicted); err != nil {
		t.Fatalf("Key for evicted kid: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected refetch for evicted kid, fetches=%d", fetches)
	}
}

func TestKeyCacheServesEveryKidAtCapacityOne(t *testing.T) {
	priv := testRSAKey(t)
	keys := make(map[string]*rsa.PublicKey)
	for i := 0; i < 4; i++ {
		keys[fmt.Sprintf("key-%d", i)] = &priv.PublicKey
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(jwksJSON(t, keys))
	}))
	defer srv.Close()

	// Capacity far below the key-set size: every fetched kid must still be
	// resolvable, because it is present in the authority's key set.
	cache := NewKeyCache(srv.URL, WithKeyCapacity(1))
	ctx := context.Background()

	for kid := range keys {
		if _, err := cache.Key(ctx, kid); err != nil {
			t.Fatalf("Key(%q): %v", kid, err)
		}
		if len(cache.entries) != 1 {
			t.Fatalf("expected capacity enforcement, have %d entries", len(cache.entries))
		}
		if _, ok := cache.entries[kid]; !ok {
			t.Fatalf("kid %q missing from cache after its own fetch", kid)
		}
	}
}

func TestKeyCacheFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cache := NewKeyCache(srv.URL)
	if _, err := cache.Key(context.Background(), "key-1"); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}
