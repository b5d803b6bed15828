// Package testing provides helpers for exercising demogate's gated routes
// in tests: a token issuer whose verifier accepts the tokens it mints, and a
// ready-made in-memory gate.
//
// Example usage:
//
//	iss := testing.NewIssuer()
//	router := newRouter(iss.Verifier())
//	req.Header.Set("Authorization", "Bearer "+iss.Token("user-123", "premium"))
package testing

import (
	"context"
	"time"

	"github.com/PaulFidika/demogate/features"
	jwtkit "github.com/PaulFidika/demogate/jwt"
	"github.com/PaulFidika/demogate/quota"
	"github.com/PaulFidika/demogate/session"
	memorystore "github.com/PaulFidika/demogate/storage/memory"
)

const (
	// Issuer and Audience stamped on every test token.
	Issuer   = "https://auth.test"
	Audience = "demogate-test"
)

// TokenIssuer signs tokens that its own Verifier accepts.
type TokenIssuer struct {
	signer   *jwtkit.RSASigner
	verifier *jwtkit.Verifier
}

// NewIssuer generates a fresh RSA key pair.
func NewIssuer() *TokenIssuer {
	signer, err := jwtkit.NewRSASigner(2048, "test-key-1")
	if err != nil {
		panic("failed to create RSA signer: " + err.Error())
	}
	return &TokenIssuer{
		signer:   signer,
		verifier: jwtkit.NewVerifier(signer.PublicKey(), Issuer, Audience),
	}
}

// Verifier returns a verifier bound to this issuer's key.
func (ti *TokenIssuer) Verifier() *jwtkit.Verifier { return ti.verifier }

// Token mints a one-hour token for userID with the given entitlements.
func (ti *TokenIssuer) Token(userID string, entitlements ...string) string {
	return ti.sign(jwtkit.NewClaims(Issuer, Audience, userID, entitlements, time.Hour))
}

// ExpiredToken mints a token that expired an hour ago.
func (ti *TokenIssuer) ExpiredToken(userID string) string {
	return ti.sign(jwtkit.NewClaims(Issuer, Audience, userID, nil, -time.Hour))
}

func (ti *TokenIssuer) sign(c jwtkit.Claims) string {
	tok, err := ti.signer.Sign(context.Background(), c)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return tok
}

// Gate is an in-memory gate over the default catalog.
type Gate struct {
	*quota.Gate
	Store *session.Store
	KV    *memorystore.KV
}

// NewGate builds a gate with fresh in-memory storage. Call Close when done.
func NewGate() *Gate {
	kv := memorystore.NewKV(time.Hour)
	store := session.NewStore(kv, session.Options{})
	return &Gate{Gate: quota.New(features.Default(), store), Store: store, KV: kv}
}

// Exhaust sets the device's remaining generations to zero.
func (g *Gate) Exhaust(deviceID string) {
	zero := 0
	if _, err := g.Store.Save(context.Background(), deviceID, session.Patch{GenerationsLeft: &zero}); err != nil {
		panic("failed to exhaust session: " + err.Error())
	}
}

// Close releases the in-memory store.
func (g *Gate) Close() { _ = g.KV.Close() }
