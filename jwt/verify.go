package jwtkit

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims carried by access tokens issued by the main auth backend.
type Claims struct {
	Email        string   `json:"email,omitempty"`
	Entitlements []string `json:"entitlements,omitempty"`
	jwt.RegisteredClaims
}

// Has reports whether the token grants entitlement.
func (c *Claims) Has(entitlement string) bool {
	return c != nil && slices.Contains(c.Entitlements, entitlement)
}

// Verifier validates RS256 bearer tokens against a public key or a JWKS.
type Verifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	leeway   time.Duration
}

// NewVerifier returns a verifier for a single key. Empty issuer or audience
// skips that check.
func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	var kf jwt.Keyfunc
	if pub != nil {
		kf = func(*jwt.Token) (any, error) { return pub, nil }
	}
	return newVerifier(kf, issuer, audience)
}

func newVerifier(kf jwt.Keyfunc, issuer, audience string) *Verifier {
	return &Verifier{keyfunc: kf, issuer: issuer, audience: audience, leeway: 30 * time.Second}
}

// LoadVerifier reads a PEM public key from path.
func LoadVerifier(path, issuer, audience string) (*Verifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pub, err := ParseRSAPublicKeyPEM(b)
	if err != nil {
		return nil, err
	}
	return NewVerifier(pub, issuer, audience), nil
}

// ParseRSAPublicKeyPEM accepts PKIX ("PUBLIC KEY") and PKCS1 ("RSA PUBLIC KEY") blocks.
func ParseRSAPublicKeyPEM(b []byte) (*rsa.PublicKey, error) {
	blk, _ := pem.Decode(b)
	if blk == nil {
		return nil, errors.New("failed to decode RSA public key pem")
	}
	if blk.Type == "RSA PUBLIC KEY" {
		return x509.ParsePKCS1PublicKey(blk.Bytes)
	}
	key, err := x509.ParsePKIXPublicKey(blk.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return pub, nil
}

// Verify parses and validates raw, returning its claims.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	if v == nil || v.keyfunc == nil {
		return nil, errors.New("jwt: verifier not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, v.keyfunc, opts...)
	if err != nil {
		return nil, err
	}
	if c.Subject == "" {
		return nil, errors.New("jwt: missing subject")
	}
	return &c, nil
}
