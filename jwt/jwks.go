package jwtkit

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWKSRefreshInterval is the floor between background refreshes of a
// registered key set.
const JWKSRefreshInterval = 15 * time.Minute

// NewJWKSVerifier verifies tokens against the key set published at url, as
// identity providers such as Supabase or Auth0 do. The set is fetched once
// up front and then refreshed in the background until ctx is done.
func NewJWKSVerifier(ctx context.Context, url, issuer, audience string) (*Verifier, error) {
	if url == "" {
		return nil, errors.New("jwks: url is required")
	}
	cache := jwk.NewCache(ctx)
	if err := cache.Register(url, jwk.WithMinRefreshInterval(JWKSRefreshInterval)); err != nil {
		return nil, fmt.Errorf("jwks: register %s: %w", url, err)
	}
	if _, err := cache.Refresh(ctx, url); err != nil {
		return nil, fmt.Errorf("jwks: fetch %s: %w", url, err)
	}
	return NewKeySetVerifier(jwk.NewCachedSet(cache, url), issuer, audience), nil
}

// NewKeySetVerifier verifies tokens against keys in set.
func NewKeySetVerifier(set jwk.Set, issuer, audience string) *Verifier {
	if set == nil {
		return newVerifier(nil, issuer, audience)
	}
	return newVerifier(keySetKeyfunc(set), issuer, audience)
}

// keySetKeyfunc selects the key named by the token's kid header. A token
// without kid is accepted only when the set holds a single key.
func keySetKeyfunc(set jwk.Set) jwt.Keyfunc {
	return func(tok *jwt.Token) (any, error) {
		kid, _ := tok.Header["kid"].(string)
		var (
			key jwk.Key
			ok  bool
		)
		switch {
		case kid != "":
			key, ok = set.LookupKeyID(kid)
			if !ok {
				return nil, fmt.Errorf("jwks: unknown key id %q", kid)
			}
		case set.Len() == 1:
			key, _ = set.Key(0)
		default:
			return nil, errors.New("jwks: token has no key id")
		}
		var raw any
		if err := key.Raw(&raw); err != nil {
			return nil, fmt.Errorf("jwks: key %q: %w", kid, err)
		}
		pub, ok := raw.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("jwks: key %q is not an RSA public key", kid)
		}
		return pub, nil
	}
}
