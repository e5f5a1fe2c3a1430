// Package auth verifies session tokens against the identity provider's JWKS.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"smartsite/edge-gateway/internal/domain/session"
)

const (
	jwksInitialRetryInterval   = time.Second
	jwksInitialRetryMaxBackoff = 10 * time.Second
	jwksInitialRetryTimeout    = 2 * time.Minute
)

// JWKSVerifier validates session tokens against the identity provider JWKS
// and implements session.Verifier. Token-level failures wrap
// session.ErrTokenInvalid; everything else is treated as transient.
type JWKSVerifier struct {
	issuer    string
	audience  string
	jwksURL   string
	logger    zerolog.Logger
	clockSkew time.Duration
	jwks      atomic.Pointer[keyfunc.JWKS]
}

// NewJWKSVerifier initialises JWKS fetching and returns a verifier.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer, audience string, refreshEvery, clockSkew time.Duration, logger zerolog.Logger) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}

	verifier := &JWKSVerifier{
		issuer:    issuer,
		audience:  audience,
		jwksURL:   jwksURL,
		logger:    logger,
		clockSkew: clockSkew,
	}

	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   refreshEvery,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error().Err(err).Msg("jwks refresh failed")
		},
	}

	backoff := jwksInitialRetryInterval
	deadline := time.Now().Add(jwksInitialRetryTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	for attempt := 1; ; attempt++ {
		jwks, err := keyfunc.Get(jwksURL, options)
		if err == nil {
			verifier.jwks.Store(jwks)
			return verifier, nil
		}

		logger.Warn().
			Err(err).
			Str("jwks_url", jwksURL).
			Int("attempt", attempt).
			Msg("initial jwks fetch failed, retrying")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch jwks: %w", ctx.Err())
		case <-time.After(backoff):
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("fetch jwks: %w", err)
		}

		if next := backoff * 2; next <= jwksInitialRetryMaxBackoff {
			backoff = next
		} else {
			backoff = jwksInitialRetryMaxBackoff
		}
	}
}

// Verify parses and validates the token, returning the verified user id.
func (v *JWKSVerifier) Verify(_ context.Context, rawToken string) (string, error) {
	jwks := v.jwks.Load()
	if jwks == nil {
		return "", errors.New("jwks not initialised")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256", "ES256"}))
	token, err := parser.ParseWithClaims(rawToken, jwt.MapClaims{}, jwks.Keyfunc)
	if err != nil {
		return "", fmt.Errorf("parse token: %w: %w", session.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return "", fmt.Errorf("%w: token rejected", session.ErrTokenInvalid)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims type", session.ErrTokenInvalid)
	}

	iss, _ := mapClaims["iss"].(string)
	if v.issuer != "" && iss != v.issuer {
		return "", fmt.Errorf("%w: issuer mismatch %s", session.ErrTokenInvalid, iss)
	}

	if v.audience != "" {
		if err := checkAudience(mapClaims["aud"], v.audience); err != nil {
			return "", fmt.Errorf("%w: %w", session.ErrTokenInvalid, err)
		}
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("%w: sub claim missing", session.ErrTokenInvalid)
	}

	if exp := numericTime(mapClaims["exp"]); !exp.IsZero() {
		if time.Now().UTC().After(exp.Add(v.clockSkew)) {
			return "", fmt.Errorf("%w: token expired", session.ErrTokenInvalid)
		}
	}

	return sub, nil
}

func checkAudience(raw any, expected string) error {
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		if val != expected {
			return errors.New("audience mismatch")
		}
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok && s == expected {
				return nil
			}
		}
		return errors.New("audience mismatch")
	default:
		return fmt.Errorf("aud claim unsupported type %T", val)
	}
	return nil
}

func numericTime(value any) time.Time {
	if f, ok := value.(float64); ok {
		return time.Unix(int64(f), 0).UTC()
	}
	return time.Time{}
}
