package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentmesh/engine/types"
)

// MaxBearerTTL is the longest lifetime IssueBearer will grant. Bearer
// tokens authenticate agentmesh's own internal worker-to-API calls, not
// end users, so there is no refresh flow — a token simply expires and
// the caller mints a new one.
const MaxBearerTTL = 60 * time.Second

// bearerLeeway absorbs clock skew between the issuing and verifying
// process when comparing exp/nbf.
const bearerLeeway = 5 * time.Second

// Claims is the closed claim set carried in an agentmesh bearer token.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueBearer mints an HS256 JWT for iss asserting aud as its sole
// audience, valid from now for ttl (capped at MaxBearerTTL).
func IssueBearer(iss, aud string, ttl time.Duration, secret string) (string, error) {
	if ttl <= 0 || ttl > MaxBearerTTL {
		ttl = MaxBearerTTL
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    iss,
			Audience:  jwt.ClaimStrings{aud},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyBearer checks tokenString against secret, requiring aud among
// its audiences. Failures are returned as a types.Error with a Message
// of "expired", "bad_audience", or "bad_signature" so callers can log a
// stable reason without parsing error strings.
func VerifyBearer(tokenString, aud, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(aud),
		jwt.WithLeeway(bearerLeeway))

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, unauthorized("expired", err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return nil, unauthorized("bad_audience", err)
	default:
		return nil, unauthorized("bad_signature", err)
	}
}

func unauthorized(reason string, cause error) error {
	return types.NewError(types.ErrUnauthorized, reason).WithCause(cause)
}
