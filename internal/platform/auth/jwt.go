package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired signals that the provided bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided bearer token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the JWT payload issued by the identity service.
type Claims struct {
	Role   string `json:"role"`
	FarmID string `json:"farm_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 signed bearer tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// JWTOption customises JWTVerifier behaviour.
type JWTOption func(*JWTVerifier)

// WithIssuer requires the iss claim to match the given value.
func WithIssuer(issuer string) JWTOption {
	return func(v *JWTVerifier) {
		v.issuer = strings.TrimSpace(issuer)
	}
}

// WithLeeway tolerates the given clock skew when validating time claims.
func WithLeeway(leeway time.Duration) JWTOption {
	return func(v *JWTVerifier) {
		if leeway >= 0 {
			v.leeway = leeway
		}
	}
}

// WithJWTClock injects a custom clock primarily for tests.
func WithJWTClock(clock func() time.Time) JWTOption {
	return func(v *JWTVerifier) {
		if clock != nil {
			v.now = clock
		}
	}
}

// NewJWTVerifier constructs a verifier for HS256 signed tokens.
func NewJWTVerifier(secret string, opts ...JWTOption) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	v := &JWTVerifier{
		secret: []byte(secret),
		now:    time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Verify parses the token, checks the signature and time claims, and maps the
// payload onto an Identity.
func (v *JWTVerifier) Verify(_ context.Context, tokenStr string) (*Identity, error) {
	if v == nil {
		return nil, ErrTokenInvalid
	}
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	now := v.now().UTC()
	if !claims.VerifyExpiresAt(now.Add(-v.leeway), true) {
		return nil, ErrTokenExpired
	}
	if !claims.VerifyNotBefore(now.Add(v.leeway), false) {
		return nil, fmt.Errorf("%w: token not yet valid", ErrTokenInvalid)
	}
	if !claims.VerifyIssuedAt(now.Add(v.leeway), false) {
		return nil, fmt.Errorf("%w: token issued in the future", ErrTokenInvalid)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	role := strings.ToLower(strings.TrimSpace(claims.Role))
	switch role {
	case RoleCustomer, RoleFarmManager, RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	return &Identity{
		Subject: subject,
		Role:    role,
		FarmID:  strings.TrimSpace(claims.FarmID),
	}, nil
}
