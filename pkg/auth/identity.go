package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/researchmesh/a2a-go/pkg/errors"
)

/*
Claims are the verified identity attached to an agent's bearer token.
Issuance lives outside this system; this service only validates claims
presented by callers.
*/
type Claims struct {
	AgentID   string   `json:"agent_id"`
	AgentType string   `json:"agent_type"`
	Roles     []string `json:"roles"`
	Scopes    []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Service validates agent bearer tokens and rate-limits callers.
type Service struct {
	signingKey  []byte
	rateLimiter *RateLimiter
}

// NewService creates an auth service around a shared HMAC signing key.
func NewService(signingKey []byte) *Service {
	return &Service{
		signingKey:  signingKey,
		rateLimiter: NewRateLimiter(100, time.Minute),
	}
}

func (s *Service) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.ErrUnauthorized.WithMessagef("unexpected signing method: %v", token.Header["alg"])
	}
	return s.signingKey, nil
}

/*
IssueToken mints a token for an agent identity. Outside of tests and
local single-node deployments tokens come from the external issuer;
this exists so a mesh can be stood up without one.
*/
func (s *Service) IssueToken(agentID, agentType string, roles, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &Claims{
		AgentID:   agentID,
		AgentType: agentType,
		Roles:     roles,
		Scopes:    scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "researchmesh",
			Subject:   agentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)

	if err != nil {
		return "", errors.ErrUnauthorized.WithMessagef("failed to sign token: %v", err)
	}

	return signed, nil
}

/*
VerifyToken parses and validates a bearer token, returning its claims.
*/
func (s *Service) VerifyToken(tokenStr string) (*Claims, error) {
	if !s.rateLimiter.Allow() {
		return nil, errors.ErrUnauthorized.WithMessagef("rate limit exceeded")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, s.keyFunc)

	if err != nil {
		return nil, errors.ErrUnauthorized.WithMessagef("invalid token: %v", err)
	}

	if !token.Valid {
		return nil, errors.ErrUnauthorized.WithMessagef("token expired")
	}

	return claims, nil
}

/*
FromHeader extracts the bearer token from an Authorization header value.
*/
func FromHeader(header string) (string, error) {
	if header == "" {
		return "", errors.ErrUnauthorized.WithMessagef("missing authorization header")
	}

	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer "), nil
	}

	return header, nil
}
