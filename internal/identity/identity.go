package identity

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
)

// Role is the actor role attached to an authenticated identity.
type Role string

const (
	RoleProducer  Role = "producer"
	RoleCertifier Role = "certifier"
	RoleBuyer     Role = "buyer"
)

// Identity is the authenticated caller of an engine operation. The engine
// never reads ambient session state; every operation receives one of these.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// Require returns an UnauthorizedError unless the identity carries one of
// the given roles.
func (i Identity) Require(roles ...Role) error {
	for _, r := range roles {
		if i.Role == r {
			return nil
		}
	}
	return errs.Unauthorized("role %q may not perform this operation", i.Role)
}

// Claims are the JWT claims issued by the session provider.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Parser validates bearer tokens from the session provider and converts
// them to engine identities.
type Parser struct {
	secret []byte
}

// NewParser creates a token parser with the shared signing secret.
func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

// FromBearer parses an "Authorization: Bearer ..." header value.
func (p *Parser) FromBearer(header string) (Identity, error) {
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" || raw == header {
		return Identity{}, errs.Unauthorized("missing bearer token")
	}
	return p.Parse(raw)
}

// Parse validates a signed token and extracts the identity.
func (p *Parser) Parse(raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, errs.Wrap(err, errs.KindUnauthorized, "invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, errs.Unauthorized("token subject is not a user id")
	}

	role := Role(claims.Role)
	switch role {
	case RoleProducer, RoleCertifier, RoleBuyer:
	default:
		return Identity{}, errs.Unauthorized("unknown role %q", claims.Role)
	}

	return Identity{UserID: userID, Role: role}, nil
}
