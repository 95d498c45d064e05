// Package token verifies and issues the signed bearer tokens that carry a user id.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
)

const invalidCredentials = "Could not validate credentials"

// Config holds the shared signing settings.
type Config struct {
	SigningKey string
	// Algorithm is one of HS256, HS384, HS512.
	Algorithm string
	Issuer    string
	Audience  string
	// VerifyAudience requires the Audience claim to match. Off by default so tokens
	// minted for any sibling service are accepted.
	VerifyAudience bool
	Leeway         time.Duration
}

// Claims are the registered claims of an access token. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// Subject is the verified identity reference extracted from a token.
type Subject struct {
	ID        string
	TokenID   string
	ExpiresAt time.Time
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	return method, nil
}

// Verifier validates token signature and expiry. It is stateless and safe for
// concurrent use.
type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("signing key is required")
	}
	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.VerifyAudience {
		if cfg.Audience == "" {
			return nil, errors.New("audience verification enabled without an audience")
		}
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{key: []byte(cfg.SigningKey), parser: jwt.NewParser(opts...)}, nil
}

// Verify checks raw and returns its subject.
//
// Errors: CodeBadCredentials for any parse, signature, expiry or audience failure and
// for a missing subject. The jwt error stays in the chain.
func (v *Verifier) Verify(raw string) (Subject, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Subject{}, dErrors.Wrap(err, dErrors.CodeBadCredentials, "token has expired")
		}
		return Subject{}, dErrors.Wrap(err, dErrors.CodeBadCredentials, invalidCredentials)
	}
	if !parsed.Valid {
		return Subject{}, dErrors.New(dErrors.CodeBadCredentials, invalidCredentials)
	}
	if claims.Subject == "" {
		return Subject{}, dErrors.New(dErrors.CodeBadCredentials, invalidCredentials)
	}

	sub := Subject{ID: claims.Subject, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		sub.ExpiresAt = claims.ExpiresAt.Time
	}
	return sub, nil
}

// Issuer mints access tokens for the login flow.
type Issuer struct {
	key      []byte
	method   jwt.SigningMethod
	issuer   string
	audience string
	now      func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("signing key is required")
	}
	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Issuer{
		key:      []byte(cfg.SigningKey),
		method:   method,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}, nil
}

// Issue signs a token for userID that expires after ttl.
func (i *Issuer) Issue(userID id.UserID, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    i.issuer,
		ID:        uuid.NewString(),
	}}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("could not sign access token: %w", err)
	}
	return signed, expiresAt, nil
}
