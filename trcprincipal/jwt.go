package trcprincipal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sessiontrace/trc/trcuser"
)

// ErrNoToken is returned when the request carries no bearer token.
var ErrNoToken = fmt.Errorf("%w: no bearer token", ErrUnauthenticated)

// JWTSource authenticates requests by their HMAC-signed bearer tokens.
type JWTSource struct {
	key    []byte
	claim  string
	issuer string
	parser *jwt.Parser
}

// JWTConfig captures the configuration parameters for a JWT source.
type JWTConfig struct {
	// Key is the HMAC key, and is required.
	Key []byte

	// Claim names the claim used as the principal name. If not provided, the
	// subject ("sub") claim is used.
	Claim string

	// Issuer, if provided, must match the issuer ("iss") claim.
	Issuer string

	// Leeway allows for clock skew when validating time-based claims.
	Leeway time.Duration
}

// NewJWTSource returns a JWT source with the given config.
func NewJWTSource(cfg JWTConfig) (*JWTSource, error) {
	if len(cfg.Key) == 0 {
		return nil, fmt.Errorf("key is required")
	}
	if cfg.Claim == "" {
		cfg.Claim = "sub"
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	return &JWTSource{
		key:    cfg.Key,
		claim:  cfg.Claim,
		issuer: cfg.Issuer,
		parser: jwt.NewParser(options...),
	}, nil
}

// ForRequest returns a principal source for the given request. The token is
// parsed each time the returned source is called, not before.
func (s *JWTSource) ForRequest(r *http.Request) trcuser.PrincipalSource {
	return trcuser.PrincipalFunc(func(ctx context.Context) (trcuser.Principal, error) {
		token, ok := BearerToken(r)
		if !ok {
			return nil, ErrNoToken
		}
		c, err := s.Authenticate(token)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Authenticate parses and validates the token, and returns the principal it
// identifies.
func (s *JWTSource) Authenticate(token string) (*Claims, error) {
	parsed, err := s.parser.Parse(token, func(t *jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, jwt.ErrTokenInvalidClaims)
	}

	name, _ := claims[s.claim].(string)
	if name == "" {
		return nil, fmt.Errorf("%w: token has no %s claim", ErrUnauthenticated, s.claim)
	}

	return &Claims{name: name, claims: claims}, nil
}

// Sign returns a token for the given name, valid for the given duration. The
// name is written to the configured claim, and the subject claim.
func (s *JWTSource) Sign(name string, ttl time.Duration) (string, error) {
	if name == "" {
		return "", errors.New("name is required")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": name,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
	}
	claims[s.claim] = name
	if s.issuer != "" {
		claims["iss"] = s.issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// BearerToken extracts the bearer token from the request's Authorization
// header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Claims is a principal authenticated by a token.
type Claims struct {
	name   string
	claims jwt.MapClaims
}

var _ trcuser.Principal = (*Claims)(nil)

// Name implements trcuser.Principal.
func (c *Claims) Name() string { return c.name }

// Claim returns the named claim of the token.
func (c *Claims) Claim(name string) (any, bool) {
	v, ok := c.claims[name]
	return v, ok
}
