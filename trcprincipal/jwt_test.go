package trcprincipal_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sessiontrace/trc/trcprincipal"
	"github.com/sessiontrace/trc/trcuser"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newJWTSource(t *testing.T, cfg trcprincipal.JWTConfig) *trcprincipal.JWTSource {
	t.Helper()
	if cfg.Key == nil {
		cfg.Key = testKey
	}
	src, err := trcprincipal.NewJWTSource(cfg)
	if err != nil {
		t.Fatalf("NewJWTSource: %v", err)
	}
	return src
}

func TestJWTSourceForRequest(t *testing.T) {
	t.Parallel()

	src := newJWTSource(t, trcprincipal.JWTConfig{})
	token, err := src.Sign("alice", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	p, err := src.ForRequest(r).Principal(context.Background())
	if err != nil {
		t.Fatalf("Principal: %v", err)
	}
	if want, have := "alice", p.Name(); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
}

func TestJWTSourceCustomClaim(t *testing.T) {
	t.Parallel()

	src := newJWTSource(t, trcprincipal.JWTConfig{Claim: "email", Issuer: "trcdemo"})
	token, err := src.Sign("alice@example.com", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	c, err := src.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if want, have := "alice@example.com", c.Name(); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
	if iss, _ := c.Claim("iss"); iss != "trcdemo" {
		t.Errorf("iss: want %q, have %v", "trcdemo", iss)
	}
}

func TestJWTSourceFailures(t *testing.T) {
	t.Parallel()

	var (
		src        = newJWTSource(t, trcprincipal.JWTConfig{})
		other      = newJWTSource(t, trcprincipal.JWTConfig{Key: []byte("another key, also long enough...")})
		expired, _ = src.Sign("alice", -time.Minute)
		foreign, _ = other.Sign("alice", time.Minute)
		noSubject  = mustSign(t, jwt.MapClaims{"exp": jwt.NewNumericDate(time.Now().Add(time.Minute))})
	)

	for _, test := range []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic YWxpY2U6c2VjcmV0"},
		{"malformed", "Bearer not.a.token"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + foreign},
		{"no subject", "Bearer " + noSubject},
	} {
		t.Run(test.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if test.header != "" {
				r.Header.Set("Authorization", test.header)
			}

			p, err := src.ForRequest(r).Principal(context.Background())
			if !errors.Is(err, trcprincipal.ErrUnauthenticated) {
				t.Errorf("want %v, have %v", trcprincipal.ErrUnauthenticated, err)
			}
			if p != nil {
				t.Errorf("want nil principal, have %v", p)
			}
		})
	}
}

func TestJWTSourceGated(t *testing.T) {
	t.Parallel()

	var (
		src      = newJWTSource(t, trcprincipal.JWTConfig{})
		token, _ = src.Sign("alice", time.Minute)
		r        = httptest.NewRequest("GET", "/", nil)
		observed []string
	)
	r.Header.Set("Authorization", "Bearer "+token)

	gated := trcuser.Gate(src.ForRequest(r), func(name string) { observed = append(observed, name) })
	if _, err := gated.Principal(context.Background()); err != nil {
		t.Fatalf("Principal: %v", err)
	}
	if want, have := 1, len(observed); want != have {
		t.Fatalf("observed: want %d, have %d", want, have)
	}
	if want, have := "alice", observed[0]; want != have {
		t.Errorf("want %q, have %q", want, have)
	}
}

func TestStatic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	p, err := trcprincipal.Static("bob").Principal(ctx)
	if err != nil {
		t.Fatalf("Principal: %v", err)
	}
	if want, have := "bob", p.Name(); want != have {
		t.Errorf("want %q, have %q", want, have)
	}

	if _, err := trcprincipal.Static("").Principal(ctx); !errors.Is(err, trcprincipal.ErrUnauthenticated) {
		t.Errorf("want %v, have %v", trcprincipal.ErrUnauthenticated, err)
	}
}

func TestNewJWTSourceRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := trcprincipal.NewJWTSource(trcprincipal.JWTConfig{}); err == nil {
		t.Errorf("want error, have none")
	}
}

func mustSign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}
