// Package auth provides bearer-token authentication middleware for HTTP servers.
//
// Tokens are HS256 JWTs whose subject is the caller's user id. Credential
// verification happens elsewhere; this package only trusts tokens signed
// with the shared secret.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MahdiBaghbani/busyday-go/internal/components/api"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/appctx"
	httpmw "github.com/MahdiBaghbani/busyday-go/internal/platform/http/middleware"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/logutil"
)

type contextKey string

const callerContextKey contextKey = "caller"

// ErrNoCaller is returned by CurrentUser for unauthenticated contexts.
var ErrNoCaller = errors.New("no authenticated caller")

// MinSecretLength is the minimum HS256 secret size in bytes.
const MinSecretLength = 32

// Config configures token verification.
type Config struct {
	Secret   string
	Issuer   string // optional; checked when set
	Audience string // optional; checked when set
	Leeway   time.Duration
}

// Verifier validates and mints caller tokens.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewVerifier returns a Verifier for cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: jwt secret must be at least %d bytes", MinSecretLength)
	}
	return &Verifier{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		leeway:   cfg.Leeway,
		now:      time.Now,
	}, nil
}

// Verify parses token and returns the caller id from its subject.
func (v *Verifier) Verify(token string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("auth: subject is not a user id")
	}
	return id, nil
}

// IssueToken mints a token for user valid for ttl.
func (v *Verifier) IssueToken(user uuid.UUID, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   user.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    v.issuer,
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// AuthGateConfig configures the auth gate middleware.
type AuthGateConfig struct {
	// RequireAuth returns true if the given path requires authentication.
	RequireAuth func(path string) bool

	// Log is the base logger for auth-related warnings.
	Log *slog.Logger

	// Verifier checks bearer tokens. When nil every token is rejected.
	Verifier *Verifier
}

// NewAuthGate returns a middleware that enforces bearer authentication.
// If RequireAuth returns false for the request path, the request passes through
// without token parsing or context enrichment.
func NewAuthGate(cfg AuthGateConfig) func(http.Handler) http.Handler {
	cfg.Log = logutil.NoopIfNil(cfg.Log)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearerToken(r)
			if token == "" {
				api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
				return
			}

			if cfg.Verifier == nil {
				api.WriteUnauthorized(w, api.ReasonUnauthenticated, "invalid token")
				return
			}

			caller, err := cfg.Verifier.Verify(token)
			if err != nil {
				appctx.LoggerOr(r.Context(), cfg.Log).Debug("bearer token rejected", "error", err)
				if errors.Is(err, jwt.ErrTokenExpired) {
					api.WriteUnauthorized(w, api.ReasonTokenExpired, "token has expired")
					return
				}
				api.WriteUnauthorized(w, api.ReasonUnauthenticated, "invalid token")
				return
			}

			ctx := WithCaller(r.Context(), caller)
			httpmw.SetUserID(ctx, caller.String())

			// Handler logger only; the access log picks user_id up via SetUserID.
			reqLogger := appctx.LoggerOr(ctx, cfg.Log).With("user_id", caller.String())
			ctx = appctx.WithLogger(ctx, reqLogger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithCaller stores the authenticated caller id in ctx.
func WithCaller(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, callerContextKey, id)
}

// CallerID returns the authenticated caller id from ctx.
func CallerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(callerContextKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// CurrentUser is CallerID in the resolver shape handlers take.
func CurrentUser(ctx context.Context) (uuid.UUID, error) {
	id, ok := CallerID(ctx)
	if !ok {
		return uuid.Nil, ErrNoCaller
	}
	return id, nil
}
