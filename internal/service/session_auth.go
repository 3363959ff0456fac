package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/networth-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// SessionClaims are the claims read from a UI access token.
// UserID covers issuers that put the user id in "user_id" instead of "sub".
type SessionClaims struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	UserID any    `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// SessionAuth turns a bearer token into a domain.Session.
//
// With a secret, tokens must be HMAC-signed JWTs; subject, name and expiry
// come from the claims. Without one the token is opaque: it is forwarded to
// the Record Store as-is and the Record Store decides whether it is valid.
type SessionAuth struct {
	secret []byte
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionAuth creates an authenticator. An empty secret selects opaque tokens.
func NewSessionAuth(secret string, logger *zap.Logger) *SessionAuth {
	return &SessionAuth{
		secret: []byte(secret),
		logger: logger,
		now:    time.Now,
	}
}

// Verifies reports whether tokens are checked locally.
func (a *SessionAuth) Verifies() bool {
	return len(a.secret) > 0
}

// Authenticate validates token and builds the session it stands for.
func (a *SessionAuth) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	_, span := authTracer.Start(ctx, "SessionAuth.Authenticate")
	defer span.End()

	if token == "" {
		return domain.Session{}, &domain.ErrUnauthorized{Message: "missing bearer token"}
	}

	if !a.Verifies() {
		span.SetAttributes(attribute.Bool("auth.opaque", true))
		return domain.Session{Token: token}, nil
	}

	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		a.logger.Debug("auth: token rejected", zap.Error(err))
		return domain.Session{}, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return domain.Session{}, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	subject := claims.Subject
	if subject == "" && claims.UserID != nil {
		subject = fmt.Sprint(claims.UserID)
	}
	if subject == "" {
		return domain.Session{}, &domain.ErrUnauthorized{Message: "token has no subject"}
	}

	session := domain.Session{
		Token:   token,
		Subject: subject,
		Name:    claims.Name,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	span.SetAttributes(attribute.String("session.subject", subject))
	return session, nil
}

// IssueToken signs a session token for subject. Backs the -issue-token flag
// for local runs; production tokens come from the identity provider.
func (a *SessionAuth) IssueToken(subject, name string, ttl time.Duration) (string, error) {
	if !a.Verifies() {
		return "", fmt.Errorf("issue token: no signing secret configured")
	}
	now := a.now()
	claims := SessionClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "networth-bfa",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
