package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/ctxutil"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

const defaultOperatorTokenTTL = 24 * time.Hour

type OperatorClaims struct {
	jwt.RegisteredClaims
}

// OperatorAuth issues and verifies the HS256 tokens that guard operator
// endpoints. The subject is the operator's email.
type OperatorAuth interface {
	Enabled() bool
	Issue(email string, ttl time.Duration) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type operatorAuth struct {
	log    *logger.Logger
	secret []byte
	now    func() time.Time
}

func NewOperatorAuth(log *logger.Logger, secret string) OperatorAuth {
	return &operatorAuth{
		log:    log.With("service", "OperatorAuth"),
		secret: []byte(strings.TrimSpace(secret)),
		now:    time.Now,
	}
}

func (a *operatorAuth) Enabled() bool { return len(a.secret) > 0 }

func (a *operatorAuth) Issue(email string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", apierr.Wrap(apierr.ErrConfig, "JWT_SECRET_KEY not configured")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apierr.Wrap(apierr.ErrInvalidArgument, "operator email required")
	}
	if ttl <= 0 {
		ttl = defaultOperatorTokenTTL
	}
	now := a.now()
	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *operatorAuth) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if !a.Enabled() {
		return ctx, apierr.Wrap(apierr.ErrConfig, "JWT_SECRET_KEY not configured")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return ctx, apierr.Wrap(apierr.ErrUnauthorized, "failed to parse token: %v", err)
	}
	claims, ok := parsed.Claims.(*OperatorClaims)
	if !ok || !parsed.Valid {
		return ctx, apierr.Wrap(apierr.ErrUnauthorized, "invalid or expired token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ctx, apierr.Wrap(apierr.ErrUnauthorized, "token has no subject")
	}
	return ctxutil.WithCaller(ctx, &ctxutil.Caller{Email: claims.Subject}), nil
}

