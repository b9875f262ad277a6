package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"ms-payments/internal/logger"
)

type contextKey string

const subjectKey contextKey = "subject"

// revokedKeyPrefix namespaces revoked token ids in redis.
const revokedKeyPrefix = "admin_token_revoked:"

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks admin bearer tokens: HS256 signature, expiry, role claim,
// and (when redis is available) a revocation list keyed by token id.
type Verifier struct {
	secret []byte
	redis  *redis.Client
	logger *logger.Logger
}

func NewVerifier(secret string, redisClient *redis.Client, log *logger.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), redis: redisClient, logger: log}
}

func (v *Verifier) verify(ctx context.Context, rawToken string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Role != "admin" {
		return nil, fmt.Errorf("role %q is not allowed", claims.Role)
	}

	if v.redis != nil && claims.ID != "" {
		revoked, err := v.redis.Exists(ctx, revokedKeyPrefix+claims.ID).Result()
		if err != nil {
			// Redis being down must not lock admins out
			v.logger.Warn("AUTH", fmt.Sprintf("revocation check failed: %v", err))
		} else if revoked > 0 {
			return nil, fmt.Errorf("token has been revoked")
		}
	}
	return claims, nil
}

// Middleware guards the admin surface.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(v.secret) == 0 {
			http.Error(w, "admin API is not configured", http.StatusServiceUnavailable)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := v.verify(r.Context(), parts[1])
		if err != nil {
			v.logger.LogSecurity("ADMIN_AUTH_REJECTED", err.Error())
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Subject returns the authenticated admin identity, if any.
func Subject(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey).(string)
	return subject
}
