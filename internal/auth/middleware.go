// Package auth authenticates API callers and resolves their tenant.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

var ErrMissingClientToken = errors.New("token has no client_token claim")

// Claims carries the tenant as client_token. Subject is the client's login.
type Claims struct {
	ClientToken string `json:"client_token"`
	jwt.RegisteredClaims
}

// ActiveChecker reports whether a tenant may use the API.
type ActiveChecker interface {
	IsActive(ctx context.Context, id tenant.ID) (bool, error)
}

type JWTMiddleware struct {
	secret  []byte
	clients ActiveChecker
	logger  *slog.Logger
}

// NewJWTMiddleware verifies HMAC-signed bearer tokens. clients may be nil,
// in which case a valid signature is enough.
func NewJWTMiddleware(secret string, clients ActiveChecker, logger *slog.Logger) *JWTMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTMiddleware{
		secret:  []byte(secret),
		clients: clients,
		logger:  logger,
	}
}

func (m *JWTMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		id, err := m.Verify(tokenStr)
		if err != nil {
			m.logger.Debug("rejected token", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := r.Context()
		if m.clients != nil {
			active, err := m.clients.IsActive(ctx, id)
			if err != nil {
				m.logger.Error("client lookup failed", "tenant_id", id, "error", err)
				writeError(w, http.StatusServiceUnavailable, "authentication temporarily unavailable")
				return
			}
			if !active {
				writeError(w, http.StatusUnauthorized, "client not found or inactive")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithID(ctx, id)))
	})
}

// Verify checks the signature and expiry of tokenStr and returns its tenant.
func (m *JWTMiddleware) Verify(tokenStr string) (tenant.ID, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return tenant.ID{}, fmt.Errorf("parse token: %w", err)
	}

	if claims.ClientToken == "" {
		return tenant.ID{}, ErrMissingClientToken
	}
	return tenant.Parse(claims.ClientToken)
}

// IssueToken signs a token for id, valid for ttl.
func IssueToken(secret string, id tenant.ID, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ClientToken: id.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
