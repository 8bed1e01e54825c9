package utils

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Access tokens are minted by the surrounding application's auth service; this
// service only validates them and reads the workspace scope.

type contextKey string

const WorkspaceIDKey = contextKey("workspaceID")
const RequestIDKey = contextKey("requestID")

// ValidateAccessToken parses and validates an access token: HS256 only, exp/nbf,
// optional aud/iss pinning, and a Redis jti revocation check when configured.
func ValidateAccessToken(tokenStr string) (jwt.MapClaims, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	token, err := jwt.ParseWithClaims(tokenStr, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		// Require exact HS256 to avoid algorithm confusion.
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	now := time.Now()
	if expRaw, ok := claims["exp"]; ok {
		if v, ok := expRaw.(float64); ok && now.Unix() > int64(v) {
			return nil, errors.New("token expired")
		}
	}
	if nbfRaw, ok := claims["nbf"]; ok {
		if v, ok := nbfRaw.(float64); ok && now.Unix() < int64(v) {
			return nil, errors.New("token not yet valid")
		}
	}
	if audEnv := os.Getenv("JWT_AUD"); audEnv != "" {
		if aud, _ := claims["aud"].(string); aud != audEnv {
			return nil, errors.New("invalid audience")
		}
	}
	if issEnv := os.Getenv("JWT_ISS"); issEnv != "" {
		if iss, _ := claims["iss"].(string); iss != issEnv {
			return nil, errors.New("invalid issuer")
		}
	}

	// jti revocation: Redis blacklist when available; ignore store errors so an
	// outage does not take authentication down with it.
	if jti, ok := claims["jti"].(string); ok && jti != "" && RedisClient != nil {
		res, err := RedisClient.Get(context.Background(), "jwt:blacklist:"+jti).Result()
		if err == nil && res == "1" {
			return nil, errors.New("token revoked")
		}
	}
	return claims, nil
}

// WorkspaceIDFromClaims reads the workspace scope claim.
func WorkspaceIDFromClaims(claims jwt.MapClaims) (uint, bool) {
	raw, ok := claims["wid"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return uint(v), true
	case int:
		return uint(v), true
	default:
		return 0, false
	}
}

// GetWorkspaceID returns the authenticated workspace from the request context.
func GetWorkspaceID(r *http.Request) (uint, bool) {
	v := r.Context().Value(WorkspaceIDKey)
	id, ok := v.(uint)
	return id, ok
}
