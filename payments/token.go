package payments

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Correlation tokens ride inside outbound payment links and come back untouched in
// provider callbacks. They are the only way a webhook is tied to a workspace and
// booking; webhooks carry no session. Signed HS256 with PAYMENT_TOKEN_SECRET
// (falls back to JWT_SECRET), long-lived because provider retries can arrive days
// after link creation.

const correlationTokenTTL = 14 * 24 * time.Hour

func tokenSecret() (string, error) {
	if s := os.Getenv("PAYMENT_TOKEN_SECRET"); s != "" {
		return s, nil
	}
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return s, nil
	}
	return "", errors.New("PAYMENT_TOKEN_SECRET is not set")
}

// NewCorrelationToken signs a token binding workspace, booking and the merchant
// reference of the transaction being created.
func NewCorrelationToken(workspaceID, bookingID uint, reference string) (string, error) {
	secret, err := tokenSecret()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"wid": workspaceID,
		"bid": bookingID,
		"ref": reference,
		"iat": now.Unix(),
		"exp": now.Add(correlationTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseCorrelationToken validates the signature and returns the embedded workspace
// and booking ids.
func ParseCorrelationToken(tokenStr string) (workspaceID, bookingID uint, err error) {
	secret, err := tokenSecret()
	if err != nil {
		return 0, 0, err
	}
	token, err := jwt.ParseWithClaims(tokenStr, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, 0, errors.New("invalid correlation token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, 0, errors.New("invalid correlation token claims")
	}
	wid, ok := claimUint(claims, "wid")
	if !ok {
		return 0, 0, fmt.Errorf("correlation token missing workspace")
	}
	bid, _ := claimUint(claims, "bid")
	return wid, bid, nil
}

func claimUint(claims jwt.MapClaims, key string) (uint, bool) {
	raw, ok := claims[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return uint(v), true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	default:
		return 0, false
	}
}
