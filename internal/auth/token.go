package auth

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errNoExpiry  = errors.New("auth: token has no numeric exp claim")
	errNoPayload = errors.New("auth: token has no payload segment")
)

var unverified = jwt.NewParser(jwt.WithPaddingAllowed())

// ExpiryMillis decodes the payload of a header.payload.signature token and returns exp
// (epoch seconds) converted to milliseconds. The header and signature are not inspected.
func ExpiryMillis(token string) (float64, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return 0, errNoPayload
	}
	raw, err := unverified.DecodeSegment(parts[1])
	if err != nil {
		return 0, err
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return 0, err
	}
	exp, ok := claims["exp"].(float64)
	if !ok || math.IsNaN(exp) || math.IsInf(exp, 0) {
		return 0, errNoExpiry
	}
	return exp * 1000, nil
}

// Expired reports whether token must be replaced at now. Absent and undecodable
// tokens are expired.
func Expired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	exp, err := ExpiryMillis(token)
	if err != nil {
		return true
	}
	return float64(now.UnixMilli()) > exp
}
