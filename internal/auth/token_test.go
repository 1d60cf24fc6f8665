package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestExpiredBoundary(t *testing.T) {
	const exp = int64(1_760_000_000)
	token := signedToken(t, jwt.MapClaims{"exp": exp})

	cases := []struct {
		name    string
		nowMs   int64
		expired bool
	}{
		{name: "well_before", nowMs: (exp - 3600) * 1000, expired: false},
		{name: "one_ms_before", nowMs: exp*1000 - 1, expired: false},
		{name: "exactly_at_exp", nowMs: exp * 1000, expired: false},
		{name: "one_ms_after", nowMs: exp*1000 + 1, expired: true},
		{name: "long_after", nowMs: (exp + 86400) * 1000, expired: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Expired(token, time.UnixMilli(tc.nowMs)); got != tc.expired {
				t.Fatalf("expected expired=%t at %d, got %t", tc.expired, tc.nowMs, got)
			}
		})
	}
}

func TestExpiredAcrossExpiries(t *testing.T) {
	for _, exp := range []int64{0, 1, 946_684_800, 1_700_000_000, 4_102_444_800} {
		token := signedToken(t, jwt.MapClaims{"exp": exp})
		for _, delta := range []int64{-1000, -1, 0, 1, 1000} {
			nowMs := exp*1000 + delta
			want := nowMs > exp*1000
			if got := Expired(token, time.UnixMilli(nowMs)); got != want {
				t.Fatalf("exp=%d now=%d: expected %t, got %t", exp, nowMs, want, got)
			}
		}
	}
}

func TestUndecodableTokensAreExpired(t *testing.T) {
	now := time.Unix(1_000, 0)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	cases := map[string]string{
		"empty":            "",
		"not_a_jwt":        "opaque-token",
		"bad_payload":      header + ".%%%." + "sig",
		"payload_not_json": header + "." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".sig",
		"missing_exp":      signedToken(t, jwt.MapClaims{"sub": "user"}),
		"string_exp":       header + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":"soon"}`)) + ".sig",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if !Expired(token, now) {
				t.Fatalf("expected %q to be treated as expired", token)
			}
		})
	}
}

func TestExpiryMillisHandcraftedPayload(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1700000000}`))
	got, err := ExpiryMillis(header + "." + payload + ".signature-is-not-checked")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != 1_700_000_000_000 {
		t.Fatalf("unexpected expiry: %v", got)
	}
}

func TestExpiryMillisIgnoresHeader(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1700000000}`))
	headers := map[string]string{
		"no_alg":        base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT"}`)),
		"unknown_alg":   base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"XY999"}`)),
		"garbage":       "%%%",
		"empty_segment": "",
	}
	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			token := header + "." + payload + ".sig"
			got, err := ExpiryMillis(token)
			if err != nil || got != 1_700_000_000_000 {
				t.Fatalf("expected exp decoded from payload, got %v (%v)", got, err)
			}
			if Expired(token, time.Unix(1_699_999_999, 0)) {
				t.Fatalf("token with valid payload should not be expired")
			}
		})
	}
}
