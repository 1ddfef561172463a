package oauth

import (
	"encoding/base64"
	"testing"
)

func TestEmailFromIDToken(t *testing.T) {
	segment := func(s string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(s))
	}
	header := segment(`{"alg":"RS256"}`)

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"Valid", header + "." + segment(`{"email":"me@example.com","sub":"1"}`) + ".sig", "me@example.com"},
		{"Padded Segment", header + "." + base64.URLEncoding.EncodeToString([]byte(`{"email":"a@b.com"}`)) + ".sig", "a@b.com"},
		{"No Email Claim", header + "." + segment(`{"sub":"1"}`) + ".sig", UnknownEmail},
		{"Email Not String", header + "." + segment(`{"email":42}`) + ".sig", UnknownEmail},
		{"Too Few Segments", header + "." + segment(`{"email":"x@y.z"}`), UnknownEmail},
		{"Bad Base64", header + ".***.sig", UnknownEmail},
		{"Bad JSON", header + "." + segment(`not json`) + ".sig", UnknownEmail},
		{"Empty", "", UnknownEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EmailFromIDToken(tt.token); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
