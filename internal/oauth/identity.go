package oauth

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UnknownEmail is reported when an identity token carries no readable email.
const UnknownEmail = "<unknown>"

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// EmailFromIDToken reads the email claim from an OpenID Connect identity token.
//
// The signature is not checked: the token comes straight from the provider's token endpoint over TLS.
// Any malformed input yields [UnknownEmail].
func EmailFromIDToken(idToken string) string {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return UnknownEmail
	}

	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return UnknownEmail
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return UnknownEmail
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return UnknownEmail
	}
	return email
}
