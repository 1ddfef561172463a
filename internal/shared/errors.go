package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig        = fmt.Errorf("configuration not found")
	ErrInvalidConfig        = fmt.Errorf("invalid configuration")
	ErrConfigurationMissing = fmt.Errorf("clientId or clientSecret is missing")

	// Authorization flow errors
	ErrInvalidState   = fmt.Errorf("missing or invalid state parameter")
	ErrProviderDenied = fmt.Errorf("provider denied authorization")
	ErrExchangeFailed = fmt.Errorf("token exchange failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")
	ErrForbidden      = fmt.Errorf("account is not in the allowlist")

	// Token storage errors
	ErrNotLinked      = fmt.Errorf("account unlinked")
	ErrTokenNotFound  = fmt.Errorf("token not found")
	ErrInvalidToken   = fmt.Errorf("invalid token")
	ErrStateCollision = fmt.Errorf("state code already issued")

	// Provider API errors
	ErrRequestFailed      = fmt.Errorf("request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
