package birbank

import "fmt"

// The API surfaces four distinct failure classes. They are typed so callers
// can branch with errors.As: auth failures force a re-login, firewall
// rejections get a header refresh, and server/network faults are transient.

// AuthError means the API rejected the credentials or the bearer token (401).
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication rejected (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("authentication rejected (%d)", e.Status)
}

// ForbiddenError means the request was blocked before reaching the API,
// typically by a WAF that disliked the request fingerprint (403). Distinct
// from AuthError: re-login does not help, a header refresh might.
type ForbiddenError struct {
	Status int
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("request blocked by firewall (%d)", e.Status)
}

// ServerError covers 5xx responses and documented apiException payloads.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bank error (%d) %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("bank error (%d)", e.Status)
}

// NetworkError wraps connect/read timeouts and DNS failures.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
