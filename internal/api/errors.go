// Package api implements the AuthClient: the authenticated JSON
// request/response cycle against the remote auth service, including the
// typed error taxonomy the credential protocols branch on.
package api

import (
	"fmt"
	"time"
)

// UsernameError reports that no account matched the supplied username or
// user id. CreateLogin's availability probe reinterprets it as "available".
type UsernameError struct {
	Username string
}

func (e *UsernameError) Error() string {
	if e.Username == "" {
		return "username not found"
	}
	return fmt.Sprintf("username %q not found", e.Username)
}

// PasswordError reports a rejected password proof. Wait is the lockout time
// in seconds the server asked the client to observe, or 0 if none.
type PasswordError struct {
	Wait int
}

func (e *PasswordError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("invalid password, try again in %d seconds", e.Wait)
	}
	return "invalid password"
}

// OtpReason says which second factor gate fired.
type OtpReason string

const (
	// OtpReasonOtp means a 6-digit TOTP token is required.
	OtpReasonOtp OtpReason = "otp"
	// OtpReasonIP means the login came from an unrecognized device or
	// address and needs a voucher approval.
	OtpReasonIP OtpReason = "ip"
)

// OtpError reports that the primary factor succeeded but the second factor
// gate blocked the login. It carries what the caller needs to start a reset
// or to display a pending voucher.
type OtpError struct {
	Reason           OtpReason
	ResetToken       string
	ResetDate        *time.Time
	VoucherID        string
	VoucherActivates *time.Time
}

func (e *OtpError) Error() string {
	if e.Reason == OtpReasonIP {
		return "login blocked pending device approval"
	}
	return "one-time token required"
}

// NetworkError reports that the transport could not reach the auth service.
// Callers may retry.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("cannot reach auth server: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ObsoleteApiError reports that the server requires a newer protocol
// version. Fatal; retrying cannot help.
type ObsoleteApiError struct {
	Message string
}

func (e *ObsoleteApiError) Error() string {
	if e.Message == "" {
		return "the auth API is obsolete, please upgrade"
	}
	return e.Message
}
