package api

import "context"

// AuthClient performs one authenticated request/response cycle against the
// auth service. Implementations own timeouts, retries, and cancellation; the
// login core never retries on its own.
//
// On success the response payload is unmarshaled into out (which may be nil
// when the caller only needs the status). On failure the error is one of the
// typed errors in this package, or an untyped error for malformed payloads.
type AuthClient interface {
	Request(ctx context.Context, method, path string, body, out any) error
}
