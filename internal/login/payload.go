package login

import (
	"fmt"
	"time"

	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
)

// authRequest is the body of every authenticated call: one set of proof
// fields plus an optional data fragment describing the change.
type authRequest struct {
	UserID       []byte `json:"userId,omitempty"`
	PasswordAuth []byte `json:"passwordAuth,omitempty"`

	Pin2ID   []byte `json:"pin2Id,omitempty"`
	Pin2Auth []byte `json:"pin2Auth,omitempty"`

	Recovery2ID   []byte   `json:"recovery2Id,omitempty"`
	Recovery2Auth [][]byte `json:"recovery2Auth,omitempty"`

	LoginID   []byte `json:"loginId,omitempty"`
	LoginAuth []byte `json:"loginAuth,omitempty"`

	Otp string `json:"otp,omitempty"`

	Data any `json:"data,omitempty"`
}

// makeAuth assembles proof fields for a tree node the caller is already
// logged into. Secret-key auth is preferred since every login carries it;
// password auth is the fallback. The OTP token is attached automatically
// when the login has a TOTP key.
func makeAuth(tree *models.Tree) (authRequest, error) {
	req := authRequest{}
	switch {
	case tree.LoginAuth != nil:
		req.LoginID = tree.LoginID
		req.LoginAuth = tree.LoginAuth
	case tree.PasswordAuth != nil && tree.UserID != nil:
		req.UserID = tree.UserID
		req.PasswordAuth = tree.PasswordAuth
	default:
		return authRequest{}, fmt.Errorf("login has no proof material to authenticate with")
	}
	if tree.OtpKey != "" {
		req.Otp = cryptox.TotpCode(tree.OtpKey, time.Now())
	}
	return req, nil
}
