package login

import (
	"context"
	"net/http"
	"time"

	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
)

func currentTotp(otpKey string) string {
	return cryptox.TotpCode(otpKey, time.Now())
}

// otpResetRequest asks the server to schedule a 2FA removal.
type otpResetRequest struct {
	UserID     []byte `json:"userId"`
	ResetToken string `json:"otpResetAuth"`
}

type otpResetPayload struct {
	ResetDate time.Time `json:"otpResetDate"`
}

// MakeOtpKit builds the kit that turns on the TOTP gate. The timeout is the
// grace period, in seconds, the server waits before honoring a reset.
func MakeOtpKit(tree *models.Tree, timeout int) Kit {
	otpKey := tree.OtpKey
	if otpKey == "" {
		otpKey = cryptox.NewOtpKey()
	}
	return Kit{
		LoginID:    tree.LoginID,
		ServerPath: "/v2/login/otp",
		Server: ServerPatch{
			OtpKey:     &otpKey,
			OtpTimeout: &timeout,
		},
		Stash: StashPatch{
			OtpKey:     &otpKey,
			OtpTimeout: &timeout,
		},
		Login: TreePatch{
			OtpKey:     &otpKey,
			OtpTimeout: &timeout,
		},
	}
}

// EnableOtp turns on the TOTP second factor for an authenticated login and
// returns the base32 secret to show the user.
func (c *Core) EnableOtp(ctx context.Context, tree *models.Tree, timeout int) (string, error) {
	kit := MakeOtpKit(tree, timeout)
	if err := c.applyKit(ctx, tree, kit); err != nil {
		return "", err
	}
	return tree.OtpKey, nil
}

// DisableOtp removes the TOTP gate.
func (c *Core) DisableOtp(ctx context.Context, tree *models.Tree) error {
	kit := Kit{
		LoginID:      tree.LoginID,
		ServerPath:   "/v2/login/otp",
		ServerMethod: http.MethodDelete,
		Stash:        StashPatch{ClearOtp: true},
		Login:        TreePatch{ClearOtp: true},
	}
	return c.applyKit(ctx, tree, kit)
}

// RequestOtpReset starts the asynchronous 2FA removal for a user locked out
// of their second factor. The reset token comes from the OtpError the failed
// login surfaced. The server answers with the date the reset will take
// effect, which is cached on the stash so the UI can show the countdown.
func (c *Core) RequestOtpReset(ctx context.Context, username, resetToken string) (time.Time, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return time.Time{}, err
	}
	userID, err := c.hashes.HashUsername(ctx, fixed)
	if err != nil {
		return time.Time{}, err
	}

	var payload otpResetPayload
	req := otpResetRequest{UserID: userID, ResetToken: resetToken}
	if err := c.client.Request(ctx, http.MethodPost, "/v2/login/otp/reset", req, &payload); err != nil {
		return time.Time{}, err
	}

	stash, err := c.store.Get(ctx, fixed)
	if err != nil {
		return time.Time{}, err
	}
	if stash.LoginID != nil {
		stash.OtpResetDate = &payload.ResetDate
		if err := c.store.Save(ctx, stash); err != nil {
			return time.Time{}, err
		}
	}
	return payload.ResetDate, nil
}

// CancelOtpReset withdraws a pending 2FA removal, e.g. after the account
// owner recovers their authenticator.
func (c *Core) CancelOtpReset(ctx context.Context, tree *models.Tree) error {
	kit := Kit{
		LoginID:      tree.LoginID,
		ServerPath:   "/v2/login/otp/reset",
		ServerMethod: http.MethodDelete,
		Stash:        StashPatch{ClearOtpResetDate: true},
		Login:        TreePatch{ClearOtpResetDate: true},
	}
	return c.applyKit(ctx, tree, kit)
}
