package login

import (
	"context"
	"fmt"

	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
)

// MakeSecretKit builds the raw-key login kit. Every login gets one at
// creation: loginAuth is the server-verified credential, and its box under
// the loginKey lets any holder of the loginKey re-derive it. This is the
// factor behind device-to-device key transfer and cross-device approval.
func MakeSecretKit(tree *models.Tree) (Kit, error) {
	loginAuth := common.GenerateRandByteArray(32)

	loginAuthBox, err := cryptox.Encrypt(loginAuth, tree.LoginKey)
	if err != nil {
		return Kit{}, err
	}

	return Kit{
		LoginID:    tree.LoginID,
		ServerPath: "/v2/login/secret",
		Server: ServerPatch{
			LoginAuth:    loginAuth,
			LoginAuthBox: loginAuthBox,
		},
		Stash: StashPatch{
			LoginAuthBox: loginAuthBox,
		},
		Login: TreePatch{
			LoginAuth: loginAuth,
		},
	}, nil
}

// LoginSecret authenticates with a raw loginKey, typically obtained from
// another device. The cached stash must already know this account, since the
// loginAuth proof comes from opening the stash's loginAuth box.
func (c *Core) LoginSecret(ctx context.Context, username string, loginKey []byte) (*models.Tree, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return nil, err
	}

	stash, err := c.store.Get(ctx, fixed)
	if err != nil {
		return nil, err
	}
	if stash.LoginAuthBox == nil {
		return nil, fmt.Errorf("no secret-key login data cached for %q", fixed)
	}

	loginAuth, err := cryptox.Decrypt(stash.LoginAuthBox, loginKey)
	if err != nil {
		return nil, err
	}

	req := authRequest{LoginID: stash.LoginID, LoginAuth: loginAuth}
	if stash.OtpKey != "" {
		req.Otp = currentTotp(stash.OtpKey)
	}

	payload, err := c.fetchLoginPayload(ctx, req)
	if err != nil {
		return nil, err
	}

	return c.realizeLogin(ctx, fixed, stash.UserID, payload, loginKey)
}
