package login

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
)

// pin2IDLabel is the fixed HMAC message that turns a pin2Key into its server
// lookup id.
var pin2IDLabel = []byte("pin2Id")

func pin2Proof(pin2Key []byte, pin string) (id, auth []byte) {
	return cryptox.HmacSha256(pin2Key, pin2IDLabel), cryptox.HmacSha256(pin2Key, []byte(pin))
}

// MakePin2Kit builds the kit that sets or changes a login's PIN. The random
// pin2Key lands in the stash in the clear; it is local verification data,
// worthless without the PIN. The server only ever sees HMAC outputs and
// boxes.
func MakePin2Kit(tree *models.Tree, pin string) (Kit, error) {
	if len(pin) < 4 {
		return Kit{}, fmt.Errorf("pin must be at least 4 digits")
	}

	pin2Key := common.GenerateRandByteArray(32)
	pin2ID, pin2Auth := pin2Proof(pin2Key, pin)

	pin2Box, err := cryptox.Encrypt(tree.LoginKey, pin2Key)
	if err != nil {
		return Kit{}, err
	}
	pin2TextBox, err := cryptox.Encrypt([]byte(pin), tree.LoginKey)
	if err != nil {
		return Kit{}, err
	}

	return Kit{
		LoginID:    tree.LoginID,
		ServerPath: "/v2/login/pin2",
		Server: ServerPatch{
			Pin2ID:      pin2ID,
			Pin2Auth:    pin2Auth,
			Pin2Box:     pin2Box,
			Pin2TextBox: pin2TextBox,
		},
		Stash: StashPatch{
			Pin2Key:     pin2Key,
			Pin2Box:     pin2Box,
			Pin2TextBox: pin2TextBox,
		},
		Login: TreePatch{
			Pin:     &pin,
			Pin2Key: pin2Key,
		},
	}, nil
}

// LoginPin2 authenticates with the locally cached pin2Key plus the supplied
// PIN. It only works on devices that have logged into this account before,
// since the pin2Key never leaves local storage.
func (c *Core) LoginPin2(ctx context.Context, username, pin string) (*models.Tree, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return nil, err
	}

	stash, err := c.store.Get(ctx, fixed)
	if err != nil {
		return nil, err
	}
	if stash.Pin2Key == nil {
		return nil, fmt.Errorf("pin login is not set up for %q on this device", fixed)
	}

	pin2ID, pin2Auth := pin2Proof(stash.Pin2Key, pin)
	req := authRequest{Pin2ID: pin2ID, Pin2Auth: pin2Auth}
	if stash.OtpKey != "" {
		req.Otp = currentTotp(stash.OtpKey)
	}

	payload, err := c.fetchLoginPayload(ctx, req)
	if err != nil {
		return nil, err
	}

	if payload.Pin2Box == nil {
		return nil, fmt.Errorf("login payload is missing the pin2 box")
	}
	loginKey, err := cryptox.Decrypt(payload.Pin2Box, stash.Pin2Key)
	if err != nil {
		return nil, err
	}

	return c.realizeLogin(ctx, fixed, stash.UserID, payload, loginKey)
}

// ChangePin replaces the PIN on an already-authenticated login.
func (c *Core) ChangePin(ctx context.Context, tree *models.Tree, pin string) error {
	kit, err := MakePin2Kit(tree, pin)
	if err != nil {
		return err
	}
	return c.applyKit(ctx, tree, kit)
}

// DisablePin removes PIN login from the account and this device.
func (c *Core) DisablePin(ctx context.Context, tree *models.Tree) error {
	kit := Kit{
		LoginID:      tree.LoginID,
		ServerPath:   "/v2/login/pin2",
		ServerMethod: http.MethodDelete,
		Stash:        StashPatch{ClearPin2: true},
		Login:        TreePatch{ClearPin2: true},
	}
	return c.applyKit(ctx, tree, kit)
}
