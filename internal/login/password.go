package login

import (
	"context"
	"fmt"

	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
)

// passwordProof derives the two password secrets: passwordAuth, proven to
// the server, and passwordKey, which opens the password box locally. The
// plaintext password never leaves this function.
func passwordProof(ctx context.Context, username, password string, authSnrp, keySnrp cryptox.SNRP) (auth, key []byte, err error) {
	data := []byte(username + password)
	if auth, err = cryptox.Stretch(ctx, data, authSnrp); err != nil {
		return nil, nil, err
	}
	if key, err = cryptox.Stretch(ctx, data, keySnrp); err != nil {
		return nil, nil, err
	}
	return auth, key, nil
}

// MakePasswordKit builds the kit that sets or rotates a login's password.
// The auth SNRP stays pinned to the well-known user-id parameters so a fresh
// device can derive the proof without a pre-flight fetch; the key SNRP is
// regenerated on every rotation.
func MakePasswordKit(ctx context.Context, tree *models.Tree, username, password string) (Kit, error) {
	if password == "" {
		return Kit{}, fmt.Errorf("password must not be empty")
	}
	authSnrp := cryptox.UserIDSNRP()
	keySnrp := cryptox.NewSNRP()

	passwordAuth, passwordKey, err := passwordProof(ctx, username, password, authSnrp, keySnrp)
	if err != nil {
		return Kit{}, err
	}

	passwordBox, err := cryptox.Encrypt(tree.LoginKey, passwordKey)
	if err != nil {
		return Kit{}, err
	}
	passwordAuthBox, err := cryptox.Encrypt(passwordAuth, tree.LoginKey)
	if err != nil {
		return Kit{}, err
	}

	return Kit{
		LoginID:    tree.LoginID,
		ServerPath: "/v2/login/password",
		Server: ServerPatch{
			PasswordAuth:     passwordAuth,
			PasswordAuthBox:  passwordAuthBox,
			PasswordAuthSnrp: &authSnrp,
			PasswordBox:      passwordBox,
			PasswordKeySnrp:  &keySnrp,
		},
		Stash: StashPatch{
			PasswordAuthBox:  passwordAuthBox,
			PasswordAuthSnrp: &authSnrp,
			PasswordBox:      passwordBox,
			PasswordKeySnrp:  &keySnrp,
		},
		Login: TreePatch{
			PasswordAuth: passwordAuth,
		},
	}, nil
}

// LoginPassword authenticates with username+password and returns the
// decrypted login tree. A wrong password surfaces as *api.PasswordError,
// possibly carrying a lockout wait; a missing second factor surfaces as
// *api.OtpError.
func (c *Core) LoginPassword(ctx context.Context, username, password string) (*models.Tree, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return nil, err
	}

	userID, err := c.hashes.HashUsername(ctx, fixed)
	if err != nil {
		return nil, err
	}

	stash, err := c.store.Get(ctx, fixed)
	if err != nil {
		return nil, err
	}
	authSnrp := cryptox.UserIDSNRP()
	if stash.PasswordAuthSnrp != nil {
		authSnrp = *stash.PasswordAuthSnrp
	}

	passwordAuth, err := cryptox.Stretch(ctx, []byte(fixed+password), authSnrp)
	if err != nil {
		return nil, err
	}

	req := authRequest{UserID: userID, PasswordAuth: passwordAuth}
	if stash.OtpKey != "" {
		req.Otp = currentTotp(stash.OtpKey)
	}

	payload, err := c.fetchLoginPayload(ctx, req)
	if err != nil {
		return nil, err
	}

	if payload.PasswordBox == nil || payload.PasswordKeySnrp == nil {
		return nil, fmt.Errorf("login payload is missing the password box")
	}
	passwordKey, err := cryptox.Stretch(ctx, []byte(fixed+password), *payload.PasswordKeySnrp)
	if err != nil {
		return nil, err
	}
	loginKey, err := cryptox.Decrypt(payload.PasswordBox, passwordKey)
	if err != nil {
		return nil, err
	}

	return c.realizeLogin(ctx, fixed, userID, payload, loginKey)
}

// ChangePassword rotates the password on an already-authenticated login.
func (c *Core) ChangePassword(ctx context.Context, tree *models.Tree, password string) error {
	kit, err := MakePasswordKit(ctx, tree, tree.Username, password)
	if err != nil {
		return err
	}
	return c.applyKit(ctx, tree, kit)
}
