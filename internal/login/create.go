package login

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mkarpov/keystash/internal/api"
	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
)

// CreateOpts selects the credentials a brand-new account starts with. The
// secret-key factor is always installed; everything here is optional.
type CreateOpts struct {
	Password string
	Pin      string
	KeyInfo  *models.KeyInfo
}

// CreateLogin registers a new account with the auth server and returns its
// decrypted login tree. The root login id is the hashed username, the
// loginKey is freshly random, and every requested credential is created in a
// single server round trip so a half-registered account cannot exist.
func (c *Core) CreateLogin(ctx context.Context, username string, opts CreateOpts) (*models.Tree, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return nil, err
	}
	userID, err := c.hashes.HashUsername(ctx, fixed)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tree := &models.Tree{
		AppID:     c.appID,
		LoginID:   userID,
		LoginKey:  common.GenerateRandByteArray(32),
		Username:  fixed,
		UserID:    userID,
		LastLogin: now,
	}

	var kits []Kit
	if opts.KeyInfo != nil {
		kit, err := MakeKeysKit(tree, *opts.KeyInfo)
		if err != nil {
			return nil, err
		}
		kits = append(kits, kit)
	}
	if opts.Password != "" {
		kit, err := MakePasswordKit(ctx, tree, fixed, opts.Password)
		if err != nil {
			return nil, err
		}
		kits = append(kits, kit)
	}
	if opts.Pin != "" {
		kit, err := MakePin2Kit(tree, opts.Pin)
		if err != nil {
			return nil, err
		}
		kits = append(kits, kit)
	}
	secretKit, err := MakeSecretKit(tree)
	if err != nil {
		return nil, err
	}
	kits = append(kits, secretKit)

	merged, err := MergeKits(kits...)
	if err != nil {
		return nil, err
	}
	merged.Server.AppID = &c.appID
	merged.Server.LoginID = tree.LoginID

	req := authRequest{UserID: userID, Data: merged.Server}
	if err := c.client.Request(ctx, http.MethodPost, "/v2/login/create", req, nil); err != nil {
		return nil, err
	}

	// The server accepted; materialize the same state locally.
	stash := &models.Stash{
		AppID:     c.appID,
		LoginID:   tree.LoginID,
		Username:  fixed,
		UserID:    userID,
		LastLogin: now,
	}
	merged.Stash.ApplyTo(stash)
	merged.Login.ApplyTo(tree)

	if err := c.store.Save(ctx, stash); err != nil {
		return nil, err
	}

	c.log.Info(ctx, "account created", "username", fixed)
	return tree, nil
}

// CreateChildLogin grafts a sub-identity for another application id onto an
// authenticated login. The child gets its own random login id and loginKey;
// the parentBox chains the child's loginKey under the parent's, so reaching
// the parent always reaches the child.
func (c *Core) CreateChildLogin(ctx context.Context, parent *models.Tree, appID string) (*models.Tree, error) {
	child := &models.Tree{
		AppID:    appID,
		LoginID:  common.GenerateRandByteArray(32),
		LoginKey: common.GenerateRandByteArray(32),
		Username: parent.Username,
		UserID:   parent.UserID,
	}

	parentBox, err := cryptox.Encrypt(child.LoginKey, parent.LoginKey)
	if err != nil {
		return nil, err
	}

	secretKit, err := MakeSecretKit(child)
	if err != nil {
		return nil, err
	}
	merged, err := MergeKits(secretKit)
	if err != nil {
		return nil, err
	}
	merged.Server.AppID = &appID
	merged.Server.LoginID = child.LoginID
	merged.Server.ParentBox = parentBox

	req, err := makeAuth(parent)
	if err != nil {
		return nil, err
	}
	req.Data = merged.Server

	if err := c.client.Request(ctx, http.MethodPost, "/v2/login/create", req, nil); err != nil {
		return nil, err
	}

	childStash := &models.Stash{
		AppID:     appID,
		LoginID:   child.LoginID,
		ParentBox: parentBox,
	}
	merged.Stash.ApplyTo(childStash)
	merged.Login.ApplyTo(child)

	err = c.store.UpdateByID(ctx, parent.LoginID, func(parentNode, _ *models.Stash) error {
		parentNode.Children = append(parentNode.Children, childStash)
		return nil
	})
	if err != nil {
		return nil, err
	}

	parent.Children = append(parent.Children, child)

	c.log.Info(ctx, "child login created", "appId", appID)
	return child, nil
}

// UsernameAvailable probes whether a username is free to register. The check
// is a login attempt with no proof: an unknown-account reply means free, and
// any successful or password-rejected reply means taken.
func (c *Core) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return false, err
	}
	userID, err := c.hashes.HashUsername(ctx, fixed)
	if err != nil {
		return false, err
	}

	req := authRequest{UserID: userID}
	err = c.client.Request(ctx, http.MethodPost, "/v2/login", req, nil)
	var usernameErr *api.UsernameError
	switch {
	case errors.As(err, &usernameErr):
		return true, nil
	case err == nil:
		return false, nil
	default:
		var passwordErr *api.PasswordError
		if errors.As(err, &passwordErr) {
			return false, nil
		}
		return false, err
	}
}
