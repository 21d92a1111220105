package login

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mkarpov/keystash/internal/api"
	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/logging"
	"github.com/mkarpov/keystash/internal/models"
	"github.com/mkarpov/keystash/internal/repositories/stashes"
)

// Core owns everything the credential protocols need: the AuthClient, the
// stash repository, and the username-hash cache. One Core serves one
// application id; all methods are safe for concurrent use against different
// logins, but callers must serialize concurrent credential changes to the
// same login id themselves.
type Core struct {
	appID  string
	client api.AuthClient
	store  stashes.Repository
	log    logging.Logger
	hashes *HashCache
}

// NewCore wires a Core for the given application id.
func NewCore(appID string, client api.AuthClient, store stashes.Repository, log logging.Logger) *Core {
	return &Core{
		appID:  appID,
		client: client,
		store:  store,
		log:    log.With("component", "login"),
		hashes: NewHashCache(),
	}
}

// HashUsername returns the deterministic pseudonymous id for a username,
// memoized for the lifetime of this Core.
func (c *Core) HashUsername(ctx context.Context, username string) ([]byte, error) {
	return c.hashes.HashUsername(ctx, username)
}

// GetStash returns the cached stash for a username, or a blank default.
func (c *Core) GetStash(ctx context.Context, username string) (*models.Stash, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return nil, err
	}
	return c.store.Get(ctx, fixed)
}

// GetStashByID locates a login node and its containing root stash by login
// id across all cached stashes. Fails with common.ErrNotFound when absent.
func (c *Core) GetStashByID(ctx context.Context, loginID []byte) (*models.Stash, *models.Stash, error) {
	return c.store.GetByID(ctx, loginID)
}

// DeleteStash removes the locally cached account for a username.
func (c *Core) DeleteStash(ctx context.Context, username string) error {
	fixed, err := FixUsername(username)
	if err != nil {
		return err
	}
	return c.store.Delete(ctx, fixed)
}

// applyKit executes one merged kit: send the server fragment, then fold the
// stash fragment into the persisted stash and the login fragment into the
// in-memory tree. Nothing local changes until the server accepts the request.
func (c *Core) applyKit(ctx context.Context, tree *models.Tree, kit Kit) error {
	node := models.SearchTree(tree, kit.LoginID)
	if node == nil {
		return fmt.Errorf("%w: login %x is not part of this tree", common.ErrNotFound, kit.LoginID)
	}

	req, err := makeAuth(node)
	if err != nil {
		return err
	}
	req.Data = kit.Server

	method := kit.ServerMethod
	if method == "" {
		method = http.MethodPost
	}
	if err := c.client.Request(ctx, method, kit.ServerPath, req, nil); err != nil {
		return err
	}

	err = c.store.UpdateByID(ctx, kit.LoginID, func(stashNode, _ *models.Stash) error {
		kit.Stash.ApplyTo(stashNode)
		return nil
	})
	if err != nil {
		return err
	}

	kit.Login.ApplyTo(node)

	c.log.Debug(ctx, "kit applied", "path", kit.ServerPath, "loginId", fmt.Sprintf("%x", kit.LoginID))
	return nil
}

// fetchLoginPayload performs the shared /v2/login exchange: send one set of
// proof fields, receive the server's copy of the stash.
func (c *Core) fetchLoginPayload(ctx context.Context, req authRequest) (*models.Stash, error) {
	var payload models.Stash
	if err := c.client.Request(ctx, http.MethodPost, "/v2/login", req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// realizeLogin adopts a server login payload: graft the local-only secrets
// the server never sees onto the server's copy, stamp identity fields,
// persist, and decrypt the result into a login tree.
func (c *Core) realizeLogin(ctx context.Context, username string, userID []byte, payload *models.Stash, loginKey []byte) (*models.Tree, error) {
	local, err := c.store.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	stash := payload
	stash.Username = username
	stash.UserID = userID
	stash.LastLogin = time.Now().UTC()
	if stash.Pin2Key == nil {
		stash.Pin2Key = local.Pin2Key
	}
	if stash.Recovery2Key == nil {
		stash.Recovery2Key = local.Recovery2Key
	}

	tree, err := makeLoginTree(stash, loginKey)
	if err != nil {
		return nil, err
	}

	if err := c.store.Save(ctx, stash); err != nil {
		return nil, err
	}

	c.log.Info(ctx, "login succeeded", "username", username, "vouchers", len(stash.PendingVouchers))
	return tree, nil
}
