package login

import (
	"encoding/json"
	"fmt"

	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
)

// makeLoginTree decrypts a stash into a login tree using the root loginKey.
// Child keys come from each child's parentBox, so the whole hierarchy opens
// from the one root secret. A box that fails to decrypt aborts the load;
// nothing is silently defaulted.
func makeLoginTree(stash *models.Stash, loginKey []byte) (*models.Tree, error) {
	tree := &models.Tree{
		AppID:     stash.AppID,
		LoginID:   stash.LoginID,
		LoginKey:  loginKey,
		Username:  stash.Username,
		UserID:    stash.UserID,
		LastLogin: stash.LastLogin,

		Pin2Key:      stash.Pin2Key,
		Recovery2Key: stash.Recovery2Key,

		OtpKey:       stash.OtpKey,
		OtpResetDate: stash.OtpResetDate,
		OtpTimeout:   stash.OtpTimeout,

		PendingVouchers: stash.PendingVouchers,
	}

	if stash.LoginAuthBox != nil {
		loginAuth, err := cryptox.Decrypt(stash.LoginAuthBox, loginKey)
		if err != nil {
			return nil, fmt.Errorf("login %x: loginAuth box: %w", stash.LoginID, err)
		}
		tree.LoginAuth = loginAuth
	}

	if stash.PasswordAuthBox != nil {
		passwordAuth, err := cryptox.Decrypt(stash.PasswordAuthBox, loginKey)
		if err != nil {
			return nil, fmt.Errorf("login %x: passwordAuth box: %w", stash.LoginID, err)
		}
		tree.PasswordAuth = passwordAuth
	}

	if stash.Pin2TextBox != nil {
		pin, err := cryptox.Decrypt(stash.Pin2TextBox, loginKey)
		if err != nil {
			return nil, fmt.Errorf("login %x: pin text box: %w", stash.LoginID, err)
		}
		tree.Pin = string(pin)
	}

	for i := range stash.KeyBoxes {
		raw, err := cryptox.Decrypt(&stash.KeyBoxes[i], loginKey)
		if err != nil {
			return nil, fmt.Errorf("login %x: key box %d: %w", stash.LoginID, i, err)
		}
		var info models.KeyInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("login %x: key box %d: %w", stash.LoginID, i, err)
		}
		tree.KeyInfos = append(tree.KeyInfos, info)
	}

	for _, child := range stash.Children {
		if child.ParentBox == nil {
			return nil, fmt.Errorf("child login %x has no parent box", child.LoginID)
		}
		childKey, err := cryptox.Decrypt(child.ParentBox, loginKey)
		if err != nil {
			return nil, fmt.Errorf("child login %x: parent box: %w", child.LoginID, err)
		}
		childTree, err := makeLoginTree(child, childKey)
		if err != nil {
			return nil, err
		}
		tree.Children = append(tree.Children, childTree)
	}

	return tree, nil
}
