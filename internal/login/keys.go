package login

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
)

// MakeKeysKit wraps wallet key attachments for a login. Each KeyInfo is
// serialized and boxed individually under the loginKey, so keys can be added
// over time without re-encrypting the existing set.
func MakeKeysKit(tree *models.Tree, keyInfos ...models.KeyInfo) (Kit, error) {
	if len(keyInfos) == 0 {
		return Kit{}, fmt.Errorf("keys kit needs at least one key")
	}

	boxes := make([]cryptox.Box, 0, len(keyInfos))
	for _, info := range keyInfos {
		if info.ID == "" || info.Type == "" {
			return Kit{}, fmt.Errorf("key info needs an id and a type")
		}
		raw, err := json.Marshal(info)
		if err != nil {
			return Kit{}, err
		}
		box, err := cryptox.Encrypt(raw, tree.LoginKey)
		if err != nil {
			return Kit{}, err
		}
		boxes = append(boxes, *box)
	}

	return Kit{
		LoginID:    tree.LoginID,
		ServerPath: "/v2/login/keys",
		Server: ServerPatch{
			KeyBoxes: boxes,
		},
		Stash: StashPatch{
			AddKeyBoxes: boxes,
		},
		Login: TreePatch{
			AddKeyInfos: keyInfos,
		},
	}, nil
}

// AttachKeys appends wallet keys to an authenticated login.
func (c *Core) AttachKeys(ctx context.Context, tree *models.Tree, keyInfos ...models.KeyInfo) error {
	kit, err := MakeKeysKit(tree, keyInfos...)
	if err != nil {
		return err
	}
	return c.applyKit(ctx, tree, kit)
}

// walletKeys is the opaque document stored inside a wallet KeyInfo.
type walletKeys struct {
	Mnemonic string `json:"mnemonic"`
	DataKey  string `json:"dataKey"`
	SyncKey  string `json:"syncKey"`
}

// NewWalletKey mints a fresh wallet attachment of the given type: a BIP-39
// seed phrase plus random data and sync keys, identified by a base58 id.
func NewWalletKey(walletType string) (models.KeyInfo, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return models.KeyInfo{}, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return models.KeyInfo{}, err
	}

	keys := walletKeys{
		Mnemonic: mnemonic,
		DataKey:  uuid.NewString(),
		SyncKey:  base58.Encode(common.GenerateRandByteArray(20)),
	}
	raw, err := json.Marshal(keys)
	if err != nil {
		return models.KeyInfo{}, err
	}

	return models.KeyInfo{
		ID:   base58.Encode(common.GenerateRandByteArray(32)),
		Type: walletType,
		Keys: raw,
	}, nil
}
