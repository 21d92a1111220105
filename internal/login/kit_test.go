package login

import (
	"net/http"
	"testing"
	"time"

	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxWithIV(b byte) *cryptox.Box {
	return &cryptox.Box{EncryptionType: 0, IV: []byte{b}, Data: []byte{b}}
}

func TestMergeKitsLaterWins(t *testing.T) {
	loginID := []byte{1, 2, 3}
	first := Kit{
		LoginID:    loginID,
		ServerPath: "/v2/login/password",
		Server:     ServerPatch{PasswordBox: boxWithIV(1)},
		Stash:      StashPatch{PasswordBox: boxWithIV(1)},
		Login:      TreePatch{PasswordAuth: []byte{1}},
	}
	second := Kit{
		LoginID:    loginID,
		ServerPath: "/v2/login/create",
		Server:     ServerPatch{PasswordBox: boxWithIV(2)},
		Stash:      StashPatch{PasswordBox: boxWithIV(2)},
		Login:      TreePatch{PasswordAuth: []byte{2}},
	}

	merged, err := MergeKits(first, second)
	require.NoError(t, err)

	assert.Equal(t, boxWithIV(2), merged.Server.PasswordBox)
	assert.Equal(t, boxWithIV(2), merged.Stash.PasswordBox)
	assert.Equal(t, []byte{2}, merged.Login.PasswordAuth)
	assert.Equal(t, "/v2/login/create", merged.ServerPath)
	assert.Equal(t, http.MethodPost, merged.ServerMethod)
}

func TestMergeKitsDisjointUnion(t *testing.T) {
	loginID := []byte{9}
	password := Kit{
		LoginID:    loginID,
		ServerPath: "/v2/login/password",
		Server:     ServerPatch{PasswordBox: boxWithIV(1), PasswordAuth: []byte{1}},
		Stash:      StashPatch{PasswordBox: boxWithIV(1)},
		Login:      TreePatch{PasswordAuth: []byte{1}},
	}
	pin := Kit{
		LoginID:    loginID,
		ServerPath: "/v2/login/pin2",
		Server:     ServerPatch{Pin2Box: boxWithIV(2)},
		Stash:      StashPatch{Pin2Key: []byte{2}},
		Login:      TreePatch{Pin2Key: []byte{2}},
	}

	merged, err := MergeKits(password, pin)
	require.NoError(t, err)

	assert.Equal(t, boxWithIV(1), merged.Server.PasswordBox)
	assert.Equal(t, boxWithIV(2), merged.Server.Pin2Box)
	assert.Equal(t, []byte{1}, merged.Login.PasswordAuth)
	assert.Equal(t, []byte{2}, merged.Login.Pin2Key)
	assert.Equal(t, loginID, merged.LoginID)
}

func TestMergeKitsDifferentLogins(t *testing.T) {
	a := Kit{LoginID: []byte{1}, ServerPath: "/v2/login/password"}
	b := Kit{LoginID: []byte{2}, ServerPath: "/v2/login/pin2"}

	_, err := MergeKits(a, b)
	require.Error(t, err)
}

func TestMergeKitsSkipsEmpty(t *testing.T) {
	kit := Kit{
		LoginID:    []byte{7},
		ServerPath: "/v2/login/secret",
		Server:     ServerPatch{LoginAuth: []byte{7}},
	}

	merged, err := MergeKits(Kit{}, kit, Kit{})
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, merged.Server.LoginAuth)
	assert.Equal(t, []byte{7}, merged.LoginID)
}

func TestCheckKit(t *testing.T) {
	consistent := Kit{
		Server: ServerPatch{Pin2Box: boxWithIV(1)},
		Stash:  StashPatch{Pin2Key: []byte{1}},
		Login:  TreePatch{Pin2Key: []byte{1}},
	}
	require.NoError(t, checkKit(consistent))

	inconsistent := Kit{
		Server: ServerPatch{Pin2Box: boxWithIV(1)},
		Login:  TreePatch{Pin2Key: []byte{1}},
	}
	require.Error(t, checkKit(inconsistent))
}

func TestStashPatchClearPin(t *testing.T) {
	stash := &models.Stash{
		Pin2Key:     []byte{1},
		Pin2Box:     boxWithIV(1),
		Pin2TextBox: boxWithIV(2),
	}
	StashPatch{ClearPin2: true}.ApplyTo(stash)

	assert.Nil(t, stash.Pin2Key)
	assert.Nil(t, stash.Pin2Box)
	assert.Nil(t, stash.Pin2TextBox)
}

func TestTreePatchVouchersAndLastLogin(t *testing.T) {
	now := time.Now().UTC()
	tree := &models.Tree{
		PendingVouchers: []models.Voucher{
			{VoucherID: "v1"}, {VoucherID: "v2"}, {VoucherID: "v3"},
		},
	}
	TreePatch{RemoveVouchers: []string{"v1", "v3"}, LastLogin: &now}.ApplyTo(tree)

	require.Len(t, tree.PendingVouchers, 1)
	assert.Equal(t, "v2", tree.PendingVouchers[0].VoucherID)
	assert.Equal(t, now, tree.LastLogin)
}
