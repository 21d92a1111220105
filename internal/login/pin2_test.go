package login

import (
	"context"
	"testing"

	"github.com/mkarpov/keystash/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginPin2(t *testing.T) {
	if testing.Short() {
		t.Skip("scrypt stretch in short mode")
	}
	ctx := context.Background()
	server := newFakeServer()
	core := newTestCore(server)

	created, err := core.CreateLogin(ctx, "pin user", CreateOpts{Password: "pw123456", Pin: "2468"})
	require.NoError(t, err)

	tree, err := core.LoginPin2(ctx, "pin user", "2468")
	require.NoError(t, err)
	assert.Equal(t, created.LoginKey, tree.LoginKey)
	assert.Equal(t, "2468", tree.Pin)

	_, err = core.LoginPin2(ctx, "pin user", "0000")
	var pwErr *api.PasswordError
	require.ErrorAs(t, err, &pwErr)
}

func TestLoginPin2NeedsLocalKey(t *testing.T) {
	if testing.Short() {
		t.Skip("scrypt stretch in short mode")
	}
	ctx := context.Background()
	server := newFakeServer()

	_, err := newTestCore(server).CreateLogin(ctx, "pin user", CreateOpts{Password: "pw123456", Pin: "2468"})
	require.NoError(t, err)

	// A different device shares the server but not the local pin2Key.
	otherDevice := newTestCore(server)
	_, err = otherDevice.LoginPin2(ctx, "pin user", "2468")
	require.Error(t, err)

	// A password login caches the account; the pin2Key still is not there,
	// since the server never returns it.
	_, err = otherDevice.LoginPassword(ctx, "pin user", "pw123456")
	require.NoError(t, err)
	_, err = otherDevice.LoginPin2(ctx, "pin user", "2468")
	require.Error(t, err)
}

func TestChangePin(t *testing.T) {
	if testing.Short() {
		t.Skip("scrypt stretch in short mode")
	}
	ctx := context.Background()
	core := newTestCore(newFakeServer())

	tree, err := core.CreateLogin(ctx, "pin user", CreateOpts{Password: "pw123456", Pin: "2468"})
	require.NoError(t, err)

	require.NoError(t, core.ChangePin(ctx, tree, "1357"))
	assert.Equal(t, "1357", tree.Pin)

	_, err = core.LoginPin2(ctx, "pin user", "2468")
	require.Error(t, err)

	again, err := core.LoginPin2(ctx, "pin user", "1357")
	require.NoError(t, err)
	assert.Equal(t, tree.LoginKey, again.LoginKey)
}

func TestMakePin2KitRejectsShortPin(t *testing.T) {
	tree := testTree()
	_, err := MakePin2Kit(tree, "123")
	require.Error(t, err)
}

func TestDisablePin(t *testing.T) {
	if testing.Short() {
		t.Skip("scrypt stretch in short mode")
	}
	ctx := context.Background()
	core := newTestCore(newFakeServer())

	tree, err := core.CreateLogin(ctx, "pin user", CreateOpts{Password: "pw123456", Pin: "2468"})
	require.NoError(t, err)

	require.NoError(t, core.DisablePin(ctx, tree))
	assert.Empty(t, tree.Pin)
	assert.Nil(t, tree.Pin2Key)

	_, err = core.LoginPin2(ctx, "pin user", "2468")
	require.Error(t, err)
}
