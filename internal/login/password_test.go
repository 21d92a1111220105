package login

import (
	"context"
	"testing"

	"github.com/mkarpov/keystash/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginPassword(t *testing.T) {
	if testing.Short() {
		t.Skip("scrypt stretch in short mode")
	}
	ctx := context.Background()
	server := newFakeServer()
	core := newTestCore(server)

	created, err := core.CreateLogin(ctx, "pw user", CreateOpts{Password: "correct horse"})
	require.NoError(t, err)

	tree, err := core.LoginPassword(ctx, "PW User", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.LoginID, tree.LoginID)
	assert.Equal(t, created.LoginKey, tree.LoginKey)
	assert.Equal(t, "pw user", tree.Username)
	assert.NotNil(t, tree.LoginAuth)
}

func TestLoginPasswordWrong(t *testing.T) {
	if testing.Short() {
		t.Skip("scrypt stretch in short mode")
	}
	ctx := context.Background()
	core := newTestCore(newFakeServer())

	_, err := core.CreateLogin(ctx, "pw user", CreateOpts{Password: "correct horse"})
	require.NoError(t, err)

	_, err = core.LoginPassword(ctx, "pw user", "battery staple")
	var pwErr *api.PasswordError
	require.ErrorAs(t, err, &pwErr)
	assert.Equal(t, 10, pwErr.Wait)
}

func TestLoginPasswordUnknownUser(t *testing.T) {
	if testing.Short() {
		t.Skip("scrypt stretch in short mode")
	}
	core := newTestCore(newFakeServer())

	_, err := core.LoginPassword(context.Background(), "nobody", "whatever")
	var userErr *api.UsernameError
	require.ErrorAs(t, err, &userErr)
}

func TestChangePassword(t *testing.T) {
	if testing.Short() {
		t.Skip("scrypt stretch in short mode")
	}
	ctx := context.Background()
	core := newTestCore(newFakeServer())

	tree, err := core.CreateLogin(ctx, "pw user", CreateOpts{Password: "old password"})
	require.NoError(t, err)

	require.NoError(t, core.ChangePassword(ctx, tree, "new password"))

	_, err = core.LoginPassword(ctx, "pw user", "old password")
	var pwErr *api.PasswordError
	require.ErrorAs(t, err, &pwErr)

	again, err := core.LoginPassword(ctx, "pw user", "new password")
	require.NoError(t, err)
	assert.Equal(t, tree.LoginKey, again.LoginKey)
}
