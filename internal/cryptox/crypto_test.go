package cryptox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mkarpov/keystash/internal/common"
	"github.com/stretchr/testify/require"
)

func TestBox_RoundTrip(t *testing.T) {
	key := common.GenerateRandByteArray(32)
	plaintext := []byte("passwordAuth bytes, exactly")

	box, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	require.Equal(t, EncryptionTypeAESGCM, box.EncryptionType)
	require.NotEmpty(t, box.IV)
	require.NotEqual(t, plaintext, box.Data)

	out, err := Decrypt(box, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, out)
}

func TestBox_WrongKeyFails(t *testing.T) {
	key := common.GenerateRandByteArray(32)
	other := common.GenerateRandByteArray(32)

	box, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	_, err = Decrypt(box, other)
	require.ErrorIs(t, err, common.ErrDecryption)
}

func TestBox_TamperedCiphertextFails(t *testing.T) {
	key := common.GenerateRandByteArray(32)
	box, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	box.Data[0] ^= 0xff
	_, err = Decrypt(box, key)
	require.ErrorIs(t, err, common.ErrDecryption)
}

func TestBox_NilAndUnknownType(t *testing.T) {
	key := common.GenerateRandByteArray(32)

	_, err := Decrypt(nil, key)
	require.ErrorIs(t, err, common.ErrDecryption)

	box, err := Encrypt([]byte("x"), key)
	require.NoError(t, err)
	box.EncryptionType = 99
	_, err = Decrypt(box, key)
	require.ErrorIs(t, err, common.ErrDecryption)
}

func TestBox_JSONRoundTrip(t *testing.T) {
	key := common.GenerateRandByteArray(32)
	box, err := Encrypt([]byte("stash payload"), key)
	require.NoError(t, err)

	raw, err := json.Marshal(box)
	require.NoError(t, err)

	var decoded Box
	require.NoError(t, json.Unmarshal(raw, &decoded))

	out, err := Decrypt(&decoded, key)
	require.NoError(t, err)
	require.Equal(t, []byte("stash payload"), out)
}

func TestStretch_Deterministic(t *testing.T) {
	snrp := SNRP{Salt: []byte("fixed-salt"), N: 16, R: 1, P: 1}

	a, err := Stretch(context.Background(), []byte("bob smith"), snrp)
	require.NoError(t, err)
	b, err := Stretch(context.Background(), []byte("bob smith"), snrp)
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.Len(t, a, 32)
}

func TestStretch_DifferentSaltsDiffer(t *testing.T) {
	a, err := Stretch(context.Background(), []byte("secret"), SNRP{Salt: []byte("salt-1"), N: 16, R: 1, P: 1})
	require.NoError(t, err)
	b, err := Stretch(context.Background(), []byte("secret"), SNRP{Salt: []byte("salt-2"), N: 16, R: 1, P: 1})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestStretch_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Stretch(ctx, []byte("x"), SNRP{Salt: []byte("s"), N: 16, R: 1, P: 1})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewSNRP_FreshSalt(t *testing.T) {
	a := NewSNRP()
	b := NewSNRP()
	require.Len(t, a.Salt, 32)
	require.NotEqual(t, a.Salt, b.Salt)
}

func TestUserIDSNRP_Fixed(t *testing.T) {
	a := UserIDSNRP()
	b := UserIDSNRP()
	require.Equal(t, a, b)
	require.Equal(t, 16384, a.N)
}

func TestTotpCode_KnownVector(t *testing.T) {
	// RFC 6238 test secret (SHA-1), base32 of "12345678901234567890".
	const secret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

	code := TotpCode(secret, time.Unix(59, 0))
	require.Equal(t, "287082", code)

	code = TotpCode(secret, time.Unix(1111111109, 0))
	require.Equal(t, "081804", code)
}

func TestTotpCode_BadSecret(t *testing.T) {
	require.Equal(t, "", TotpCode("not-base32!!", time.Now()))
}

func TestNewOtpKey_Decodes(t *testing.T) {
	key := NewOtpKey()
	require.NotEmpty(t, key)
	require.NotEmpty(t, TotpCode(key, time.Now()))
}
