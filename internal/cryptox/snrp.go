package cryptox

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/mkarpov/keystash/internal/common"
	"golang.org/x/crypto/scrypt"
)

// SNRP holds scrypt parameters for one stretched factor. A fresh SNRP is
// generated whenever that factor is rotated.
type SNRP struct {
	Salt []byte `json:"salt_hex"`
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
}

// userIDSaltHex is the well-known salt behind UserIDSNRP. It must never
// change: userId values derived from it are the server-side account keys.
const userIDSaltHex = "b5865ffb9fa7b3bfe4b2384d47ce831ee22a4a9d5c34c7ef7d21467cc758f81b"

// UserIDSNRP returns the fixed "user-id" parameters used to turn a normalized
// username into a deterministic pseudonymous id for server lookups. These are
// deliberately cheaper than the per-login password SNRP.
func UserIDSNRP() SNRP {
	salt, err := hex.DecodeString(userIDSaltHex)
	if err != nil {
		panic(err)
	}
	return SNRP{Salt: salt, N: 16384, R: 1, P: 1}
}

// NewSNRP generates per-login stretching parameters with a fresh random salt.
func NewSNRP() SNRP {
	return SNRP{Salt: common.GenerateRandByteArray(32), N: 16384, R: 8, P: 1}
}

// Stretch derives a 32-byte key from data under the given scrypt parameters.
// The computation can take tens of milliseconds, so the context is checked
// before starting; callers treat this like any other blocking call.
func Stretch(ctx context.Context, data []byte, snrp SNRP) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scrypt.Key(data, snrp.Salt, snrp.N, snrp.R, snrp.P, 32)
}

// HmacSha256 computes HMAC-SHA256(key, data). Pin2 and Recovery2 use it to
// derive lookup ids and proof values from their protocol keys.
func HmacSha256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
