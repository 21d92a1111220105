// Package cryptox implements the symmetric primitives the credential
// protocols are built on: the encrypted box exchanged with the auth server
// and stored in the stash, scrypt password stretching, and TOTP codes.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/mkarpov/keystash/internal/common"
)

// Encryption types carried in Box.EncryptionType. Only AES-256-GCM is
// produced today; the tag exists so stored boxes stay decodable if the
// algorithm is ever upgraded.
const (
	EncryptionTypeAESGCM = 0
)

// Box is the unit of encrypted data: the value persisted inside a stash and
// sent to or received from the auth server. The zero value is not a valid box.
type Box struct {
	EncryptionType int    `json:"encryptionType"`
	IV             []byte `json:"iv"`
	Data           []byte `json:"data"`
}

// Encrypt seals plaintext under key using AES-256-GCM with a fresh random
// nonce. The key must be 32 bytes.
func Encrypt(plaintext, key []byte) (*Box, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())
	ciphertext := aesgcm.Seal(nil, nonce, plaintext, nil)

	return &Box{EncryptionType: EncryptionTypeAESGCM, IV: nonce, Data: ciphertext}, nil
}

// Decrypt opens a box with the given key. A tampered box or a wrong key fails
// with common.ErrDecryption; wrong plaintext is never silently returned.
func Decrypt(box *Box, key []byte) ([]byte, error) {
	if box == nil {
		return nil, fmt.Errorf("%w: missing box", common.ErrDecryption)
	}
	if box.EncryptionType != EncryptionTypeAESGCM {
		return nil, fmt.Errorf("%w: unknown encryption type %d", common.ErrDecryption, box.EncryptionType)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	plaintext, err := aesgcm.Open(nil, box.IV, box.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return plaintext, nil
}
