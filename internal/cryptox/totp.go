package cryptox

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/mkarpov/keystash/internal/common"
)

const (
	// TotpStep is the TOTP time step.
	TotpStep = 30 * time.Second
	// TotpDigits is the code length the auth server expects.
	TotpDigits = 6

	otpSecretSize = 20 // 160-bit secret
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewOtpKey generates a random base32-encoded TOTP secret.
func NewOtpKey() string {
	return b32.EncodeToString(common.GenerateRandByteArray(otpSecretSize))
}

// TotpCode computes the 6-digit code for the given base32 secret at time when.
// Returns an empty string for a malformed secret.
func TotpCode(secret string, when time.Time) string {
	key, err := b32.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return ""
	}
	defer common.WipeByteArray(key)

	counter := uint64(when.Unix() / int64(TotpStep/time.Second))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06d", code%1000000)
}
