// Package models defines the login data model shared by the credential
// protocols and the local repositories: the encrypted persisted stash, the
// decrypted in-memory login tree, and the voucher records attached to both.
package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/mkarpov/keystash/internal/cryptox"
)

// Voucher is a pending cross-device login approval. It is created server-side
// when an unrecognized device attempts a login and removed once the account
// owner approves or rejects it.
type Voucher struct {
	VoucherID         string    `json:"voucherId"`
	Created           time.Time `json:"created"`
	Activates         time.Time `json:"activates"`
	DeviceDescription string    `json:"deviceDescription,omitempty"`
	IP                string    `json:"ip"`
	IPDescription     string    `json:"ipDescription"`
}

// Stash is the encrypted, persisted login record for one node of a login
// tree. Every secret lives inside a cryptox.Box; the only plaintext key
// material here (pin2Key, recovery2Key) is local-only by design and never
// sent to the server. The same shape doubles as the server login payload.
type Stash struct {
	AppID    string `json:"appId"`
	LoginID  []byte `json:"loginId"`
	Username string `json:"username,omitempty"`
	UserID   []byte `json:"userId,omitempty"`

	LastLogin time.Time `json:"lastLogin,omitempty"`

	// ParentBox holds this node's loginKey encrypted under the parent's
	// loginKey. Empty on the root.
	ParentBox *cryptox.Box `json:"parentBox,omitempty"`

	// Secret-key login.
	LoginAuthBox *cryptox.Box `json:"loginAuthBox,omitempty"`

	// Password login.
	PasswordAuthBox  *cryptox.Box  `json:"passwordAuthBox,omitempty"`
	PasswordAuthSnrp *cryptox.SNRP `json:"passwordAuthSnrp,omitempty"`
	PasswordBox      *cryptox.Box  `json:"passwordBox,omitempty"`
	PasswordKeySnrp  *cryptox.SNRP `json:"passwordKeySnrp,omitempty"`

	// PIN login. Pin2Key stays local so a PIN proof can be derived without
	// asking the server anything.
	Pin2Key     []byte       `json:"pin2Key,omitempty"`
	Pin2Box     *cryptox.Box `json:"pin2Box,omitempty"`
	Pin2TextBox *cryptox.Box `json:"pin2TextBox,omitempty"`

	// Recovery login.
	Recovery2Key []byte       `json:"recovery2Key,omitempty"`
	Question2Box *cryptox.Box `json:"question2Box,omitempty"`
	Recovery2Box *cryptox.Box `json:"recovery2Box,omitempty"`

	// Second-factor state.
	OtpKey       string     `json:"otpKey,omitempty"`
	OtpResetDate *time.Time `json:"otpResetDate,omitempty"`
	OtpTimeout   *int       `json:"otpTimeout,omitempty"`

	PendingVouchers []Voucher `json:"pendingVouchers,omitempty"`

	// Wallet key attachments, each box holding one KeyInfo JSON document.
	KeyBoxes []cryptox.Box `json:"keyBoxes,omitempty"`

	// Children are nested sub-identities for other application ids sharing
	// the same root secret. A parent exclusively owns its children; the
	// structure is a strict tree.
	Children []*Stash `json:"children,omitempty"`
}

// SearchStash locates the node with the given loginId anywhere in the tree
// rooted at root, depth first, first match wins. Returns nil when absent.
// The traversal never mutates the tree; loginIds are unique per tree by
// construction, so ties cannot occur.
func SearchStash(root *Stash, loginID []byte) *Stash {
	if root == nil {
		return nil
	}
	if bytes.Equal(root.LoginID, loginID) {
		return root
	}
	for _, child := range root.Children {
		if found := SearchStash(child, loginID); found != nil {
			return found
		}
	}
	return nil
}

// Encode serializes the stash to its persisted JSON form.
func (s *Stash) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeStash parses a persisted stash document.
func DecodeStash(data []byte) (*Stash, error) {
	var s Stash
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
