package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/mkarpov/keystash/internal/common"
)

// KeyInfo is one wallet key attachment. The Keys document is opaque to the
// login core; the currency engines interpret it.
type KeyInfo struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Keys json.RawMessage `json:"keys"`
}

// Tree is the decrypted, in-memory login record produced by a successful
// login or creation. It mirrors the stash shape with the boxes opened. A tree
// is never persisted; Wipe drops its secrets when the session ends.
type Tree struct {
	AppID    string
	LoginID  []byte
	LoginKey []byte
	Username string
	UserID   []byte

	LastLogin time.Time

	// Factor material, raw bytes, never persisted unencrypted.
	LoginAuth    []byte
	PasswordAuth []byte
	Pin          string
	Pin2Key      []byte
	Recovery2Key []byte

	// Second-factor state.
	OtpKey       string
	OtpResetDate *time.Time
	OtpTimeout   *int

	PendingVouchers []Voucher
	KeyInfos        []KeyInfo

	Children []*Tree
}

// SearchTree locates the node with the given loginId, depth first, first
// match wins. Returns nil when absent.
func SearchTree(root *Tree, loginID []byte) *Tree {
	if root == nil {
		return nil
	}
	if bytes.Equal(root.LoginID, loginID) {
		return root
	}
	for _, child := range root.Children {
		if found := SearchTree(child, loginID); found != nil {
			return found
		}
	}
	return nil
}

// Wipe overwrites all secret material in this node and its children. The
// tree must not be used afterwards.
func (t *Tree) Wipe() {
	if t == nil {
		return
	}
	common.WipeByteArray(t.LoginKey)
	common.WipeByteArray(t.LoginAuth)
	common.WipeByteArray(t.PasswordAuth)
	common.WipeByteArray(t.Pin2Key)
	common.WipeByteArray(t.Recovery2Key)
	t.Pin = ""
	t.OtpKey = ""
	for _, child := range t.Children {
		child.Wipe()
	}
}
