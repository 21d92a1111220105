package login

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
)

// ServerPatch is the request-body fragment a protocol contributes to one
// credential change. Field names follow the auth server's JSON contract.
type ServerPatch struct {
	AppID     *string      `json:"appId,omitempty"`
	LoginID   []byte       `json:"loginId,omitempty"`
	ParentBox *cryptox.Box `json:"parentBox,omitempty"`

	LoginAuth    []byte       `json:"loginAuth,omitempty"`
	LoginAuthBox *cryptox.Box `json:"loginAuthBox,omitempty"`

	PasswordAuth     []byte        `json:"newPasswordAuth,omitempty"`
	PasswordAuthBox  *cryptox.Box  `json:"passwordAuthBox,omitempty"`
	PasswordAuthSnrp *cryptox.SNRP `json:"passwordAuthSnrp,omitempty"`
	PasswordBox      *cryptox.Box  `json:"passwordBox,omitempty"`
	PasswordKeySnrp  *cryptox.SNRP `json:"passwordKeySnrp,omitempty"`

	Pin2ID      []byte       `json:"pin2Id,omitempty"`
	Pin2Auth    []byte       `json:"pin2Auth,omitempty"`
	Pin2Box     *cryptox.Box `json:"pin2Box,omitempty"`
	Pin2TextBox *cryptox.Box `json:"pin2TextBox,omitempty"`

	Recovery2ID   []byte       `json:"recovery2Id,omitempty"`
	Recovery2Auth [][]byte     `json:"recovery2Auth,omitempty"`
	Recovery2Box  *cryptox.Box `json:"recovery2Box,omitempty"`
	Question2Box  *cryptox.Box `json:"question2Box,omitempty"`

	OtpKey     *string `json:"otpKey,omitempty"`
	OtpTimeout *int    `json:"otpTimeout,omitempty"`

	KeyBoxes []cryptox.Box `json:"keyBoxes,omitempty"`

	ApprovedVouchers []string `json:"approvedVouchers,omitempty"`
	RejectedVouchers []string `json:"rejectedVouchers,omitempty"`
}

// StashPatch is the stash-side counterpart of a ServerPatch. A nil pointer
// means "leave unchanged"; Clear* flags express deletion.
type StashPatch struct {
	Username *string
	UserID   []byte

	ParentBox *cryptox.Box

	LoginAuthBox *cryptox.Box

	PasswordAuthBox  *cryptox.Box
	PasswordAuthSnrp *cryptox.SNRP
	PasswordBox      *cryptox.Box
	PasswordKeySnrp  *cryptox.SNRP

	Pin2Key     []byte
	Pin2Box     *cryptox.Box
	Pin2TextBox *cryptox.Box
	ClearPin2   bool

	Recovery2Key   []byte
	Question2Box   *cryptox.Box
	Recovery2Box   *cryptox.Box
	ClearRecovery2 bool

	OtpKey            *string
	OtpTimeout        *int
	OtpResetDate      *time.Time
	ClearOtp          bool
	ClearOtpResetDate bool

	AddKeyBoxes    []cryptox.Box
	RemoveVouchers []string

	LastLogin *time.Time
}

// TreePatch is the login-tree-side counterpart of a ServerPatch.
type TreePatch struct {
	Username *string
	UserID   []byte

	LoginAuth    []byte
	PasswordAuth []byte

	Pin       *string
	Pin2Key   []byte
	ClearPin2 bool

	Recovery2Key   []byte
	ClearRecovery2 bool

	OtpKey            *string
	OtpTimeout        *int
	OtpResetDate      *time.Time
	ClearOtp          bool
	ClearOtpResetDate bool

	AddKeyInfos    []models.KeyInfo
	RemoveVouchers []string

	LastLogin *time.Time
}

// Kit is an atomic bundle of three parallel deltas for one credential
// operation: the server request fragment, the stash fragment, and the
// login-tree fragment. The three must stay mutually consistent; applying a
// kit must never leave the representations disagreeing.
type Kit struct {
	LoginID      []byte
	ServerPath   string
	ServerMethod string
	Server       ServerPatch
	Stash        StashPatch
	Login        TreePatch
}

// IsEmpty reports whether the kit carries no server fragment at all (a
// protocol with no credential to contribute).
func (k Kit) IsEmpty() bool {
	return k.ServerPath == "" && k.LoginID == nil
}

// MergeKits combines an ordered list of per-protocol kits into one outgoing
// kit. Merging is a field-wise union of the three patches; when two kits set
// the same field the later kit wins. This is the designed override policy,
// not a conflict error: protocols own disjoint fields under normal operation.
// Empty kits merge as no-ops.
func MergeKits(kits ...Kit) (Kit, error) {
	var out Kit
	out.ServerMethod = http.MethodPost

	for _, kit := range kits {
		if kit.IsEmpty() {
			continue
		}
		if out.LoginID == nil {
			out.LoginID = kit.LoginID
		} else if kit.LoginID != nil && !bytes.Equal(out.LoginID, kit.LoginID) {
			return Kit{}, fmt.Errorf("cannot merge kits for different logins")
		}
		if kit.ServerPath != "" {
			out.ServerPath = kit.ServerPath
		}
		if kit.ServerMethod != "" {
			out.ServerMethod = kit.ServerMethod
		}
		out.Server = mergeServer(out.Server, kit.Server)
		out.Stash = mergeStash(out.Stash, kit.Stash)
		out.Login = mergeLogin(out.Login, kit.Login)
	}

	if debugChecks {
		if err := checkKit(out); err != nil {
			return Kit{}, err
		}
	}
	return out, nil
}

func mergeServer(a, b ServerPatch) ServerPatch {
	if b.AppID != nil {
		a.AppID = b.AppID
	}
	if b.LoginID != nil {
		a.LoginID = b.LoginID
	}
	if b.ParentBox != nil {
		a.ParentBox = b.ParentBox
	}
	if b.LoginAuth != nil {
		a.LoginAuth = b.LoginAuth
	}
	if b.LoginAuthBox != nil {
		a.LoginAuthBox = b.LoginAuthBox
	}
	if b.PasswordAuth != nil {
		a.PasswordAuth = b.PasswordAuth
	}
	if b.PasswordAuthBox != nil {
		a.PasswordAuthBox = b.PasswordAuthBox
	}
	if b.PasswordAuthSnrp != nil {
		a.PasswordAuthSnrp = b.PasswordAuthSnrp
	}
	if b.PasswordBox != nil {
		a.PasswordBox = b.PasswordBox
	}
	if b.PasswordKeySnrp != nil {
		a.PasswordKeySnrp = b.PasswordKeySnrp
	}
	if b.Pin2ID != nil {
		a.Pin2ID = b.Pin2ID
	}
	if b.Pin2Auth != nil {
		a.Pin2Auth = b.Pin2Auth
	}
	if b.Pin2Box != nil {
		a.Pin2Box = b.Pin2Box
	}
	if b.Pin2TextBox != nil {
		a.Pin2TextBox = b.Pin2TextBox
	}
	if b.Recovery2ID != nil {
		a.Recovery2ID = b.Recovery2ID
	}
	if b.Recovery2Auth != nil {
		a.Recovery2Auth = b.Recovery2Auth
	}
	if b.Recovery2Box != nil {
		a.Recovery2Box = b.Recovery2Box
	}
	if b.Question2Box != nil {
		a.Question2Box = b.Question2Box
	}
	if b.OtpKey != nil {
		a.OtpKey = b.OtpKey
	}
	if b.OtpTimeout != nil {
		a.OtpTimeout = b.OtpTimeout
	}
	if b.KeyBoxes != nil {
		a.KeyBoxes = b.KeyBoxes
	}
	if b.ApprovedVouchers != nil {
		a.ApprovedVouchers = b.ApprovedVouchers
	}
	if b.RejectedVouchers != nil {
		a.RejectedVouchers = b.RejectedVouchers
	}
	return a
}

func mergeStash(a, b StashPatch) StashPatch {
	if b.Username != nil {
		a.Username = b.Username
	}
	if b.UserID != nil {
		a.UserID = b.UserID
	}
	if b.ParentBox != nil {
		a.ParentBox = b.ParentBox
	}
	if b.LoginAuthBox != nil {
		a.LoginAuthBox = b.LoginAuthBox
	}
	if b.PasswordAuthBox != nil {
		a.PasswordAuthBox = b.PasswordAuthBox
	}
	if b.PasswordAuthSnrp != nil {
		a.PasswordAuthSnrp = b.PasswordAuthSnrp
	}
	if b.PasswordBox != nil {
		a.PasswordBox = b.PasswordBox
	}
	if b.PasswordKeySnrp != nil {
		a.PasswordKeySnrp = b.PasswordKeySnrp
	}
	if b.Pin2Key != nil {
		a.Pin2Key = b.Pin2Key
	}
	if b.Pin2Box != nil {
		a.Pin2Box = b.Pin2Box
	}
	if b.Pin2TextBox != nil {
		a.Pin2TextBox = b.Pin2TextBox
	}
	if b.ClearPin2 {
		a.ClearPin2 = true
	}
	if b.Recovery2Key != nil {
		a.Recovery2Key = b.Recovery2Key
	}
	if b.Question2Box != nil {
		a.Question2Box = b.Question2Box
	}
	if b.Recovery2Box != nil {
		a.Recovery2Box = b.Recovery2Box
	}
	if b.ClearRecovery2 {
		a.ClearRecovery2 = true
	}
	if b.OtpKey != nil {
		a.OtpKey = b.OtpKey
	}
	if b.OtpTimeout != nil {
		a.OtpTimeout = b.OtpTimeout
	}
	if b.OtpResetDate != nil {
		a.OtpResetDate = b.OtpResetDate
	}
	if b.ClearOtp {
		a.ClearOtp = true
	}
	if b.ClearOtpResetDate {
		a.ClearOtpResetDate = true
	}
	if b.AddKeyBoxes != nil {
		a.AddKeyBoxes = b.AddKeyBoxes
	}
	if b.RemoveVouchers != nil {
		a.RemoveVouchers = b.RemoveVouchers
	}
	if b.LastLogin != nil {
		a.LastLogin = b.LastLogin
	}
	return a
}

func mergeLogin(a, b TreePatch) TreePatch {
	if b.Username != nil {
		a.Username = b.Username
	}
	if b.UserID != nil {
		a.UserID = b.UserID
	}
	if b.LoginAuth != nil {
		a.LoginAuth = b.LoginAuth
	}
	if b.PasswordAuth != nil {
		a.PasswordAuth = b.PasswordAuth
	}
	if b.Pin != nil {
		a.Pin = b.Pin
	}
	if b.Pin2Key != nil {
		a.Pin2Key = b.Pin2Key
	}
	if b.ClearPin2 {
		a.ClearPin2 = true
	}
	if b.Recovery2Key != nil {
		a.Recovery2Key = b.Recovery2Key
	}
	if b.ClearRecovery2 {
		a.ClearRecovery2 = true
	}
	if b.OtpKey != nil {
		a.OtpKey = b.OtpKey
	}
	if b.OtpTimeout != nil {
		a.OtpTimeout = b.OtpTimeout
	}
	if b.OtpResetDate != nil {
		a.OtpResetDate = b.OtpResetDate
	}
	if b.ClearOtp {
		a.ClearOtp = true
	}
	if b.ClearOtpResetDate {
		a.ClearOtpResetDate = true
	}
	if b.AddKeyInfos != nil {
		a.AddKeyInfos = b.AddKeyInfos
	}
	if b.RemoveVouchers != nil {
		a.RemoveVouchers = b.RemoveVouchers
	}
	if b.LastLogin != nil {
		a.LastLogin = b.LastLogin
	}
	return a
}

// ApplyTo folds the stash fragment into a stash node.
func (p StashPatch) ApplyTo(s *models.Stash) {
	if p.Username != nil {
		s.Username = *p.Username
	}
	if p.UserID != nil {
		s.UserID = p.UserID
	}
	if p.ParentBox != nil {
		s.ParentBox = p.ParentBox
	}
	if p.LoginAuthBox != nil {
		s.LoginAuthBox = p.LoginAuthBox
	}
	if p.PasswordAuthBox != nil {
		s.PasswordAuthBox = p.PasswordAuthBox
	}
	if p.PasswordAuthSnrp != nil {
		s.PasswordAuthSnrp = p.PasswordAuthSnrp
	}
	if p.PasswordBox != nil {
		s.PasswordBox = p.PasswordBox
	}
	if p.PasswordKeySnrp != nil {
		s.PasswordKeySnrp = p.PasswordKeySnrp
	}
	if p.Pin2Key != nil {
		s.Pin2Key = p.Pin2Key
	}
	if p.Pin2Box != nil {
		s.Pin2Box = p.Pin2Box
	}
	if p.Pin2TextBox != nil {
		s.Pin2TextBox = p.Pin2TextBox
	}
	if p.ClearPin2 {
		s.Pin2Key = nil
		s.Pin2Box = nil
		s.Pin2TextBox = nil
	}
	if p.Recovery2Key != nil {
		s.Recovery2Key = p.Recovery2Key
	}
	if p.Question2Box != nil {
		s.Question2Box = p.Question2Box
	}
	if p.Recovery2Box != nil {
		s.Recovery2Box = p.Recovery2Box
	}
	if p.ClearRecovery2 {
		s.Recovery2Key = nil
		s.Question2Box = nil
		s.Recovery2Box = nil
	}
	if p.OtpKey != nil {
		s.OtpKey = *p.OtpKey
	}
	if p.OtpTimeout != nil {
		s.OtpTimeout = p.OtpTimeout
	}
	if p.OtpResetDate != nil {
		s.OtpResetDate = p.OtpResetDate
	}
	if p.ClearOtp {
		s.OtpKey = ""
		s.OtpTimeout = nil
		s.OtpResetDate = nil
	}
	if p.ClearOtpResetDate {
		s.OtpResetDate = nil
	}
	if p.AddKeyBoxes != nil {
		s.KeyBoxes = append(s.KeyBoxes, p.AddKeyBoxes...)
	}
	if p.RemoveVouchers != nil {
		s.PendingVouchers = dropVouchers(s.PendingVouchers, p.RemoveVouchers)
	}
	if p.LastLogin != nil {
		s.LastLogin = *p.LastLogin
	}
}

// ApplyTo folds the login fragment into a tree node.
func (p TreePatch) ApplyTo(t *models.Tree) {
	if p.Username != nil {
		t.Username = *p.Username
	}
	if p.UserID != nil {
		t.UserID = p.UserID
	}
	if p.LoginAuth != nil {
		t.LoginAuth = p.LoginAuth
	}
	if p.PasswordAuth != nil {
		t.PasswordAuth = p.PasswordAuth
	}
	if p.Pin != nil {
		t.Pin = *p.Pin
	}
	if p.Pin2Key != nil {
		t.Pin2Key = p.Pin2Key
	}
	if p.ClearPin2 {
		t.Pin = ""
		t.Pin2Key = nil
	}
	if p.Recovery2Key != nil {
		t.Recovery2Key = p.Recovery2Key
	}
	if p.ClearRecovery2 {
		t.Recovery2Key = nil
	}
	if p.OtpKey != nil {
		t.OtpKey = *p.OtpKey
	}
	if p.OtpTimeout != nil {
		t.OtpTimeout = p.OtpTimeout
	}
	if p.OtpResetDate != nil {
		t.OtpResetDate = p.OtpResetDate
	}
	if p.ClearOtp {
		t.OtpKey = ""
		t.OtpTimeout = nil
		t.OtpResetDate = nil
	}
	if p.ClearOtpResetDate {
		t.OtpResetDate = nil
	}
	if p.AddKeyInfos != nil {
		t.KeyInfos = append(t.KeyInfos, p.AddKeyInfos...)
	}
	if p.RemoveVouchers != nil {
		t.PendingVouchers = dropVouchers(t.PendingVouchers, p.RemoveVouchers)
	}
	if p.LastLogin != nil {
		t.LastLogin = *p.LastLogin
	}
}

func dropVouchers(vouchers []models.Voucher, ids []string) []models.Voucher {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := vouchers[:0:0]
	for _, v := range vouchers {
		if _, ok := drop[v.VoucherID]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// checkKit verifies the kit invariant: every credential present in the
// server fragment has its counterpart in the stash and tree fragments.
func checkKit(k Kit) error {
	type rule struct {
		name   string
		server bool
		stash  bool
		login  bool
	}
	rules := []rule{
		{"loginAuth", k.Server.LoginAuthBox != nil, k.Stash.LoginAuthBox != nil, k.Login.LoginAuth != nil},
		{"password", k.Server.PasswordBox != nil, k.Stash.PasswordBox != nil, k.Login.PasswordAuth != nil},
		{"pin2", k.Server.Pin2Box != nil, k.Stash.Pin2Key != nil, k.Login.Pin2Key != nil},
		{"recovery2", k.Server.Recovery2Box != nil, k.Stash.Recovery2Key != nil, k.Login.Recovery2Key != nil},
		{"otp", k.Server.OtpKey != nil, k.Stash.OtpKey != nil, k.Login.OtpKey != nil},
		{"keys", k.Server.KeyBoxes != nil, k.Stash.AddKeyBoxes != nil, k.Login.AddKeyInfos != nil},
		{
			"vouchers",
			k.Server.ApprovedVouchers != nil || k.Server.RejectedVouchers != nil,
			k.Stash.RemoveVouchers != nil,
			k.Login.RemoveVouchers != nil,
		},
	}
	for _, r := range rules {
		if r.server && (!r.stash || !r.login) {
			return fmt.Errorf("inconsistent kit: %s present in server fragment but missing from stash/login", r.name)
		}
	}
	return nil
}
