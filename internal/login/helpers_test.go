package login

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mkarpov/keystash/internal/api"
	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/logging"
	"github.com/mkarpov/keystash/internal/models"
)

// fakeServer emulates the auth server in memory: it stores the server-side
// fragment of every login and answers the same method/path surface the real
// server exposes. Proof checks are byte comparisons, exactly like the real
// thing minus the network.
type fakeServer struct {
	mu     sync.Mutex
	logins map[string]*fakeLogin

	// requests records every (method, path) pair for assertions.
	requests []string
}

type fakeLogin struct {
	patch    ServerPatch
	vouchers []models.Voucher
	children []*fakeLogin
}

func newFakeServer() *fakeServer {
	return &fakeServer{logins: make(map[string]*fakeLogin)}
}

func (s *fakeServer) Request(ctx context.Context, method, path string, body, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, method+" "+path)

	if reset, ok := body.(otpResetRequest); ok && path == "/v2/login/otp/reset" {
		login, ok := s.logins[hex.EncodeToString(reset.UserID)]
		if !ok {
			return &api.UsernameError{}
		}
		if reset.ResetToken != "reset-token" {
			return &api.PasswordError{}
		}
		timeout := 7 * 24 * time.Hour
		if login.patch.OtpTimeout != nil {
			timeout = time.Duration(*login.patch.OtpTimeout) * time.Second
		}
		return s.reply(out, otpResetPayload{ResetDate: time.Now().Add(timeout).UTC()})
	}

	req, ok := body.(authRequest)
	if !ok {
		return fmt.Errorf("fake server: unexpected body type %T", body)
	}

	if path == "/v2/login/create" {
		return s.handleCreate(req)
	}

	login, err := s.authenticate(req)
	if err != nil {
		return err
	}

	if path == "/v2/login" {
		return s.reply(out, s.stashFor(login))
	}
	return s.handleKit(login, method, path, req)
}

func (s *fakeServer) handleCreate(req authRequest) error {
	patch, ok := req.Data.(ServerPatch)
	if !ok {
		return fmt.Errorf("fake server: create without a server fragment")
	}
	id := hex.EncodeToString(patch.LoginID)
	if _, exists := s.logins[id]; exists {
		return fmt.Errorf("auth server rejected request: account exists (code 2)")
	}
	created := &fakeLogin{patch: patch}
	s.logins[id] = created
	if patch.ParentBox != nil {
		parent, err := s.authenticate(req)
		if err != nil {
			return err
		}
		parent.children = append(parent.children, created)
	}
	return nil
}

// authenticate resolves the proof fields in req to a stored login, mirroring
// the server's factor checks, including the TOTP gate.
func (s *fakeServer) authenticate(req authRequest) (*fakeLogin, error) {
	var login *fakeLogin
	switch {
	case req.LoginAuth != nil:
		for _, l := range s.logins {
			if bytes.Equal(l.patch.LoginID, req.LoginID) {
				if !bytes.Equal(l.patch.LoginAuth, req.LoginAuth) {
					return nil, &api.PasswordError{}
				}
				login = l
			}
		}
	case req.Pin2ID != nil:
		for _, l := range s.logins {
			if bytes.Equal(l.patch.Pin2ID, req.Pin2ID) {
				if !bytes.Equal(l.patch.Pin2Auth, req.Pin2Auth) {
					return nil, &api.PasswordError{}
				}
				login = l
			}
		}
	case req.Recovery2ID != nil:
		for _, l := range s.logins {
			if bytes.Equal(l.patch.Recovery2ID, req.Recovery2ID) {
				if req.Recovery2Auth != nil && !equalAuthSets(l.patch.Recovery2Auth, req.Recovery2Auth) {
					return nil, &api.PasswordError{}
				}
				login = l
			}
		}
	case req.UserID != nil:
		l, ok := s.logins[hex.EncodeToString(req.UserID)]
		if !ok {
			return nil, &api.UsernameError{}
		}
		if req.PasswordAuth == nil {
			return nil, &api.PasswordError{}
		}
		if !bytes.Equal(l.patch.PasswordAuth, req.PasswordAuth) {
			return nil, &api.PasswordError{Wait: 10}
		}
		login = l
	}
	if login == nil {
		return nil, &api.UsernameError{}
	}

	if login.patch.OtpKey != nil {
		if req.Otp != cryptox.TotpCode(*login.patch.OtpKey, time.Now()) {
			return nil, &api.OtpError{Reason: api.OtpReasonOtp, ResetToken: "reset-token"}
		}
	}
	return login, nil
}

func (s *fakeServer) handleKit(login *fakeLogin, method, path string, req authRequest) error {
	if method == http.MethodDelete {
		switch path {
		case "/v2/login/pin2":
			login.patch.Pin2ID = nil
			login.patch.Pin2Auth = nil
			login.patch.Pin2Box = nil
			login.patch.Pin2TextBox = nil
		case "/v2/login/recovery2":
			login.patch.Recovery2ID = nil
			login.patch.Recovery2Auth = nil
			login.patch.Recovery2Box = nil
			login.patch.Question2Box = nil
		case "/v2/login/otp":
			login.patch.OtpKey = nil
			login.patch.OtpTimeout = nil
		case "/v2/login/otp/reset":
		default:
			return fmt.Errorf("fake server: unexpected DELETE %s", path)
		}
		return nil
	}

	patch, ok := req.Data.(ServerPatch)
	if !ok {
		return fmt.Errorf("fake server: kit post without a server fragment")
	}
	if path == "/v2/login/vouchers" {
		drop := make(map[string]struct{})
		for _, id := range patch.ApprovedVouchers {
			drop[id] = struct{}{}
		}
		for _, id := range patch.RejectedVouchers {
			drop[id] = struct{}{}
		}
		kept := login.vouchers[:0:0]
		for _, v := range login.vouchers {
			if _, ok := drop[v.VoucherID]; !ok {
				kept = append(kept, v)
			}
		}
		login.vouchers = kept
		return nil
	}
	if path == "/v2/login/keys" {
		login.patch.KeyBoxes = append(login.patch.KeyBoxes, patch.KeyBoxes...)
		patch.KeyBoxes = nil
	}
	login.patch = mergeServer(login.patch, patch)
	return nil
}

// stashFor renders the stored fragment as the login payload the client
// receives, children included.
func (s *fakeServer) stashFor(l *fakeLogin) *models.Stash {
	p := l.patch
	st := &models.Stash{
		LoginID:          p.LoginID,
		ParentBox:        p.ParentBox,
		LoginAuthBox:     p.LoginAuthBox,
		PasswordAuthBox:  p.PasswordAuthBox,
		PasswordAuthSnrp: p.PasswordAuthSnrp,
		PasswordBox:      p.PasswordBox,
		PasswordKeySnrp:  p.PasswordKeySnrp,
		Pin2Box:          p.Pin2Box,
		Pin2TextBox:      p.Pin2TextBox,
		Question2Box:     p.Question2Box,
		Recovery2Box:     p.Recovery2Box,
		KeyBoxes:         p.KeyBoxes,
		PendingVouchers:  l.vouchers,
	}
	if p.AppID != nil {
		st.AppID = *p.AppID
	}
	if p.OtpKey != nil {
		st.OtpKey = *p.OtpKey
		st.OtpTimeout = p.OtpTimeout
	}
	for _, child := range l.children {
		st.Children = append(st.Children, s.stashFor(child))
	}
	return st
}

func (s *fakeServer) reply(out any, results any) error {
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func equalAuthSets(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// memRepository is an in-memory stash Repository for protocol tests.
type memRepository struct {
	mu      sync.Mutex
	stashes map[string]*models.Stash
}

func newMemRepository() *memRepository {
	return &memRepository{stashes: make(map[string]*models.Stash)}
}

func (r *memRepository) Get(ctx context.Context, username string) (*models.Stash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.stashes[username]; ok {
		return cloneStash(st), nil
	}
	return &models.Stash{Username: username}, nil
}

func (r *memRepository) GetByID(ctx context.Context, loginID []byte) (*models.Stash, *models.Stash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.stashes {
		root := cloneStash(st)
		if node := models.SearchStash(root, loginID); node != nil {
			return node, root, nil
		}
	}
	return nil, nil, common.ErrNotFound
}

func (r *memRepository) Save(ctx context.Context, stash *models.Stash) error {
	if stash.Username == "" {
		return fmt.Errorf("stash has no username")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stashes[stash.Username] = cloneStash(stash)
	return nil
}

func (r *memRepository) UpdateByID(ctx context.Context, loginID []byte, fn func(node, root *models.Stash) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for user, st := range r.stashes {
		root := cloneStash(st)
		if node := models.SearchStash(root, loginID); node != nil {
			if err := fn(node, root); err != nil {
				return err
			}
			r.stashes[user] = root
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *memRepository) Delete(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stashes, username)
	return nil
}

func (r *memRepository) List(ctx context.Context) ([]*models.Stash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Stash, 0, len(r.stashes))
	for _, st := range r.stashes {
		out = append(out, cloneStash(st))
	}
	return out, nil
}

func cloneStash(st *models.Stash) *models.Stash {
	raw, err := st.Encode()
	if err != nil {
		panic(err)
	}
	out, err := models.DecodeStash(raw)
	if err != nil {
		panic(err)
	}
	return out
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (nopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Error(ctx context.Context, msg string, args ...any) {}
func (nopLogger) With(args ...any) logging.Logger                    { return nopLogger{} }

// testTree builds a standalone tree node for kit constructors that do not
// need a server.
func testTree() *models.Tree {
	return &models.Tree{
		LoginID:  common.GenerateRandByteArray(32),
		LoginKey: common.GenerateRandByteArray(32),
		Username: "test user",
	}
}

// newTestCore wires a Core against the fake server and an in-memory store.
func newTestCore(server *fakeServer) *Core {
	return NewCore("app:test", server, newMemRepository(), nopLogger{})
}
