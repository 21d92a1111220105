package login

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/cryptox"
	"github.com/mkarpov/keystash/internal/models"
	"github.com/mr-tron/base58"
)

var recovery2IDLabel = []byte("recovery2Id")

// normalizeAnswer makes recovery answers forgiving about case and spacing,
// the same way usernames are normalized.
func normalizeAnswer(answer string) []byte {
	return []byte(strings.ToLower(strings.Join(strings.Fields(answer), " ")))
}

func recovery2Proof(recovery2Key []byte, answers []string) (id []byte, auth [][]byte) {
	id = cryptox.HmacSha256(recovery2Key, recovery2IDLabel)
	auth = make([][]byte, len(answers))
	for i, answer := range answers {
		auth[i] = cryptox.HmacSha256(recovery2Key, normalizeAnswer(answer))
	}
	return id, auth
}

// EncodeRecoveryKey renders a recovery2Key as the base58 token the user
// writes down.
func EncodeRecoveryKey(recovery2Key []byte) string {
	return base58.Encode(recovery2Key)
}

// DecodeRecoveryKey parses a user-entered recovery token.
func DecodeRecoveryKey(token string) ([]byte, error) {
	key, err := base58.Decode(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("malformed recovery token: %w", err)
	}
	return key, nil
}

// MakeRecovery2Kit builds the kit that sets up recovery questions. Every
// answer is hashed individually; the server checks that all of them match.
// The questions themselves travel encrypted under the recovery2Key, so the
// server learns nothing it can show to a stranger.
func MakeRecovery2Kit(tree *models.Tree, questions, answers []string) (Kit, []byte, error) {
	if len(questions) == 0 || len(questions) != len(answers) {
		return Kit{}, nil, fmt.Errorf("recovery needs matching question and answer lists")
	}
	for i, answer := range answers {
		if len(normalizeAnswer(answer)) == 0 {
			return Kit{}, nil, fmt.Errorf("recovery answer %d is empty", i+1)
		}
	}

	recovery2Key := common.GenerateRandByteArray(32)
	recovery2ID, recovery2Auth := recovery2Proof(recovery2Key, answers)

	questionText, err := json.Marshal(questions)
	if err != nil {
		return Kit{}, nil, err
	}
	question2Box, err := cryptox.Encrypt(questionText, recovery2Key)
	if err != nil {
		return Kit{}, nil, err
	}
	recovery2Box, err := cryptox.Encrypt(tree.LoginKey, recovery2Key)
	if err != nil {
		return Kit{}, nil, err
	}

	kit := Kit{
		LoginID:    tree.LoginID,
		ServerPath: "/v2/login/recovery2",
		Server: ServerPatch{
			Recovery2ID:   recovery2ID,
			Recovery2Auth: recovery2Auth,
			Recovery2Box:  recovery2Box,
			Question2Box:  question2Box,
		},
		Stash: StashPatch{
			Recovery2Key: recovery2Key,
			Recovery2Box: recovery2Box,
			Question2Box: question2Box,
		},
		Login: TreePatch{
			Recovery2Key: recovery2Key,
		},
	}
	return kit, recovery2Key, nil
}

// GetRecoveryQuestions fetches and decrypts the question list for a
// username, given the recovery token from the user's backup.
func (c *Core) GetRecoveryQuestions(ctx context.Context, username string, recovery2Key []byte) ([]string, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return nil, err
	}
	userID, err := c.hashes.HashUsername(ctx, fixed)
	if err != nil {
		return nil, err
	}

	recovery2ID := cryptox.HmacSha256(recovery2Key, recovery2IDLabel)
	req := authRequest{UserID: userID, Recovery2ID: recovery2ID}

	payload, err := c.fetchLoginPayload(ctx, req)
	if err != nil {
		return nil, err
	}
	if payload.Question2Box == nil {
		return nil, fmt.Errorf("login payload is missing the question box")
	}

	raw, err := cryptox.Decrypt(payload.Question2Box, recovery2Key)
	if err != nil {
		return nil, err
	}
	var questions []string
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("malformed question list: %w", err)
	}
	return questions, nil
}

// LoginRecovery2 authenticates with the recovery token plus the full set of
// answers. All answers must match; a partial match fails like a wrong
// password.
func (c *Core) LoginRecovery2(ctx context.Context, username string, recovery2Key []byte, answers []string) (*models.Tree, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return nil, err
	}
	userID, err := c.hashes.HashUsername(ctx, fixed)
	if err != nil {
		return nil, err
	}

	recovery2ID, recovery2Auth := recovery2Proof(recovery2Key, answers)
	req := authRequest{UserID: userID, Recovery2ID: recovery2ID, Recovery2Auth: recovery2Auth}

	stash, err := c.store.Get(ctx, fixed)
	if err != nil {
		return nil, err
	}
	if stash.OtpKey != "" {
		req.Otp = currentTotp(stash.OtpKey)
	}

	payload, err := c.fetchLoginPayload(ctx, req)
	if err != nil {
		return nil, err
	}
	if payload.Recovery2Box == nil {
		return nil, fmt.Errorf("login payload is missing the recovery box")
	}

	loginKey, err := cryptox.Decrypt(payload.Recovery2Box, recovery2Key)
	if err != nil {
		return nil, err
	}
	return c.realizeLogin(ctx, fixed, userID, payload, loginKey)
}

// SetupRecovery installs recovery questions on an authenticated login and
// returns the base58 token the user must keep.
func (c *Core) SetupRecovery(ctx context.Context, tree *models.Tree, questions, answers []string) (string, error) {
	kit, recovery2Key, err := MakeRecovery2Kit(tree, questions, answers)
	if err != nil {
		return "", err
	}
	if err := c.applyKit(ctx, tree, kit); err != nil {
		return "", err
	}
	return EncodeRecoveryKey(recovery2Key), nil
}

// DisableRecovery removes the recovery factor from the account.
func (c *Core) DisableRecovery(ctx context.Context, tree *models.Tree) error {
	kit := Kit{
		LoginID:      tree.LoginID,
		ServerPath:   "/v2/login/recovery2",
		ServerMethod: http.MethodDelete,
		Stash:        StashPatch{ClearRecovery2: true},
		Login:        TreePatch{ClearRecovery2: true},
	}
	return c.applyKit(ctx, tree, kit)
}
