package devnet

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/lit-quorum-client/api"
	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/litclient"
	"github.com/ruteri/lit-quorum-client/network"
	"github.com/ruteri/lit-quorum-client/sessions"
	"github.com/ruteri/lit-quorum-client/threshold"
	"go.uber.org/atomic"
)

const (
	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024

	nodeVersion = "devnet"
)

var (
	errNodeFailing   = errors.New("node is failing")
	errUnknownPKP    = errors.New("unknown pkp public key")
	errActionsOff    = errors.New("lit actions are not enabled on this node")
	errNoConditions  = errors.New("no access control conditions provided")
	errNoAuthMethods = errors.New("no auth methods provided")
)

// ConditionChecker decides whether the caller satisfies access control conditions.
type ConditionChecker func(ctx context.Context, conditions json.RawMessage, chain string) error

// ActionRequest is a Lit Action invocation as a node sees it.
type ActionRequest struct {
	Code     string
	IpfsID   string
	JsParams any
}

// ActionResult is what a Lit Action produced. Sign maps signature names to 32-byte
// digests the node signs with the PKP.
type ActionResult struct {
	Response  string
	Logs      string
	Sign      map[string][]byte
	ClaimData map[string]json.RawMessage
}

// ActionRunner executes Lit Actions.
type ActionRunner interface {
	Run(ctx context.Context, req ActionRequest) (*ActionResult, error)
}

// ActionRunnerFunc adapts a function to ActionRunner.
type ActionRunnerFunc func(ctx context.Context, req ActionRequest) (*ActionResult, error)

func (f ActionRunnerFunc) Run(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return f(ctx, req)
}

// NodeConfig configures a single devnet node.
type NodeConfig struct {
	// Index is the node's position in the dealt key shares.
	Index int
	Keys  *Keys
	Epoch uint64

	// Attestation is returned verbatim in handshakes when set.
	Attestation json.RawMessage

	Conditions ConditionChecker
	Actions    ActionRunner

	Log *slog.Logger
}

// Node is an in-process network node speaking the node HTTP protocol.
type Node struct {
	cfg NodeConfig
	log *slog.Logger

	mu         sync.RWMutex
	url        string
	identity   [32]byte
	siweClause string

	requests atomic.Int64
	failing  atomic.Bool
}

func NewNode(cfg NodeConfig) (*Node, error) {
	if cfg.Keys == nil || cfg.Index < 0 || cfg.Index >= len(cfg.Keys.BLSShares) {
		return nil, interfaces.ConfigError("node %d has no key share", cfg.Index)
	}
	n := &Node{cfg: cfg, log: common.LoggerOrDefault(cfg.Log).With(slog.Int("node", cfg.Index))}
	if err := n.RotateIdentityKey(); err != nil {
		return nil, err
	}
	return n, nil
}

// SetURL sets the URL clients reach the node at. Session signatures are checked
// against it.
func (n *Node) SetURL(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.url = url
}

func (n *Node) URL() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.url
}

// RotateIdentityKey replaces the node's encryption key. Requests sealed to the old key
// fail until the client handshakes again.
func (n *Node) RotateIdentityKey() error {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return err
	}
	n.mu.Lock()
	n.identity = secret
	n.mu.Unlock()
	return nil
}

// IdentityKey returns the hex public key clients encrypt requests to.
func (n *Node) IdentityKey() string {
	n.mu.RLock()
	secret := n.identity
	n.mu.RUnlock()
	pub, _ := cryptoutils.PublicKey(secret)
	return hex.EncodeToString(pub[:])
}

// SetFailing makes every operation on the node return an error.
func (n *Node) SetFailing(failing bool) {
	n.failing.Store(failing)
}

// SetSiweClause makes the node append clause to the delegation messages it signs.
func (n *Node) SetSiweClause(clause string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.siweClause = clause
}

// Requests counts the operation requests the node received.
func (n *Node) Requests() int64 {
	return n.requests.Load()
}

func (n *Node) RegisterRoutes(r chi.Router) {
	ep := network.DefaultEndpoints
	r.Post(ep.Handshake.Path+ep.Handshake.Version, n.handleHandshake)
	r.Post(ep.EncryptionSign.Path+ep.EncryptionSign.Version, n.encrypted(n.decryptionShare))
	r.Post(ep.PKPSign.Path+ep.PKPSign.Version, n.encrypted(n.pkpSign))
	r.Post(ep.ExecuteJs.Path+ep.ExecuteJs.Version, n.encrypted(n.executeJs))
	r.Post(ep.SignSessionKey.Path+ep.SignSessionKey.Version, n.encrypted(n.signSessionKey))
}

func (n *Node) keys() interfaces.NodeKeys {
	pub := n.cfg.Keys.NetworkPublicKeyHex()
	return interfaces.NodeKeys{
		ServerPublicKey:     n.IdentityKey(),
		SubnetPublicKey:     pub,
		NetworkPublicKey:    pub,
		NetworkPublicKeySet: pub,
		ClientSDKVersion:    common.SDKVersion,
		HDRootPubkeys:       []string{n.cfg.Keys.PKPPublicKeyHex()},
		Attestation:         n.cfg.Attestation,
		LatestBlockhash:     n.cfg.Keys.LatestBlockhash,
		NodeIdentityKey:     n.IdentityKey(),
		NodeVersion:         nodeVersion,
		Epoch:               n.cfg.Epoch,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := common.MarshalJSON(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (n *Node) handleHandshake(w http.ResponseWriter, r *http.Request) {
	var req api.HandshakeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid handshake request"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": n.keys()})
}

type operation func(ctx context.Context, plaintext []byte) (any, error)

// encrypted opens the request envelope, runs op and seals its result or error for
// the caller.
func (n *Node) encrypted(op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n.requests.Inc()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "failed to read request"})
			return
		}
		var req api.EncryptedRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid encrypted request"})
			return
		}

		n.mu.RLock()
		secret := n.identity
		n.mu.RUnlock()

		plaintext, err := cryptoutils.Decrypt(secret, req.Envelope())
		if err != nil {
			n.log.Debug("rejecting request", slog.Any("error", err))
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "can't decrypt"})
			return
		}
		clientPub, err := cryptoutils.ParseKey(req.Payload.VerificationKey)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid verification key"})
			return
		}

		var result any
		switch {
		case req.Epoch != n.cfg.Epoch:
			err = fmt.Errorf("invalid epoch %d, node is at %d", req.Epoch, n.cfg.Epoch)
		case n.failing.Load():
			err = errNodeFailing
		default:
			result, err = op(r.Context(), plaintext)
		}
		if err != nil {
			n.log.Debug("operation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
			n.reply(w, http.StatusBadRequest, secret, clientPub, []byte(err.Error()))
			return
		}

		data, err := common.MarshalJSON(map[string]any{"data": result})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
			return
		}
		env, err := cryptoutils.Encrypt(secret, clientPub, data)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "values": []*cryptoutils.Envelope{env}})
	}
}

func (n *Node) reply(w http.ResponseWriter, status int, secret, clientPub [32]byte, msg []byte) {
	env, err := cryptoutils.Encrypt(secret, clientPub, msg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, status, env)
}

// authorize checks that sig is a live session signature for this node granting ability.
func (n *Node) authorize(sig interfaces.AuthSig, ability interfaces.LitAbility) error {
	tmpl, err := sessions.Verify(sig, n.URL(), time.Now())
	if err != nil {
		return err
	}
	for _, req := range tmpl.ResourceAbilityRequests {
		if req.Ability == ability {
			return nil
		}
	}
	return fmt.Errorf("session does not grant %s", ability)
}

// nodeIndex returns the node's position in nodeSet.
func (n *Node) nodeIndex(nodeSet []api.NodeSetEntry) int {
	self := api.NodeSetFromURLs([]string{n.URL()})[0].SocketAddress
	for i, entry := range nodeSet {
		if entry.SocketAddress == self {
			return i
		}
	}
	return -1
}

func (n *Node) peerID() string {
	return fmt.Sprintf("devnet-node-%d", n.cfg.Index)
}

func (n *Node) checkPKP(pubkey string) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(pubkey, "0x"))
	if err != nil {
		return errUnknownPKP
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil || !pub.IsEqual(n.cfg.Keys.PKP.PubKey()) {
		return errUnknownPKP
	}
	return nil
}

func (n *Node) blsShare() threshold.SecretKeyShare {
	return n.cfg.Keys.BLSShares[n.cfg.Index]
}

type decryptionShareData struct {
	SignatureShare json.RawMessage `json:"signatureShare"`
	ShareID        string          `json:"shareId"`
}

func (n *Node) decryptionShare(ctx context.Context, plaintext []byte) (any, error) {
	var req api.DecryptRequest
	if err := json.Unmarshal(plaintext, &req); err != nil {
		return nil, fmt.Errorf("invalid decrypt request: %w", err)
	}
	if err := n.authorize(req.AuthSig, interfaces.AbilityAccessControlConditionDecryption); err != nil {
		return nil, err
	}

	sum, err := litclient.HashUnifiedAccessControlConditions(req.UnifiedAccessControlConditions)
	if err != nil {
		return nil, errNoConditions
	}
	if n.cfg.Conditions != nil {
		if err := n.cfg.Conditions(ctx, req.UnifiedAccessControlConditions, req.Chain); err != nil {
			return nil, fmt.Errorf("access control conditions not met: %w", err)
		}
	}

	identity := litclient.AccessControlIdentity(hex.EncodeToString(sum), req.DataToEncryptHash)
	share, err := threshold.SignShare(threshold.SignaturesInG2, n.blsShare(), []byte(identity))
	if err != nil {
		return nil, err
	}
	return decryptionShareData{
		SignatureShare: threshold.EncodeShare(share),
		ShareID:        fmt.Sprintf("%d", n.cfg.Index+1),
	}, nil
}

type pkpSignData struct {
	Success        bool                         `json:"success"`
	SignatureShare threshold.SignedMessageShare `json:"signatureShare"`
}

func (n *Node) pkpSign(ctx context.Context, plaintext []byte) (any, error) {
	var req api.PKPSignRequest
	if err := json.Unmarshal(plaintext, &req); err != nil {
		return nil, fmt.Errorf("invalid pkp sign request: %w", err)
	}
	if err := n.authorize(req.AuthSig, interfaces.AbilityPKPSigning); err != nil {
		return nil, err
	}
	if req.SigningScheme != cryptoutils.SchemeEcdsaK256Sha256 {
		return nil, fmt.Errorf("unsupported signing scheme %s", req.SigningScheme)
	}
	if err := n.checkPKP(req.Pubkey); err != nil {
		return nil, err
	}

	share, err := n.cfg.Keys.ecdsaShare(req.ToSign, req.NodeSet, n.nodeIndex(req.NodeSet), n.peerID())
	if err != nil {
		return nil, err
	}
	return pkpSignData{Success: true, SignatureShare: threshold.SignedMessageShare{Ecdsa: share}}, nil
}

func (n *Node) executeJs(ctx context.Context, plaintext []byte) (any, error) {
	var req api.ExecuteJsRequest
	if err := json.Unmarshal(plaintext, &req); err != nil {
		return nil, fmt.Errorf("invalid execute request: %w", err)
	}
	if err := n.authorize(req.AuthSig, interfaces.AbilityLitActionExecution); err != nil {
		return nil, err
	}

	result, err := n.runAction(ctx, req.Code, req.IpfsID, req.JsParams)
	if err != nil {
		return nil, err
	}

	signed := make(map[string]api.SignedDataEntry, len(result.Sign))
	for name, digest := range result.Sign {
		share, err := n.cfg.Keys.ecdsaShare(digest, req.NodeSet, n.nodeIndex(req.NodeSet), n.peerID())
		if err != nil {
			return nil, fmt.Errorf("signing %s: %w", name, err)
		}
		raw, err := json.Marshal(threshold.SignedMessageShare{Ecdsa: share})
		if err != nil {
			return nil, err
		}
		signed[name] = api.SignedDataEntry{SignatureShare: raw}
	}

	return api.ExecuteJsNodeData{
		Success:    true,
		SignedData: signed,
		ClaimData:  result.ClaimData,
		Response:   result.Response,
		Logs:       result.Logs,
	}, nil
}

func (n *Node) runAction(ctx context.Context, code, ipfsID string, params *api.JsParams) (*ActionResult, error) {
	if n.cfg.Actions == nil {
		return nil, errActionsOff
	}
	req := ActionRequest{IpfsID: ipfsID}
	if code != "" {
		decoded, err := base64.StdEncoding.DecodeString(code)
		if err != nil {
			return nil, fmt.Errorf("invalid code encoding: %w", err)
		}
		req.Code = string(decoded)
	}
	if params != nil {
		req.JsParams = params.JsParams
	}
	return n.cfg.Actions.Run(ctx, req)
}

type signSessionKeyData struct {
	SignatureShare json.RawMessage `json:"signatureShare"`
	SiweMessage    string          `json:"siweMessage"`
}

func (n *Node) signSessionKey(ctx context.Context, plaintext []byte) (any, error) {
	var req api.SignSessionKeyRequest
	if err := json.Unmarshal(plaintext, &req); err != nil {
		return nil, fmt.Errorf("invalid sign session key request: %w", err)
	}
	if err := n.checkPKP(req.PkpPublicKey); err != nil {
		return nil, err
	}
	if req.SiweMessage == "" || !strings.Contains(req.SiweMessage, req.SessionKey) {
		return nil, errors.New("siwe message does not name the session key")
	}

	if req.LitActionCode != "" || req.LitActionIpfsID != "" {
		result, err := n.runAction(ctx, req.LitActionCode, req.LitActionIpfsID, req.JsParams)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(result.Response) != "true" {
			return nil, errors.New("custom auth lit action did not authorize the session")
		}
	} else if len(req.AuthMethods) == 0 {
		return nil, errNoAuthMethods
	}

	n.mu.RLock()
	message := req.SiweMessage + n.siweClause
	n.mu.RUnlock()

	share, err := threshold.SignShare(threshold.SignaturesInG2, n.blsShare(), []byte(message))
	if err != nil {
		return nil, err
	}
	return signSessionKeyData{
		SignatureShare: threshold.EncodeShare(share),
		SiweMessage:    message,
	}, nil
}
