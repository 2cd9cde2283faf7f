package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruteri/lit-quorum-client/cmd/flags"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/litclient"
	"github.com/ruteri/lit-quorum-client/sessions"
	"github.com/ruteri/lit-quorum-client/storage"
	"github.com/urfave/cli/v2"
)

const defaultSessionTTL = 24 * time.Hour

// readArg returns value, or the contents of the file it names when prefixed with "@".
func readArg(value string) (string, error) {
	if !strings.HasPrefix(value, "@") {
		return value, nil
	}
	data, err := os.ReadFile(strings.TrimPrefix(value, "@"))
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", value, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func readJSONArg(value string) (any, error) {
	if value == "" {
		return nil, nil
	}
	raw, err := readArg(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, interfaces.ConfigError("invalid JSON in %q: %w", value, err)
	}
	return out, nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func connect(cCtx *cli.Context, log *slog.Logger) (*litclient.Client, error) {
	cfg, err := flags.NetworkConfig(cCtx)
	if err != nil {
		return nil, err
	}

	log.Info("Connecting to network",
		slog.String("network", cfg.Network),
		slog.Int("bootstrap", len(cfg.BootstrapURLs)))

	client, err := litclient.Connect(cCtx.Context, cfg, flags.ClientOptions(cCtx, log, buildSiwe))
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", cfg.Network, err)
	}
	return client, nil
}

func sessionStore(cCtx *cli.Context, log *slog.Logger) (interfaces.SessionKeyStore, error) {
	uris := cCtx.StringSlice(flagSessionStore.Name)
	if len(uris) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("no --%s given and no home directory: %w", flagSessionStore.Name, err)
		}
		uris = []string{"file://" + filepath.Join(home, ".lit")}
	}
	return storage.NewMultiSessionKeyStore(uris, log)
}

func loadSession(cCtx *cli.Context, log *slog.Logger) (*interfaces.AuthContext, error) {
	store, err := sessionStore(cCtx, log)
	if err != nil {
		return nil, err
	}

	name := cCtx.String(flagSession.Name)
	auth, err := store.Load(cCtx.Context, name)
	if errors.Is(err, interfaces.ErrSessionKeyNotFound) {
		return nil, fmt.Errorf("no session %q in %s, run 'litclient session create' first", name, store.Name())
	}
	if err != nil {
		return nil, err
	}
	return litclient.CreatePkpAuthContextFromPreGenerated(auth.SessionKeyPair, auth.DelegationAuthSig, auth.AuthConfig)
}

func conditionsFromFlags(cCtx *cli.Context) (json.RawMessage, string, error) {
	hashHex := cCtx.String(flagConditionsHash.Name)
	raw := cCtx.String(flagConditions.Name)
	if raw == "" {
		return nil, hashHex, nil
	}
	conditions, err := readArg(raw)
	if err != nil {
		return nil, "", err
	}
	return json.RawMessage(conditions), hashHex, nil
}

func runHandshake(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	client, err := connect(cCtx, log)
	if err != nil {
		return err
	}

	hs := client.Handshake()
	return printJSON(map[string]any{
		"connectedNodes": hs.ConnectedNodes,
		"threshold":      hs.Threshold,
		"epoch":          hs.Epoch,
		"subnetPubKey":   hs.CoreNodeConfig.SubnetPubKey,
		"networkPubKey":  hs.CoreNodeConfig.NetworkPubKey,
	})
}

func runEncrypt(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	data, err := readArg(cCtx.String("data"))
	if err != nil {
		return err
	}
	conditions, hashHex, err := conditionsFromFlags(cCtx)
	if err != nil {
		return err
	}

	client, err := connect(cCtx, log)
	if err != nil {
		return err
	}

	resp, err := client.Encrypt(litclient.EncryptParams{
		DataToEncrypt:                    []byte(data),
		UnifiedAccessControlConditions:   conditions,
		HashedAccessControlConditionsHex: hashHex,
	})
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}
	return printJSON(resp)
}

func runDecrypt(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	ciphertext, err := readArg(cCtx.String("ciphertext"))
	if err != nil {
		return err
	}
	conditions, hashHex, err := conditionsFromFlags(cCtx)
	if err != nil {
		return err
	}
	auth, err := loadSession(cCtx, log)
	if err != nil {
		return err
	}

	client, err := connect(cCtx, log)
	if err != nil {
		return err
	}

	resp, err := client.Decrypt(cCtx.Context, litclient.DecryptParams{
		Ciphertext:                       strings.TrimSpace(ciphertext),
		DataToEncryptHash:                cCtx.String("data-hash"),
		UnifiedAccessControlConditions:   conditions,
		HashedAccessControlConditionsHex: hashHex,
		Chain:                            cCtx.String("chain"),
	}, auth)
	if err != nil {
		return fmt.Errorf("decryption failed: %w", err)
	}

	os.Stdout.Write(resp.DecryptedData)
	return nil
}

func runPkpSign(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)

	var toSign []byte
	switch {
	case cCtx.IsSet("message-hex"):
		decoded, err := hex.DecodeString(strings.TrimPrefix(cCtx.String("message-hex"), "0x"))
		if err != nil {
			return interfaces.ConfigError("invalid --message-hex: %w", err)
		}
		toSign = decoded
	case cCtx.IsSet("message"):
		toSign = []byte(cCtx.String("message"))
	default:
		return interfaces.ConfigError("one of --message or --message-hex is required")
	}

	auth, err := loadSession(cCtx, log)
	if err != nil {
		return err
	}
	client, err := connect(cCtx, log)
	if err != nil {
		return err
	}

	sig, err := client.PkpSign(cCtx.Context, litclient.PkpSignParams{
		Chain:             cCtx.String("chain"),
		SigningScheme:     cCtx.String("scheme"),
		Pubkey:            cCtx.String("pubkey"),
		ToSign:            toSign,
		BypassAutoHashing: cCtx.Bool("bypass-hashing"),
	}, auth)
	if err != nil {
		return fmt.Errorf("signing failed: %w", err)
	}
	return printJSON(sig)
}

// actionFromFlags reads --code, --ipfs-id and --js-params. Exactly one of code and
// ipfs id must be given.
func actionFromFlags(cCtx *cli.Context) (code, ipfsID string, jsParams any, err error) {
	if cCtx.String(flagCode.Name) != "" {
		code, err = readArg(cCtx.String(flagCode.Name))
		if err != nil {
			return "", "", nil, err
		}
	}
	ipfsID = cCtx.String(flagIpfsID.Name)
	if (code == "") == (ipfsID == "") {
		return "", "", nil, interfaces.ConfigError("exactly one of --%s or --%s is required", flagCode.Name, flagIpfsID.Name)
	}
	jsParams, err = readJSONArg(cCtx.String(flagJsParams.Name))
	return code, ipfsID, jsParams, err
}

func runExecute(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	code, ipfsID, jsParams, err := actionFromFlags(cCtx)
	if err != nil {
		return err
	}

	strategy := litclient.ResponseStrategy(cCtx.String("strategy"))
	if strategy != litclient.LeastCommon && strategy != litclient.MostCommon {
		return interfaces.ConfigError("invalid --strategy %q", strategy)
	}

	auth, err := loadSession(cCtx, log)
	if err != nil {
		return err
	}
	client, err := connect(cCtx, log)
	if err != nil {
		return err
	}

	resp, err := client.ExecuteJs(cCtx.Context, litclient.ExecuteJsParams{
		Code:     code,
		IpfsID:   ipfsID,
		JsParams: jsParams,
	}, litclient.ExecuteJsOptions{
		Strategy:      strategy,
		UseSingleNode: cCtx.Bool("single-node"),
	}, auth)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	return printJSON(resp)
}

// sessionAuthConfig grants every ability the CLI commands need.
func sessionAuthConfig(ttl time.Duration) (interfaces.AuthConfig, error) {
	abilities := []interfaces.LitAbility{
		interfaces.AbilityAccessControlConditionDecryption,
		interfaces.AbilityPKPSigning,
		interfaces.AbilityLitActionExecution,
	}

	cfg := interfaces.AuthConfig{
		Expiration: time.Now().Add(ttl).UTC().Format(time.RFC3339),
	}
	for _, ability := range abilities {
		req, err := sessions.NewResourceAbilityRequest(ability, "*")
		if err != nil {
			return cfg, err
		}
		cfg.Resources = append(cfg.Resources, req)
	}
	return cfg, nil
}

func runSessionCreate(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)

	authConfig, err := sessionAuthConfig(cCtx.Duration("ttl"))
	if err != nil {
		return err
	}
	params := litclient.AuthContextParams{
		PkpPublicKey: cCtx.String("pkp-public-key"),
		AuthConfig:   authConfig,
	}

	custom := cCtx.IsSet(flagCode.Name) || cCtx.IsSet(flagIpfsID.Name)
	var customAuth litclient.CustomAuth
	if custom {
		customAuth.LitActionCode, customAuth.LitActionIpfsID, customAuth.JsParams, err = actionFromFlags(cCtx)
		if err != nil {
			return err
		}
	} else {
		if !cCtx.IsSet("auth-method-type") {
			return interfaces.ConfigError("--auth-method-type and --access-token are required without a lit action")
		}
		params.AuthMethods = []interfaces.AuthMethod{{
			AuthMethodType: uint32(cCtx.Uint("auth-method-type")),
			AccessToken:    cCtx.String("access-token"),
		}}
	}

	store, err := sessionStore(cCtx, log)
	if err != nil {
		return err
	}
	client, err := connect(cCtx, log)
	if err != nil {
		return err
	}

	var auth *interfaces.AuthContext
	if custom {
		auth, err = client.CreateCustomAuthContext(cCtx.Context, params, customAuth)
	} else {
		auth, err = client.CreatePkpAuthContext(cCtx.Context, params)
	}
	if err != nil {
		return fmt.Errorf("could not create session: %w", err)
	}

	name := cCtx.String(flagSession.Name)
	if err := store.Store(cCtx.Context, name, auth); err != nil {
		return fmt.Errorf("could not store session %q: %w", name, err)
	}

	log.Info("Session stored",
		slog.String("name", name),
		slog.String("store", store.Name()),
		slog.String("expiration", auth.AuthConfig.Expiration))
	return printJSON(sessionSummary(name, auth))
}

func sessionSummary(name string, auth *interfaces.AuthContext) map[string]any {
	return map[string]any{
		"name":       name,
		"sessionKey": sessions.SessionKeyURI(auth.SessionKeyPair.PublicKey),
		"address":    auth.DelegationAuthSig.Address,
		"expiration": auth.AuthConfig.Expiration,
	}
}

func runSessionShow(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	auth, err := loadSession(cCtx, log)
	if err != nil {
		return err
	}
	return printJSON(sessionSummary(cCtx.String(flagSession.Name), auth))
}

func runActionPublish(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	code, err := readArg(cCtx.String(flagCode.Name))
	if err != nil {
		return err
	}

	store := storage.NewIPFSActionStore(cCtx.String(flagIpfsAPI.Name), log)
	cid, err := store.Publish(cCtx.Context, code)
	if err != nil {
		return err
	}
	fmt.Println(cid)
	return nil
}

func runActionFetch(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	store := storage.NewIPFSActionStore(cCtx.String(flagIpfsAPI.Name), log)
	code, err := store.Fetch(cCtx.Context, cCtx.String(flagIpfsID.Name))
	if err != nil {
		return err
	}
	fmt.Println(code)
	return nil
}
