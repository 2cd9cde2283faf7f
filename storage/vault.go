package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// VaultStore keeps auth contexts in a HashiCorp Vault KV v2 mount.
type VaultStore struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// VaultAuth selects how the store authenticates to Vault. Either a token or a
// TLS client certificate (for the cert auth method) can be used.
type VaultAuth struct {
	Token      string
	ClientCert *tls.Certificate
}

// NewVaultStore creates a Vault backed session store.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "lit")
//   - auth: Token or client certificate credentials
//   - log: Structured logger
func NewVaultStore(address, mountPath, dataPath string, auth VaultAuth, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address
	if auth.ClientCert != nil {
		config.HttpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{*auth.ClientCert}},
			},
			Timeout: 30 * time.Second,
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if auth.Token != "" {
		client.SetToken(auth.Token)
	}

	return &VaultStore{
		client:    client,
		mountPath: strings.Trim(mountPath, "/"),
		dataPath:  strings.Trim(dataPath, "/"),
		log:       log,
	}, nil
}

func (s *VaultStore) path(name string) string {
	if s.dataPath == "" {
		return fmt.Sprintf("%s/data/sessions/%s", s.mountPath, name)
	}
	return fmt.Sprintf("%s/data/%s/sessions/%s", s.mountPath, s.dataPath, name)
}

// Load reads the auth context stored under name.
func (s *VaultStore) Load(ctx context.Context, name string) (*interfaces.AuthContext, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	start := time.Now()
	path := s.path(name)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		s.log.Error("Failed to read from Vault", slog.String("path", path), "err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrSessionKeyNotFound
	}

	// KV v2 nests the stored fields under "data"; deleted versions have it set to nil.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, interfaces.ErrSessionKeyNotFound
	}
	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid content format in Vault data at %s", path)
	}

	s.log.Debug("Loaded session from Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	return decodeAuthContext([]byte(content))
}

// Store writes auth under name as a new KV version.
func (s *VaultStore) Store(ctx context.Context, name string, auth *interfaces.AuthContext) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	encoded, err := encodeAuthContext(auth)
	if err != nil {
		return err
	}

	start := time.Now()
	path := s.path(name)
	_, err = s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"data": map[string]interface{}{
			"content": string(encoded),
		},
	})
	if err != nil {
		s.log.Error("Failed to write to Vault", slog.String("path", path), "err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	s.log.Info("Stored session in Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Available checks that Vault is initialized and unsealed.
func (s *VaultStore) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := s.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		s.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		s.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}
	return true
}

func (s *VaultStore) Name() string {
	return fmt.Sprintf("vault-%s-%s", s.mountPath, s.dataPath)
}
