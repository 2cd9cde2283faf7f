package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// IPFSActionStore pins Lit Action code on an IPFS node and fetches it back by CID.
type IPFSActionStore struct {
	shell  *shell.Shell
	apiURL string
	log    *slog.Logger
}

// NewIPFSActionStore connects to the IPFS HTTP API at apiURL (e.g. "localhost:5001"
// or "http://ipfs:5001").
func NewIPFSActionStore(apiURL string, log *slog.Logger) *IPFSActionStore {
	return &IPFSActionStore{
		shell:  shell.NewShell(apiURL),
		apiURL: apiURL,
		log:    log,
	}
}

// Publish adds and pins code, returning its CID. The CID is what executeJs and
// custom auth accept as the lit action ipfs id.
func (s *IPFSActionStore) Publish(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", interfaces.ConfigError("lit action code is empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cid, err := s.shell.Add(strings.NewReader(code), shell.Pin(true))
	if err != nil {
		return "", fmt.Errorf("%w: failed to add lit action to IPFS: %v", interfaces.ErrStoreUnavailable, err)
	}

	s.log.Info("Published lit action to IPFS",
		slog.String("cid", cid),
		slog.Int("size", len(code)))
	return cid, nil
}

// Fetch returns the code stored under cid.
func (s *IPFSActionStore) Fetch(ctx context.Context, cid string) (string, error) {
	start := time.Now()
	cid = strings.TrimPrefix(cid, "/ipfs/")
	if cid == "" {
		return "", interfaces.ConfigError("empty ipfs id")
	}

	resp, err := s.shell.Request("cat", cid).Send(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	defer resp.Close()
	if resp.Error != nil {
		return "", fmt.Errorf("failed to fetch %s from IPFS: %s", cid, resp.Error.Message)
	}

	data, err := io.ReadAll(resp.Output)
	if err != nil {
		return "", fmt.Errorf("failed to read %s from IPFS: %w", cid, err)
	}

	s.log.Debug("Fetched lit action from IPFS",
		slog.String("cid", cid),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))
	return string(data), nil
}

// Available checks whether the IPFS node answers.
func (s *IPFSActionStore) Available(ctx context.Context) bool {
	return s.shell.IsUp()
}

func (s *IPFSActionStore) Name() string {
	return fmt.Sprintf("ipfs-%s", s.apiURL)
}
