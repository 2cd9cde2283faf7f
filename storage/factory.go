package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// NewSessionKeyStore creates a session store from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params].
//
// Supported schemes:
//   - file:///absolute/path or file://./relative/path
//   - vault://host:port/mount/path?token=...&http=true
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-west-2&endpoint=minio:9000
func NewSessionKeyStore(locationURI string, log *slog.Logger) (interfaces.SessionKeyStore, error) {
	log = common.LoggerOrDefault(log)

	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, interfaces.ConfigError("invalid store URI %q: %w", locationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return createFileStore(u, log)
	case "vault":
		return createVaultStore(u, log)
	case "s3":
		return createS3Store(u, log)
	default:
		return nil, interfaces.ConfigError("unsupported store scheme: %q", u.Scheme)
	}
}

// NewMultiSessionKeyStore creates a MultiStore from several location URIs.
// URIs that fail to parse are logged and skipped; at least one must succeed.
func NewMultiSessionKeyStore(locationURIs []string, log *slog.Logger) (interfaces.SessionKeyStore, error) {
	log = common.LoggerOrDefault(log)
	if len(locationURIs) == 1 {
		return NewSessionKeyStore(locationURIs[0], log)
	}

	stores := make([]interfaces.SessionKeyStore, 0, len(locationURIs))
	for _, uri := range locationURIs {
		store, err := NewSessionKeyStore(uri, log)
		if err != nil {
			log.Warn("Failed to create session store", "err", err, slog.String("uri", uri))
			continue
		}
		stores = append(stores, store)
	}

	if len(stores) == 0 {
		return nil, interfaces.ConfigError("no valid session stores configured")
	}
	return NewMultiStore(stores, log), nil
}

// file:///abs/path keeps the path as is, file://./rel/path joins host and path.
func createFileStore(u *url.URL, log *slog.Logger) (interfaces.SessionKeyStore, error) {
	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, interfaces.ConfigError("empty path in file URI: %s", u.String())
	}
	return NewFileStore(path, log)
}

func createVaultStore(u *url.URL, log *slog.Logger) (interfaces.SessionKeyStore, error) {
	if u.Host == "" {
		return nil, interfaces.ConfigError("vault URI needs a host: %s", u.Redacted())
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	mount := parts[0]
	if mount == "" {
		mount = "secret"
	}
	dataPath := ""
	if len(parts) == 2 {
		dataPath = parts[1]
	}

	query := u.Query()
	scheme := "https"
	if query.Get("http") == "true" {
		scheme = "http"
	}

	return NewVaultStore(fmt.Sprintf("%s://%s", scheme, u.Host), mount, dataPath, VaultAuth{Token: query.Get("token")}, log)
}

func createS3Store(u *url.URL, log *slog.Logger) (interfaces.SessionKeyStore, error) {
	query := u.Query()
	opts := S3Options{
		Bucket:   u.Host,
		Prefix:   strings.TrimPrefix(u.Path, "/"),
		Region:   query.Get("region"),
		Endpoint: query.Get("endpoint"),
	}
	if u.User != nil {
		opts.AccessKey = u.User.Username()
		opts.SecretKey, _ = u.User.Password()
	}
	return NewS3Store(opts, log)
}
