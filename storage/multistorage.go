package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// MultiStore mirrors sessions across several stores. Store writes to every
// available backend and Load reads from the first backend that has the name.
type MultiStore struct {
	stores []interfaces.SessionKeyStore
	log    *slog.Logger
}

func NewMultiStore(stores []interfaces.SessionKeyStore, log *slog.Logger) *MultiStore {
	return &MultiStore{
		stores: stores,
		log:    common.LoggerOrDefault(log),
	}
}

// Load returns ErrSessionKeyNotFound only when every reachable store reports
// the name as missing.
func (m *MultiStore) Load(ctx context.Context, name string) (*interfaces.AuthContext, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable", slog.String("store", store.Name()))
			continue
		}

		auth, err := store.Load(ctx, name)
		if err == nil {
			m.log.Debug("Loaded session",
				slog.String("store", store.Name()),
				slog.String("name", name),
				slog.Duration("duration", time.Since(start)))
			return auth, nil
		}
		if errors.Is(err, interfaces.ErrSessionKeyNotFound) {
			notFound++
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		m.log.Debug("Failed to load from store", slog.String("store", store.Name()), "err", err)
	}

	if len(errs) == 0 {
		if notFound == 0 {
			return nil, interfaces.ErrStoreUnavailable
		}
		return nil, interfaces.ErrSessionKeyNotFound
	}
	return nil, fmt.Errorf("all stores failed to load %s: %w", name, errors.Join(errs...))
}

// Store succeeds when at least one backend accepted the write.
func (m *MultiStore) Store(ctx context.Context, name string, auth *interfaces.AuthContext) error {
	var errs []error
	stored := 0

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable", slog.String("store", store.Name()))
			continue
		}

		if err := store.Store(ctx, name, auth); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			m.log.Warn("Failed to store session", slog.String("store", store.Name()), "err", err)
			continue
		}
		stored++
	}

	if stored == 0 {
		if len(errs) == 0 {
			return interfaces.ErrStoreUnavailable
		}
		return fmt.Errorf("all stores failed to store %s: %w", name, errors.Join(errs...))
	}
	return nil
}

// Available reports whether any backend is available.
func (m *MultiStore) Available(ctx context.Context) bool {
	for _, store := range m.stores {
		if store.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStore) Name() string {
	names := make([]string, 0, len(m.stores))
	for _, store := range m.stores {
		names = append(names, store.Name())
	}
	return "multi:[" + strings.Join(names, ",") + "]"
}
