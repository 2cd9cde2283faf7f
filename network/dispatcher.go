package network

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ruteri/lit-quorum-client/api"
	"github.com/ruteri/lit-quorum-client/api/clients"
	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"golang.org/x/sync/errgroup"
)

// NodeRequest is the plaintext body sent to one node.
type NodeRequest struct {
	URL  string
	Body any
}

// Dispatcher fans an encrypted request out to a set of nodes and collects a quorum of replies.
type Dispatcher struct {
	Transport NodeTransport
	Log       *slog.Logger
}

type dispatchOutcome struct {
	batch *api.EncryptedBatch
	err   error
}

// Dispatch encrypts every request for its node, posts them concurrently and
// returns the decrypted "data" field of every value received. It fails unless at
// least minSuccesses nodes answered successfully.
func (d *Dispatcher) Dispatch(ctx context.Context, jit *cryptoutils.JitKeySet, endpoint Endpoint, requestID string, epoch uint64, requests []NodeRequest, minSuccesses int) ([]json.RawMessage, error) {
	log := common.LoggerOrDefault(d.Log)

	envelopes := make([]*api.EncryptedRequest, len(requests))
	secrets := make([][32]byte, len(requests))
	for i, req := range requests {
		plaintext, err := common.MarshalJSON(req.Body)
		if err != nil {
			return nil, interfaces.NetworkError("failed to marshal request for %s: %w", req.URL, err)
		}
		env, err := jit.EncryptFor(req.URL, plaintext)
		if err != nil {
			return nil, err
		}
		key, _ := jit.Key(req.URL)
		envelopes[i] = api.NewEncryptedRequest(env, epoch)
		secrets[i] = key.SecretKey
	}

	outcomes := make([]dispatchOutcome, len(requests))
	var g errgroup.Group
	for i, req := range requests {
		g.Go(func() error {
			fullURL := clients.ComposeURL(req.URL, endpoint.Path, endpoint.Version)
			batch, err := d.Transport.PostEncrypted(ctx, fullURL, requestID, envelopes[i], secrets[i])
			outcomes[i] = dispatchOutcome{batch: batch, err: err}
			return nil
		})
	}
	g.Wait()

	for i, outcome := range outcomes {
		if outcome.err != nil {
			log.Debug("node request failed",
				slog.String("node", requests[i].URL),
				slog.String("path", endpoint.Path),
				slog.String("requestId", requestID),
				slog.Any("error", outcome.err))
		}
	}

	merged, err := mergeBatches(outcomes, minSuccesses)
	if err != nil {
		return nil, err
	}

	return DecryptValues(jit, merged)
}

// mergeBatches combines the per-node outcomes into one batch holding the values
// of every successful node.
func mergeBatches(outcomes []dispatchOutcome, minSuccesses int) (*api.EncryptedBatch, error) {
	var values []cryptoutils.Envelope
	errs := []json.RawMessage{}
	successes := 0

	for _, outcome := range outcomes {
		switch {
		case outcome.err != nil:
			msg, _ := json.Marshal(map[string]string{"error": outcome.err.Error()})
			errs = append(errs, msg)
		case outcome.batch.Success:
			successes++
			values = append(values, outcome.batch.Values...)
		case len(outcome.batch.Error) > 0:
			errs = append(errs, outcome.batch.Error)
		default:
			raw, _ := json.Marshal(outcome.batch)
			errs = append(errs, raw)
		}
	}

	if len(values) == 0 || successes < minSuccesses {
		encoded, _ := json.Marshal(errs)
		return nil, interfaces.NewError(interfaces.KindNetwork, interfaces.ErrInsufficientSuccesses,
			"insufficient successful encrypted responses: got %d, need %d; errors=%s", successes, minSuccesses, string(encoded))
	}

	return &api.EncryptedBatch{Success: true, Values: values}, nil
}

// DecryptValues opens every value of a merged batch and extracts its "data" field.
func DecryptValues(jit *cryptoutils.JitKeySet, batch *api.EncryptedBatch) ([]json.RawMessage, error) {
	if !batch.Success {
		return nil, interfaces.NetworkError("batch decrypt failed")
	}

	out := make([]json.RawMessage, 0, len(batch.Values))
	for i := range batch.Values {
		plaintext, err := jit.Decrypt(&batch.Values[i])
		if err != nil {
			return nil, err
		}

		var resp api.NodeResponse
		if err := json.Unmarshal(plaintext, &resp); err != nil {
			return nil, interfaces.NetworkError("invalid node response: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, interfaces.NetworkError("missing data field")
		}
		out = append(out, resp.Data)
	}
	return out, nil
}

// DecodeData decodes every decrypted node value into T.
func DecodeData[T any](values []json.RawMessage) ([]T, error) {
	out := make([]T, len(values))
	for i, raw := range values {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, interfaces.NetworkError("invalid node data: %w", err)
		}
	}
	return out, nil
}
