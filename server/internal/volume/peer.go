package volume

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/blockcache/blockcache/pkg/metrics"
	"github.com/blockcache/blockcache/pkg/types"
)

// maxPeerBody caps how much of a peer response is read.
const maxPeerBody = 1 << 16

// PeerSource asks the cache binary's POST /volume endpoint.
type PeerSource struct {
	url    string
	client *http.Client
}

// NewPeerSource returns a PeerSource whose every call, connect through body
// read, is bounded by timeout.
func NewPeerSource(url string, timeout time.Duration) *PeerSource {
	return &PeerSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name implements named.
func (p *PeerSource) Name() string { return "peer" }

// peerReply uses pointers so missing fields can be told apart from zeros.
type peerReply struct {
	PoolAddress *string  `json:"pool_address"`
	Volume      *float64 `json:"volume"`
}

// Volume implements Source. Transport errors, timeouts and non-2xx answers
// return types.ErrPeerUnreachable; a 2xx body that is not a valid answer for
// pool returns types.ErrMalformedPeerResponse.
func (p *PeerSource) Volume(ctx context.Context, pool string) (float64, error) {
	body, err := json.Marshal(types.VolumeRequest{PoolAddress: pool})
	if err != nil {
		return 0, fmt.Errorf("peer: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("peer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, p.fail("unreachable", fmt.Errorf("%w: %w", types.ErrPeerUnreachable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxPeerBody)) //nolint:errcheck
		return 0, p.fail("status", fmt.Errorf("%w: %s returned %d", types.ErrPeerUnreachable, p.url, resp.StatusCode))
	}

	var reply peerReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPeerBody)).Decode(&reply); err != nil {
		// A timeout while reading the body is still a reachability problem.
		if ctx.Err() != nil || isTimeout(err) {
			return 0, p.fail("unreachable", fmt.Errorf("%w: read body: %w", types.ErrPeerUnreachable, err))
		}
		return 0, p.fail("malformed", fmt.Errorf("%w: decode: %w", types.ErrMalformedPeerResponse, err))
	}
	switch {
	case reply.PoolAddress == nil || reply.Volume == nil:
		return 0, p.fail("malformed", fmt.Errorf("%w: missing pool_address or volume", types.ErrMalformedPeerResponse))
	case *reply.PoolAddress != pool:
		return 0, p.fail("malformed", fmt.Errorf("%w: asked for %s, got %s", types.ErrMalformedPeerResponse, pool, *reply.PoolAddress))
	case *reply.Volume < 0 || math.IsNaN(*reply.Volume) || math.IsInf(*reply.Volume, 0):
		return 0, p.fail("malformed", fmt.Errorf("%w: invalid volume %v", types.ErrMalformedPeerResponse, *reply.Volume))
	}
	return *reply.Volume, nil
}

func (p *PeerSource) fail(reason string, err error) error {
	metrics.PeerFailures.WithLabelValues(reason).Inc()
	return err
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
