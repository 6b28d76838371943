package synth

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ReachabilityProbe reports whether the network synthesis endpoint is worth
// attempting. The orchestrator consults it before the first network attempt
// so an offline host skips straight to the local engine instead of burning
// the attempt budget on connection timeouts.
type ReachabilityProbe func(ctx context.Context) error

// NewHTTPProbe returns a probe that issues a HEAD request against the
// endpoint. Any HTTP response, success or error status, proves reachability;
// only transport failures count as unreachable.
func NewHTTPProbe(endpoint string, timeout time.Duration) ReachabilityProbe {
	client := &http.Client{
		Transport:     nil,
		CheckRedirect: nil,
		Jar:           nil,
		Timeout:       timeout,
	}

	return func(ctx context.Context) error {
		request, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create probe request: %w", err)
		}

		response, err := client.Do(request)
		if err != nil {
			return fmt.Errorf("endpoint unreachable: %w", err)
		}

		closeErr := response.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("failed to close probe response: %w", closeErr)
		}

		return nil
	}
}
