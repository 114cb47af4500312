package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hazz-dev/watchdog/internal/config"
)

// maxDetail bounds the detail string stored with a result.
const maxDetail = 300

// Prober performs a single bounded probe of a target.
type Prober interface {
	Probe(ctx context.Context, t config.Target) Result
}

// HTTPProber probes targets with a GET request. It is a total function over
// network conditions: every failure mode is classified into a Result, never
// returned as an error.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber returns a prober backed by a shared HTTP client. The client
// carries no timeout of its own; each probe is bounded by a context deadline
// derived from the target's timeout.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{client: &http.Client{}}
}

func (p *HTTPProber) Probe(ctx context.Context, t config.Target) Result {
	start := time.Now()
	result := Result{
		Target:   t.Name,
		ProbedAt: start.UTC(),
	}

	pctx, cancel := context.WithTimeout(ctx, t.Timeout.Duration)
	defer cancel()

	req, err := http.NewRequestWithContext(pctx, http.MethodGet, t.URL, nil)
	if err != nil {
		result.Outcome = OutcomeError
		result.Detail = truncate(fmt.Sprintf("creating request: %v", err))
		return result
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return classifyTransportError(result, pctx, err)
	}

	// Drain the body so latency covers response completion and the
	// connection can be reused.
	_, err = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err != nil {
		return classifyTransportError(result, pctx, err)
	}

	result.Latency = time.Since(start)
	result.Detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
	if resp.StatusCode < 400 {
		result.Outcome = OutcomeSuccess
	} else {
		result.Outcome = OutcomeFailure
	}
	return result
}

// classifyTransportError fills in the outcome for a request that produced no
// usable response. A probe that hit its own deadline is a timeout; anything
// else (DNS, refused connection, TLS, truncated body) is an error. Latency is
// left zero in both cases.
func classifyTransportError(result Result, pctx context.Context, err error) Result {
	if errors.Is(pctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		result.Outcome = OutcomeTimeout
		result.Detail = "timeout"
		return result
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		result.Outcome = OutcomeTimeout
		result.Detail = "timeout"
		return result
	}
	result.Outcome = OutcomeError
	result.Detail = truncate(err.Error())
	return result
}

func truncate(s string) string {
	if len(s) > maxDetail {
		return s[:maxDetail]
	}
	return s
}
