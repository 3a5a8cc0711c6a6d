package remoteclient

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// retryTransport retries a request on transient transport errors and 5xx
// responses with exponential backoff and bounded jitter: the delay starts
// at 1s, doubles after every failed attempt, and gets up to 500ms of jitter
// on top. Retrying stops at either a total duration (the API client, ~5s)
// or an attempt count (the image client, 3).
//
// HTTP 210 and other 4xx responses are never retried here — risk control
// and envelope errors are decoded and handled by the caller, not treated as
// transport failures.
type retryTransport struct {
	base        http.RoundTripper
	maxTotal    time.Duration // 0 means no total-duration bound
	maxAttempts int           // 0 means no attempt-count bound
}

const retryBackoffBase = time.Second

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	deadline := time.Time{}
	if t.maxTotal > 0 {
		deadline = time.Now().Add(t.maxTotal)
	}

	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req)
		retryable := err != nil || resp.StatusCode >= 500
		if !retryable {
			return resp, nil
		}

		attemptsExhausted := t.maxAttempts > 0 && attempt+1 >= t.maxAttempts
		timeExhausted := !deadline.IsZero() && time.Now().After(deadline)
		if attemptsExhausted || timeExhausted || req.Context().Err() != nil {
			if err != nil {
				return nil, err
			}
			return resp, nil
		}
		if err == nil {
			resp.Body.Close()
		}

		backoff := retryBackoffBase << attempt
		delay := jitteredDelay(backoff, backoff+500*time.Millisecond)
		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}

		if req.Body != nil && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return resp, err
			}
			req.Body = body
		}
	}
}

// newErrGroup builds an errgroup bound to ctx, used for the chapter
// pagination fan-out (spec §4.1).
func newErrGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	return errgroup.WithContext(ctx)
}
