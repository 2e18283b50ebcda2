package provider

import (
	"context"
	"net"
	"syscall"

	"github.com/entalign/kgmorph/ai/openrouter"
	"github.com/entalign/kgmorph/errors"
)

// ErrTransient marks failures that are worth retrying: rate limits, server
// errors, timeouts, connection resets. Permanent failures (bad credentials,
// malformed requests) are never marked.
var ErrTransient = errors.New("transient provider error")

// classify marks err with ErrTransient when it looks retryable. Clients make
// exactly one attempt each; the perturbation engine retries on this mark.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return errors.Mark(err, ErrTransient)
	}
	return err
}

func isTransient(err error) bool {
	var statusErr *openrouter.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 429 || statusErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.IsAny(err, syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
