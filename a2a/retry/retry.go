// Package retry classifies A2A call failures as retryable or not and
// drives the linear backoff described in spec §4.7 (backoffMs × attempt,
// the Open Question resolved in SPEC_FULL.md's Design Notes).
package retry

import (
	"context"
	"errors"
	"net"

	"github.com/goflow/orchestrator/a2a"
	"github.com/goflow/orchestrator/xerrors"
)

// IsRetryable classifies err per spec §7: transport errors, timeouts, and
// 5xx-equivalent JSON-RPC errors are retryable; payment errors, validation
// errors, and 4xx-equivalent JSON-RPC errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true // transport failure (timeout, refused, reset, ...)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	var rpcErr *a2a.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.IsPaymentRequired() {
			return false // a fresh challenge, not a transient failure
		}
		// JSON-RPC internal errors are treated as the protocol's
		// 5xx-equivalent; everything else (invalid params, method not
		// found, application-level 4xx) is not retried.
		return rpcErr.Code == a2a.JSONRPCInternalError
	}

	var xerr *xerrors.Error
	if errors.As(err, &xerr) {
		switch xerr.Kind {
		case xerrors.KindExecution:
			return true
		default:
			return false
		}
	}

	return false
}

// Backoff computes the linear backoff delay in milliseconds for the given
// 1-indexed retry attempt, per spec §4.7 / SPEC_FULL.md's resolved Open
// Question: backoffMs × attempt.
func Backoff(backoffMS int64, attempt int) int64 {
	if attempt < 1 {
		attempt = 1
	}
	return backoffMS * int64(attempt)
}
