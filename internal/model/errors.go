package model

import (
	"errors"
	"strings"
)

// Sentinel errors recognized by the validation engine (§7 of the
// specification). Scanners and nodes should return one of these, wrapped
// with fmt.Errorf("...: %w", ...) for additional context, rather than
// relying on the substring fallback below.
var (
	// ErrProductNotFound is returned when a platform clearly reports a
	// product no longer exists. Never counted as a retryable failure.
	ErrProductNotFound = errors.New("product not found")

	// ErrCloudflareBlocked is a transient anti-bot block. Contributes to a
	// batch's consecutive-failure counter.
	ErrCloudflareBlocked = errors.New("cloudflare blocked request")

	// ErrNetworkError is a transient network failure (timeout, reset,
	// DNS). Contributes to a batch's consecutive-failure counter.
	ErrNetworkError = errors.New("network error")

	// ErrExtractionFailed is a deterministic scraper/DOM mismatch; does
	// not normally retry within the same job.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrBrowserError is a lower-level browser crash; the containing
	// batch rebuilds its context.
	ErrBrowserError = errors.New("browser error")

	// ErrValidation means a node's input violated its contract. The node
	// fails fast and does not touch the JSONL.
	ErrValidation = errors.New("validation error")

	// ErrConfigMissing means a platform has no registered configuration.
	// Fatal to the job.
	ErrConfigMissing = errors.New("platform config missing")

	// ErrRepository wraps a partial batch-update failure; Update logs and
	// aggregates, it never aborts the job because of this.
	ErrRepository = errors.New("repository error")
)

// ClassifyScanError maps an arbitrary error from a third-party dependency
// (chromedp, net/http) that doesn't return one of the sentinels above onto
// the closest one, via substring match on its message. This fallback
// exists only for errors this package doesn't control the shape of; scanner
// code under our control should always return a wrapped sentinel directly.
func ClassifyScanError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrCloudflareBlocked) ||
		errors.Is(err, ErrNetworkError) || errors.Is(err, ErrExtractionFailed) ||
		errors.Is(err, ErrBrowserError) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "삭제된 상품"), strings.Contains(msg, "상품 정보 없음"):
		return errorsJoin(ErrProductNotFound, err)
	case strings.Contains(msg, "cloudflare"):
		return errorsJoin(ErrCloudflareBlocked, err)
	case strings.Contains(msg, "net::"), strings.Contains(msg, "timeout"), strings.Contains(msg, "connection refused"):
		return errorsJoin(ErrNetworkError, err)
	default:
		return errorsJoin(ErrBrowserError, err)
	}
}

func errorsJoin(sentinel, wrapped error) error {
	return &classifiedError{sentinel: sentinel, wrapped: wrapped}
}

type classifiedError struct {
	sentinel error
	wrapped  error
}

func (e *classifiedError) Error() string { return e.wrapped.Error() }
func (e *classifiedError) Unwrap() []error {
	return []error{e.sentinel, e.wrapped}
}
