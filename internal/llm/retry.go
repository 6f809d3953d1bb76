package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pdfqa/internal/apperr"
	"pdfqa/internal/contextutil"
)

// call runs op with a per-attempt timeout and retries transient failures with
// exponential backoff. The final error is tagged apperr.ErrModelCall.
func call(ctx context.Context, opts Options, what string, op func(ctx context.Context) error) error {
	logger := contextutil.LoggerFromContext(ctx)

	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = attemptOnce(ctx, opts.Timeout, op)
		if err == nil {
			return nil
		}
		if attempt >= opts.MaxRetries || ctx.Err() != nil || !isTransient(err) {
			break
		}

		delay := backoff << attempt
		logger.WarnContext(ctx, "model call failed, retrying",
			"call", what,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.ErrModelCall, ctx.Err(), what)
		case <-time.After(delay):
		}
	}

	return apperr.Wrap(apperr.ErrModelCall, err, what)
}

func attemptOnce(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := op(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		// Some transports report the expired deadline as a generic failure.
		err = fmt.Errorf("timed out after %s: %w (%v)", timeout, context.DeadlineExceeded, err)
	}
	return err
}

// isTransient reports whether a retry might succeed: rate limits, server errors,
// network failures and per-call timeouts.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func newOpenAIClient(opts Options) *openai.Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return openai.NewClientWithConfig(cfg)
}
