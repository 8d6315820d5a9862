package github

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
)

const mediaTypeJSON = "application/vnd.github+json"

// instrumentedTransport throttles, stamps the API headers on and logs every outbound call.
// It sits below the auth transport so the logged Authorization header is the real one,
// masked.
type instrumentedTransport struct {
	base       http.RoundTripper
	limiter    *rate.Limiter
	apiVersion string
	now        func() time.Time
}

func newInstrumentedTransport(base http.RoundTripper, limiter *rate.Limiter, apiVersion string) *instrumentedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &instrumentedTransport{
		base:       base,
		limiter:    limiter,
		apiVersion: apiVersion,
		now:        time.Now,
	}
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := logging.WithComponent(req.Context(), "github.client")

	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, errs.Wrap(err, "wait for github rate limiter")
		}
	}

	out := req.Clone(req.Context())
	out.Header.Set("Accept", mediaTypeJSON)
	if t.apiVersion != "" {
		out.Header.Set("X-GitHub-Api-Version", t.apiVersion)
	}

	var requestBody []byte
	if out.Body != nil && out.Body != http.NoBody {
		body, err := io.ReadAll(out.Body)
		_ = out.Body.Close()
		if err != nil {
			return nil, errs.Wrap(err, "read github request body")
		}
		requestBody = body
		out.Body = io.NopCloser(bytes.NewReader(body))
	}

	started := t.now()
	res, err := t.base.RoundTrip(out)
	elapsed := t.now().Sub(started)

	attrs := []slog.Attr{
		slog.String("method", out.Method),
		slog.String("url", out.URL.String()),
		slog.Any("headers", redactHeaders(out.Header)),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil {
		logging.Warn(ctx, "github request failed", append(attrs, errs.Attr(err))...)
		return nil, err
	}

	responseBody, readErr := io.ReadAll(res.Body)
	_ = res.Body.Close()
	res.Body = io.NopCloser(bytes.NewReader(responseBody))
	if readErr != nil {
		logging.Warn(ctx, "github response body unreadable", append(attrs, errs.Attr(readErr))...)
		return nil, errs.Wrap(readErr, "read github response body")
	}

	attrs = append(attrs, slog.Int("status", res.StatusCode))
	logging.Info(ctx, "github request", attrs...)
	logging.Debug(ctx, "github exchange",
		slog.String("method", out.Method),
		slog.String("url", out.URL.String()),
		slog.Any("request_body", redactBody(requestBody)),
		slog.Any("response_body", redactBody(responseBody)),
		slog.Int("status", res.StatusCode),
	)
	return res, nil
}
