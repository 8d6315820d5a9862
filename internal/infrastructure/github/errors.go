package github

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"gissues/internal/domain/mirror"
)

// classify maps a go-github failure onto the mirror error taxonomy.
func classify(resp *gh.Response, err error) error {
	if err == nil {
		return nil
	}
	var (
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
		twoFA    *gh.TwoFactorAuthError
		errResp  *gh.ErrorResponse
	)

	switch {
	case errors.As(err, &rateErr):
		method, target := requestOf(rateErr.Response, resp, err)
		return mirror.NewInvalidRequest(method, target, statusOf(rateErr.Response), rateErr.Message, payloadOf(rateErr.Response, rateErr.Message))
	case errors.As(err, &abuseErr):
		method, target := requestOf(abuseErr.Response, resp, err)
		return mirror.NewInvalidRequest(method, target, statusOf(abuseErr.Response), abuseErr.Message, payloadOf(abuseErr.Response, abuseErr.Message))
	case errors.As(err, &twoFA):
		method, target := requestOf(twoFA.Response, resp, err)
		return mirror.NewInvalidRequest(method, target, statusOf(twoFA.Response), twoFA.Message, payloadOf(twoFA.Response, twoFA.Message))
	case errors.As(err, &errResp):
		method, target := requestOf(errResp.Response, resp, err)
		status := statusOf(errResp.Response)
		switch {
		case status >= http.StatusInternalServerError:
			return mirror.NewUnavailable(method, target, status, errResp.Message, nil)
		case status == http.StatusNotFound:
			return mirror.NewNotFound(method, target)
		default:
			return mirror.NewInvalidRequest(method, target, status, errResp.Message, payloadOf(errResp.Response, errResp.Message))
		}
	default:
		method, target := requestOf(nil, resp, err)
		return mirror.NewUnavailable(method, target, 0, "", err)
	}
}

func statusOf(res *http.Response) int {
	if res == nil {
		return 0
	}
	return res.StatusCode
}

func requestOf(res *http.Response, resp *gh.Response, err error) (string, string) {
	if res == nil && resp != nil {
		res = resp.Response
	}
	if res != nil && res.Request != nil {
		return res.Request.Method, res.Request.URL.String()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return strings.ToUpper(urlErr.Op), urlErr.URL
	}
	return "", ""
}

// payloadOf returns the raw error body GitHub sent, falling back to {"message": ...}.
func payloadOf(res *http.Response, message string) json.RawMessage {
	if res != nil && res.Body != nil {
		body, err := io.ReadAll(res.Body)
		if err == nil && json.Valid(body) {
			return json.RawMessage(body)
		}
	}
	fallback, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil
	}
	return json.RawMessage(fallback)
}
