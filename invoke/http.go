package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/internal/util"
	"github.com/teranos/tempo/logger"
)

// InvokePath is appended to the collaborator base URL.
const InvokePath = "/invoke"

// HTTPRequest is the body POSTed to the collaborator
type HTTPRequest struct {
	Target  string `json:"target"`
	Payload string `json:"payload"`
}

// HTTPResponse is the collaborator's answer
type HTTPResponse struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HTTPInvoker POSTs each call as JSON to a collaborator service.
type HTTPInvoker struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter // nil = unlimited
	logger     *zap.SugaredLogger
}

// NewHTTPInvoker creates an invoker for baseURL. maxPerMinute <= 0 disables
// rate limiting; timeout 0 leaves deadlines to the caller's context.
func NewHTTPInvoker(baseURL string, maxPerMinute int, timeout time.Duration, log *zap.SugaredLogger) *HTTPInvoker {
	if log == nil {
		log = logger.Logger
	}
	h := &HTTPInvoker{
		url:        strings.TrimRight(baseURL, "/") + InvokePath,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
	if maxPerMinute > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), 1)
	}
	return h
}

// Invoke sends one request, waiting for the rate limiter first.
func (h *HTTPInvoker) Invoke(ctx context.Context, target, payload string) (string, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return "", errors.Wrap(err, "rate limiter wait cancelled")
		}
	}

	reqBody, err := json.Marshal(HTTPRequest{Target: target, Payload: payload})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal invoke request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", errors.Wrap(err, "failed to create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		err = errors.Wrapf(err, "collaborator request for %s failed", target)
		if ctx.Err() == nil {
			err = errors.Mark(err, errors.ErrServiceUnavailable)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	h.logger.Debugw("Collaborator responded",
		logger.FieldTarget, target,
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := errors.WithDetail(
			errors.Newf("collaborator returned HTTP %d for %s", resp.StatusCode, target),
			util.Truncate(string(body), maxStderrDetail))
		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			err = errors.Mark(err, errors.ErrServiceUnavailable)
		}
		return "", err
	}

	var out HTTPResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", errors.Wrapf(err, "failed to parse response: %s", util.Truncate(string(body), 200))
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "collaborator reported failure (no error message)"
		}
		return "", errors.Newf("%s: %s", target, msg)
	}
	return out.Result, nil
}
