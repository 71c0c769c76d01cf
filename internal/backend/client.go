package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dashboard/internal/metrics"
)

// Client calls the course/attendance REST backend on behalf of a session.
// Every call takes the session's bearer token; an empty token sends the
// request unauthenticated.
type Client struct {
	BaseURL     string
	HTTP        *http.Client
	PageSize    int
	Concurrency int
	Log         *zap.Logger
}

// New creates a client with a request timeout.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTP:        &http.Client{Timeout: timeout},
		PageSize:    50,
		Concurrency: 4,
		Log:         log,
	}
}

// call describes one request.
type call struct {
	endpoint    string // metrics label
	method      string
	path        string
	query       url.Values
	token       string
	body        interface{}
	raw         []byte
	contentType string
	fallback    string // message when a failed response carries none
	anonymous   bool   // a 401 is a plain server error, not a stale session
}

// do sends c and decodes a 2xx body into out (if non-nil). GETs that fail
// before a response arrives are retried once.
func (cl *Client) do(ctx context.Context, c call, out interface{}) error {
	payload := c.raw
	contentType := c.contentType
	if c.body != nil {
		b, err := json.Marshal(c.body)
		if err != nil {
			return cl.fail(c, &Error{Kind: KindUnexpected, Op: c.endpoint, Message: MsgUnexpected, Err: err})
		}
		payload = b
		contentType = "application/json"
	}

	target := cl.BaseURL + c.path
	if len(c.query) > 0 {
		target += "?" + c.query.Encode()
	}

	attempts := 1
	if c.method == http.MethodGet {
		attempts = 2
	}

	var (
		resp *http.Response
		err  error
	)
	start := time.Now()
	for attempt := 1; attempt <= attempts; attempt++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, c.method, target, bytes.NewReader(payload))
		if err != nil {
			return cl.fail(c, &Error{Kind: KindUnexpected, Op: c.endpoint, Message: MsgUnexpected, Err: err})
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "*/*")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err = cl.HTTP.Do(req)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			metrics.BackendRequests.WithLabelValues(c.endpoint, "canceled").Inc()
			return errors.Wrap(ctx.Err(), c.endpoint)
		}
		if attempt < attempts {
			cl.Log.Warn("backend request failed, retrying",
				zap.String("endpoint", c.endpoint), zap.Error(err))
		}
	}
	metrics.BackendLatency.WithLabelValues(c.endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return cl.fail(c, &Error{Kind: KindTransport, Op: c.endpoint, Message: MsgNetwork, Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cl.fail(c, &Error{Kind: KindTransport, Op: c.endpoint, Message: MsgNetwork, Err: err})
	}

	if resp.StatusCode >= 300 {
		kind := KindServer
		if resp.StatusCode == http.StatusUnauthorized && !c.anonymous {
			kind = KindUnauthorized
		}
		msg := responseMessage(body)
		if msg == "" {
			msg = c.fallback
		}
		return cl.fail(c, &Error{
			Kind:    kind,
			Status:  resp.StatusCode,
			Op:      c.endpoint,
			Message: msg,
			Err:     errors.Errorf("backend %s: %s", c.endpoint, resp.Status),
		})
	}

	metrics.BackendRequests.WithLabelValues(c.endpoint, "ok").Inc()
	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = body
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return cl.fail(c, &Error{Kind: KindUnexpected, Op: c.endpoint, Message: MsgUnexpected, Err: errors.Wrap(err, "decode response")})
	}
	return nil
}

func (cl *Client) fail(c call, e *Error) error {
	metrics.BackendRequests.WithLabelValues(c.endpoint, e.Kind.String()).Inc()
	cl.Log.Debug("backend request failed",
		zap.String("endpoint", c.endpoint),
		zap.String("kind", e.Kind.String()),
		zap.Int("status", e.Status),
		zap.Error(e.Err))
	return e
}

// responseMessage pulls "message" out of an error body, if it is JSON and has one.
func responseMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}

// Health checks that the backend answers at all. Any HTTP response counts.
func (cl *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, cl.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := cl.HTTP.Do(req)
	if err != nil {
		return errors.Wrap(err, "backend unavailable")
	}
	resp.Body.Close()
	return nil
}
