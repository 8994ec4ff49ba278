package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"exchange-gateway/internal/core"
)

const defaultTimeout = 15 * time.Second

type Request struct {
	Method string
	// URL is the absolute endpoint without query string.
	URL    string
	Query  string
	Body   string
	Header map[string]string
}

type Response struct {
	StatusCode int
	Body       []byte
}

// Doer executes one HTTP round trip. Implementations must return
// *core.TransportError for network failures and non-2xx statuses.
type Doer interface {
	Execute(ctx context.Context, req Request) (Response, error)
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// HTTPClient replaces the underlying net/http client, mainly for tests.
	HTTPClient *http.Client
}

// Client is a Doer backed by resty. Retries are disabled: the adapters
// surface exactly one outcome per call and leave retry policy to callers.
type Client struct {
	rc *resty.Client
}

func New(opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "exchange-gateway"
	}
	rc.SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", ua)
	return &Client{rc: rc}
}

func (c *Client) Execute(ctx context.Context, req Request) (Response, error) {
	method := strings.ToUpper(req.Method)
	target := req.URL
	if req.Query != "" {
		target += "?" + req.Query
	}
	r := c.rc.R().SetContext(ctx)
	for k, v := range req.Header {
		r.SetHeader(k, v)
	}
	if req.Body != "" {
		r.SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(method, target)
	log := logrus.WithFields(logrus.Fields{
		"event":  "http_request",
		"method": method,
		"url":    req.URL,
	})
	if err != nil {
		log.WithError(err).Debug("request failed")
		return Response{}, &core.TransportError{
			Method: method,
			URL:    req.URL,
			Err:    errors.Wrap(err, "execute request"),
		}
	}
	log.WithFields(logrus.Fields{
		"status":      resp.StatusCode(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("request done")

	body := resp.Body()
	if !resp.IsSuccess() {
		return Response{StatusCode: resp.StatusCode(), Body: body}, &core.TransportError{
			Method: method,
			URL:    req.URL,
			Status: resp.StatusCode(),
			Body:   body,
			Err:    errors.Errorf("http non-2xx: %d", resp.StatusCode()),
		}
	}
	return Response{StatusCode: resp.StatusCode(), Body: body}, nil
}
