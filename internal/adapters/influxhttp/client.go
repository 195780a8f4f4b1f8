// Package influxhttp posts payloads to an InfluxDB HTTP endpoint. It is
// shared by the line-protocol sender and the v08 column client.
package influxhttp

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vshulcz/influxreporter/internal/misc"
)

const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	User       string
	Password   string
	// Key, when set, signs the uncompressed body into the HashSHA256 header.
	Key     string
	Timeout time.Duration
	Gzip    bool
}

// Client posts bodies to paths below a base URL.
type Client struct {
	base     *url.URL
	hc       *http.Client
	user     string
	password string
	key      string
	gzip     bool
}

// StatusError reports a non-2xx answer from the database.
type StatusError struct {
	Status string
	Body   string
	Code   int
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("influxdb status: %s", e.Status)
	}
	return fmt.Sprintf("influxdb status: %s: %s", e.Status, e.Body)
}

var (
	gzipWriterPool = sync.Pool{
		New: func() any {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = misc.NewBufferPool(4 << 20)
)

// New normalizes addr (host:port or URL) and returns a Client.
func New(addr string, opts Options) (*Client, error) {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	u, err := url.Parse(NormalizeBase(addr))
	if err != nil {
		return nil, fmt.Errorf("parse influxdb url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse influxdb url: missing host in %q", addr)
	}
	return &Client{
		base:     u,
		hc:       hc,
		user:     opts.User,
		password: opts.Password,
		key:      strings.TrimSpace(opts.Key),
		gzip:     opts.Gzip,
	}, nil
}

// NormalizeBase adds an http scheme when missing and trims trailing slashes.
func NormalizeBase(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return strings.TrimRight(s, "/")
	}
	return "http://" + strings.TrimRight(s, "/")
}

// Endpoint joins path to the base URL and appends q plus credentials.
func (c *Client) Endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	values := url.Values{}
	for k, v := range q {
		values[k] = v
	}
	if c.user != "" {
		values.Set("u", c.user)
		values.Set("p", c.password)
	}
	u.RawQuery = values.Encode()
	return u.String()
}

// Post sends body to path and returns a *StatusError on a non-2xx answer.
func (c *Client) Post(ctx context.Context, path string, q url.Values, contentType string, body []byte) (retErr error) {
	var hashHeader string
	if c.key != "" {
		hashHeader = misc.SumSHA256(body, c.key)
	}

	payload := body
	if c.gzip {
		buf, err := gzipBytes(body)
		if err != nil {
			return err
		}
		defer bufferPool.Put(buf)
		payload = buf.Bytes()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(path, q), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if hashHeader != "" {
		req.Header.Set(misc.HashHeader, hashHeader)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close response body: %w", cerr)
		}
	}()
	return checkStatus(resp)
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.hc.CloseIdleConnections()
}

func gzipBytes(src []byte) (*bytes.Buffer, error) {
	buf := bufferPool.Get()
	zw, ok := gzipWriterPool.Get().(*gzip.Writer)
	if !ok {
		zw = gzip.NewWriter(io.Discard)
	}
	defer gzipWriterPool.Put(zw)
	zw.Reset(buf)
	if _, err := zw.Write(src); err != nil {
		_ = zw.Close()
		bufferPool.Put(buf)
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		bufferPool.Put(buf)
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fmt.Errorf("drain body: %w", err)
		}
		return nil
	}
	msg, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && !errors.Is(err, io.EOF) {
		msg = nil
	}
	return &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(msg))}
}
