// Package remoteaudit posts cycle events to an HTTP collector.
package remoteaudit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vshulcz/influxreporter/internal/adapters/influxhttp"
	"github.com/vshulcz/influxreporter/internal/services/audit"
)

const defaultTimeout = 5 * time.Second

// Client posts cycle events to a webhook through the same HTTP client the
// line sender uses, so signing and status handling match.
type Client struct {
	http  *influxhttp.Client
	path  string
	query url.Values
}

var _ audit.Observer = (*Client)(nil)

// New validates the endpoint URL. A non-empty key signs every payload with
// the HashSHA256 header the sink checks.
func New(rawURL, key string, hc *http.Client) (*Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("audit url is empty")
	}
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid audit url: %w", err)
	}
	base := url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host}
	c, err := influxhttp.New(base.String(), influxhttp.Options{HTTPClient: hc, Key: key, Timeout: defaultTimeout})
	if err != nil {
		return nil, fmt.Errorf("invalid audit url: %w", err)
	}
	return &Client{http: c, path: u.Path, query: u.Query()}, nil
}

// Notify posts evt as JSON. A non-2xx answer is an *influxhttp.StatusError.
func (c *Client) Notify(ctx context.Context, evt audit.Event) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if err := c.http.Post(ctx, c.path, c.query, "application/json", payload); err != nil {
		return fmt.Errorf("audit post: %w", err)
	}
	return nil
}
