package columnclient

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/vshulcz/influxreporter/internal/adapters/influxhttp"
	"github.com/vshulcz/influxreporter/internal/lineproto"
)

// HTTPConfig addresses the 0.8 series endpoint.
type HTTPConfig struct {
	URL       string
	Database  string
	Precision lineproto.Precision
	influxhttp.Options
}

// NewHTTP posts every document to {URL}/db/{Database}/series.
func NewHTTP(cfg HTTPConfig, opts ...Option) (*Client, error) {
	hc, err := influxhttp.New(cfg.URL, cfg.Options)
	if err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("v08 database name is required")
	}
	path := "/db/" + url.PathEscape(cfg.Database) + "/series"
	var c *Client
	deliver := func(ctx context.Context, payload []byte) error {
		q := url.Values{"time_precision": {c.precision.Param()}}
		return hc.Post(ctx, path, q, "application/json", payload)
	}
	closeFn := func() error {
		hc.CloseIdleConnections()
		return nil
	}
	c, err = newClient("http", cfg.Precision, deliver, closeFn, opts)
	return c, err
}

// NewUDP writes every document as one datagram to addr.
func NewUDP(addr string, p lineproto.Precision, opts ...Option) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial udp %q: %w", addr, err)
	}
	deliver := func(_ context.Context, payload []byte) error {
		_, err := conn.Write(payload)
		return err
	}
	c, err := newClient("udp", p, deliver, conn.Close, opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}
