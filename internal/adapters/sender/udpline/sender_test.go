package udpline

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/vshulcz/influxreporter/internal/domain"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func read(t *testing.T, pc *net.UDPConn) string {
	t.Helper()
	buf := make([]byte, 2048)
	if err := pc.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	n, _, err := pc.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(buf[:n])
}

func TestSender_OneDatagramPerLine(t *testing.T) {
	pc := listen(t)
	s, err := New(pc.LocalAddr().String())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	lines := []string{"cpu value=1i 1", "mem,host=a value=2.5 1"}
	for _, l := range lines {
		if err := s.Send(ctx, l); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	for _, want := range lines {
		if got := read(t, pc); got != want {
			t.Fatalf("datagram=%q want %q", got, want)
		}
	}
}

func TestNew_BadAddress(t *testing.T) {
	if _, err := New("not-an-address"); err == nil {
		t.Fatal("expected resolve error")
	}
}

func TestSender_Close(t *testing.T) {
	pc := listen(t)
	s, err := New(pc.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := s.Send(context.Background(), "x f=1i"); !errors.Is(err, domain.ErrSenderClosed) {
		t.Fatalf("Send after Close: %v", err)
	}
}
