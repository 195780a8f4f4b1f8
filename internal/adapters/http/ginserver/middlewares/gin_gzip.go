package middlewares

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var compressibleTypes = []string{"application/json", "text/html", "text/plain"}

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

func hasToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		name, _, _ := strings.Cut(part, ";")
		if strings.EqualFold(strings.TrimSpace(name), token) {
			return true
		}
	}
	return false
}

// inflatedBody closes both the gzip stream and the wire body.
type inflatedBody struct {
	*gzip.Reader
	wire io.Closer
}

func (b inflatedBody) Close() error {
	err := b.Reader.Close()
	if werr := b.wire.Close(); err == nil {
		err = werr
	}
	return err
}

// GzipRequest inflates bodies sent with Content-Encoding: gzip, as the
// line-protocol sender does when compression is on.
func GzipRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !hasToken(c.GetHeader("Content-Encoding"), "gzip") {
			c.Next()
			return
		}
		zr, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid gzip body"})
			return
		}
		c.Request.Body = inflatedBody{Reader: zr, wire: c.Request.Body}
		c.Request.ContentLength = -1
		c.Request.Header.Del("Content-Encoding")
		c.Request.Header.Del("Content-Length")
		c.Next()
	}
}

// deflatingWriter picks compression on the first Write, once the handler
// has set the content type and status.
type deflatingWriter struct {
	gin.ResponseWriter
	zw      *gzip.Writer
	started bool
}

func (w *deflatingWriter) start() {
	w.started = true
	status := w.Status()
	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified {
		return
	}
	ct := w.Header().Get("Content-Type")
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			w.Header().Del("Content-Length")
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Add("Vary", "Accept-Encoding")
			w.zw = gzipWriters.Get().(*gzip.Writer)
			w.zw.Reset(w.ResponseWriter)
			return
		}
	}
}

func (w *deflatingWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.start()
	}
	if w.zw == nil {
		return w.ResponseWriter.Write(p)
	}
	return w.zw.Write(p)
}

func (w *deflatingWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *deflatingWriter) finish() error {
	if w.zw == nil {
		return nil
	}
	err := w.zw.Close()
	w.zw.Reset(io.Discard)
	gzipWriters.Put(w.zw)
	w.zw = nil
	return err
}

// GzipResponse compresses JSON, HTML and plain-text responses for clients
// that accept gzip.
func GzipResponse() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !hasToken(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}
		dw := &deflatingWriter{ResponseWriter: c.Writer}
		c.Writer = dw
		c.Next()
		c.Writer = dw.ResponseWriter
		if err := dw.finish(); err != nil {
			_ = c.Error(err)
		}
	}
}
