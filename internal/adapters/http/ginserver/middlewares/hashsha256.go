package middlewares

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/influxreporter/internal/misc"
)

var responsePool = misc.NewBufferPool(4 << 20)

// signingWriter holds the response back until its hash is known.
type signingWriter struct {
	gin.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (w *signingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *signingWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *signingWriter) WriteHeader(code int) {
	w.status = code
}

// WriteHeaderNow is deferred to flush.
func (w *signingWriter) WriteHeaderNow() {}

func (w *signingWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *signingWriter) flush(key string) error {
	if w.body.Len() > 0 {
		w.ResponseWriter.Header().Set(misc.HashHeader, misc.SumSHA256(w.body.Bytes(), key))
	}
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(status)
	_, err := w.ResponseWriter.Write(w.body.Bytes())
	return err
}

// HashSHA256 verifies the HashSHA256 request header against the body, which
// must already be decompressed, and signs the response body. Requests
// without the header pass unchecked. An empty key disables both.
func HashSHA256(key string) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	if key == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if !verifyRequest(c, key) {
			return
		}

		sw := &signingWriter{ResponseWriter: c.Writer, body: responsePool.Get()}
		defer responsePool.Put(sw.body)
		c.Writer = sw
		c.Next()
		c.Writer = sw.ResponseWriter

		if err := sw.flush(key); err != nil {
			_ = c.Error(err)
		}
	}
}

func verifyRequest(c *gin.Context, key string) bool {
	got := c.GetHeader(misc.HashHeader)
	if strings.TrimSpace(got) == "" {
		return true
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return false
	}
	if err := c.Request.Body.Close(); err != nil {
		_ = c.Error(err)
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) > 0 && !misc.VerifySHA256(body, key, got) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid hash"})
		return false
	}
	return true
}
