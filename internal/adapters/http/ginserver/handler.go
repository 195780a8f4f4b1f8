package ginserver

import (
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/misc"
	"github.com/vshulcz/influxreporter/internal/services/ingest"
)

// VersionHeader is what /ping reports in X-Influxdb-Version.
const VersionHeader = "influxreporter-sink"

// Handler exposes InfluxDB-compatible write endpoints plus a read-only view
// of what was received.
type Handler struct {
	svc *ingest.Service
}

// NewHandler wires an ingest service into a gin-compatible HTTP handler.
func NewHandler(svc *ingest.Service) *Handler {
	return &Handler{svc: svc}
}

var bodyPool = misc.NewBufferPool(4 << 20)

// Ping handles `GET /ping` and `HEAD /ping` like InfluxDB: 204 with a version header.
func (h *Handler) Ping(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		c.String(http.StatusInternalServerError, "db ping error: %v", err)
		return
	}
	c.Header("X-Influxdb-Version", VersionHeader)
	c.Status(http.StatusNoContent)
}

// WriteLines handles `POST /write?db=&precision=` with a line-protocol body.
func (h *Handler) WriteLines(c *gin.Context) {
	buf := bodyPool.Get()
	defer bodyPool.Put(buf)
	if _, err := buf.ReadFrom(c.Request.Body); err != nil {
		writeError(c, http.StatusBadRequest, "read body failed")
		return
	}
	if _, err := h.svc.WriteLines(c.Request.Context(), c.Query("db"), c.Query("precision"), buf.Bytes()); err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// WriteSeries handles `POST /db/:db/series?time_precision=` with a v08 JSON body.
func (h *Handler) WriteSeries(c *gin.Context) {
	buf := bodyPool.Get()
	defer bodyPool.Put(buf)
	if _, err := buf.ReadFrom(c.Request.Body); err != nil {
		writeError(c, http.StatusBadRequest, "read body failed")
		return
	}
	if _, err := h.svc.WriteSeries(c.Request.Context(), c.Param("db"), c.Query("time_precision"), buf.Bytes()); err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Index renders a basic HTML table of the received series.
func (h *Handler) Index(c *gin.Context) {
	series, err := h.svc.Series(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>sink</title>")
	sb.WriteString("<style>body{font-family:system-ui,Arial,sans-serif}table{border-collapse:collapse}td,th{border:1px solid #ddd;padding:6px 10px}</style>")
	sb.WriteString("</head><body>")
	sb.WriteString("<h1>Series</h1>")
	sb.WriteString("<table><tr><th>Database</th><th>Measurement</th><th>Points</th><th>Last</th></tr>")
	for _, s := range series {
		sb.WriteString("<tr><td>")
		sb.WriteString(html.EscapeString(s.Database))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(s.Measurement))
		sb.WriteString("</td><td>")
		sb.WriteString(strconv.FormatInt(s.Points, 10))
		sb.WriteString("</td><td>")
		sb.WriteString(s.Last.UTC().Format(time.RFC3339Nano))
		sb.WriteString("</td></tr>")
	}
	sb.WriteString("</table>")
	sb.WriteString("</body></html>")

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(sb.String()))
}

// SeriesJSON handles `GET /series` and lists the received series as JSON.
func (h *Handler) SeriesJSON(c *gin.Context) {
	series, err := h.svc.Series(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}

// LastPoint handles `GET /series/:db/:measurement` returning the newest point.
func (h *Handler) LastPoint(c *gin.Context) {
	p, err := h.svc.Last(c.Request.Context(), c.Param("db"), c.Param("measurement"))
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func httpError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, domain.ErrNotFound):
		writeError(c, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrDatabaseRequired),
		errors.Is(err, domain.ErrInvalidLine),
		errors.Is(err, domain.ErrInvalidSeries),
		errors.Is(err, domain.ErrUnknownPrecision):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
