package ginserver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/services/ingest"
)

type discardRepo struct{}

func (discardRepo) Write(context.Context, []domain.Point) error { return nil }
func (discardRepo) Series(context.Context) ([]domain.SeriesSummary, error) {
	return nil, nil
}
func (discardRepo) Last(context.Context, string, string) (domain.Point, error) {
	return domain.Point{}, domain.ErrNotFound
}
func (discardRepo) Points(context.Context) ([]domain.Point, error) { return nil, nil }
func (discardRepo) Ping(context.Context) error                     { return nil }

func BenchmarkHandlerWriteLines(b *testing.B) {
	gin.SetMode(gin.ReleaseMode)

	handler := NewHandler(ingest.New(discardRepo{}, nil))
	engine := gin.New()
	engine.POST("/write", handler.WriteLines)

	var sb strings.Builder
	for i := range 200 {
		fmt.Fprintf(&sb, "requests,host=h%d count=%di,m1_rate=%d.5 1700000000000\n", i%4, i, i)
	}
	payload := []byte(sb.String())

	b.ReportAllocs()

	for b.Loop() {
		req := httptest.NewRequest(http.MethodPost, "/write?db=metrics", bytes.NewReader(payload))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			b.Fatalf("unexpected status: %d", w.Code)
		}
	}
}
