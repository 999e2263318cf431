package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDecodeCounters(t *testing.T) {
	m := New()
	m.Decode("H5075", ResultOK)
	m.Decode("H5075", ResultOK)
	m.Decode("", ResultUnsupported)

	if got := testutil.ToFloat64(m.decodes.WithLabelValues("H5075", ResultOK)); got != 2 {
		t.Errorf("H5075/ok = %v; want 2", got)
	}
	if got := testutil.ToFloat64(m.decodes.WithLabelValues("none", ResultUnsupported)); got != 1 {
		t.Errorf("none/unsupported = %v; want 1", got)
	}
}

func TestDecode_UnregisteredModelsShareOneSeries(t *testing.T) {
	m := New()
	for _, name := range []string{"junk1", "junk2", "H9999", "h5075"} {
		m.Decode(name, ResultUnknown)
	}

	if got := testutil.CollectAndCount(m.decodes, "govee_decodes_total"); got != 1 {
		t.Errorf("series = %d; want 1", got)
	}
	if got := testutil.ToFloat64(m.decodes.WithLabelValues("none", ResultUnknown)); got != 4 {
		t.Errorf("none/unknown_model = %v; want 4", got)
	}
}

func TestPublished(t *testing.T) {
	m := New()
	m.Published("mqtt", nil)
	m.Published("mqtt", errors.New("broker down"))

	if got := testutil.ToFloat64(m.published.WithLabelValues("mqtt")); got != 1 {
		t.Errorf("published = %v; want 1", got)
	}
	if got := testutil.ToFloat64(m.publishErrors.WithLabelValues("mqtt")); got != 1 {
		t.Errorf("publish errors = %v; want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Decode("H5075", ResultOK)
	m.Published("mqtt", nil)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	m.WrapHandler("x", h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d; want %d", rec.Code, http.StatusTeapot)
	}
}

func TestWrapHandlerAndExposition(t *testing.T) {
	m := New()
	h := m.WrapHandler("decode", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/decode", nil))

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("decode", "422")); got != 1 {
		t.Errorf("requests decode/422 = %v; want 1", got)
	}

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `http_requests_total{route="decode",status="422"} 1`) {
		t.Errorf("exposition missing request counter:\n%s", body)
	}
}
